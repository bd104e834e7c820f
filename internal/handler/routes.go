package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// POST /api/v1/account/bind
func (h *Handler) bind(c *gin.Context) {
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		Linked string `json:"linked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, created, err := h.Accounts.Bind(c.Request.Context(), req.UserID, req.Linked)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "created": created})
}

// GET /api/v1/account/:id/profile
func (h *Handler) profile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	profile, err := h.Accounts.Profile(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GET /api/v1/account/:id/history
func (h *Handler) history(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.Accounts.History(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GET /api/v1/account/:id/achievements
func (h *Handler) achievements(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	earned, err := h.Achievements.Earned(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": earned})
}

// GET /api/v1/ranking
func (h *Handler) ranking(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	ranks, err := h.Accounts.Top(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": ranks})
}

// POST /api/v1/checkin
func (h *Handler) checkin(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Checkin.Checkin(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	if !result.Already {
		h.checkAchievements(c, req.UserID)
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/gacha/draw
func (h *Handler) gachaDraw(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Gacha.Draw(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	h.checkAchievements(c, req.UserID)
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/forge
func (h *Handler) forge(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Forge.Forge(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	h.checkAchievements(c, req.UserID)
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/presence/message
func (h *Handler) presenceMessage(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Presence.RecordMessage(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/transfer
func (h *Handler) transfer(c *gin.Context) {
	var req struct {
		FromID int64 `json:"from_id" binding:"required"`
		ToID   int64 `json:"to_id" binding:"required"`
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Transfers.Send(c.Request.Context(), req.FromID, req.ToID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/bank/deposit
func (h *Handler) deposit(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, err := h.Bank.Deposit(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	h.checkAchievements(c, req.UserID)
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// POST /api/v1/bank/withdraw
func (h *Handler) withdraw(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Bank.Withdraw(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/bank/:id/interest
func (h *Handler) interest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	result, err := h.Bank.Accrued(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/bank/interest/claim
func (h *Handler) claimInterest(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Bank.ClaimInterest(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/redpacket
func (h *Handler) spawnRedPacket(c *gin.Context) {
	var req struct {
		CreatorID int64 `json:"creator_id" binding:"required"`
		Value     int64 `json:"value" binding:"required"`
		Slots     int64 `json:"slots" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resource, err := h.RedPackets.Spawn(c.Request.Context(), req.CreatorID, req.Value, req.Slots)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packet": resource})
}

// GET /api/v1/redpacket/:id
func (h *Handler) redPacketSummary(c *gin.Context) {
	resource, claims, err := h.RedPackets.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packet": resource, "claims": claims})
}

// POST /api/v1/redpacket/:id/claim
func (h *Handler) claimRedPacket(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.RedPackets.Claim(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/firstplay/:item/claim
func (h *Handler) claimFirstPlay(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.FirstPlay.Claim(c.Request.Context(), c.Param("item"), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/admin/grant
func (h *Handler) adminGrant(c *gin.Context) {
	var req struct {
		AdminID  int64 `json:"admin_id" binding:"required"`
		TargetID int64 `json:"target_id" binding:"required"`
		Amount   int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, err := h.Admin.Grant(c.Request.Context(), req.AdminID, req.TargetID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// POST /api/v1/admin/burn
func (h *Handler) adminBurn(c *gin.Context) {
	var req struct {
		AdminID  int64 `json:"admin_id" binding:"required"`
		TargetID int64 `json:"target_id" binding:"required"`
		Amount   int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, err := h.Admin.Burn(c.Request.Context(), req.AdminID, req.TargetID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// POST /api/v1/admin/airdrop
func (h *Handler) adminAirdrop(c *gin.Context) {
	var req struct {
		AdminID int64 `json:"admin_id" binding:"required"`
		Value   int64 `json:"value" binding:"required"`
		Slots   int64 `json:"slots" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resource, err := h.Admin.Airdrop(c.Request.Context(), req.AdminID, req.Value, req.Slots)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resource": resource})
}

// POST /api/v1/admin/vip
func (h *Handler) adminVIP(c *gin.Context) {
	var req struct {
		AdminID  int64 `json:"admin_id" binding:"required"`
		TargetID int64 `json:"target_id" binding:"required"`
		VIP      *bool `json:"vip" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Admin.SetVIP(c.Request.Context(), req.AdminID, req.TargetID, *req.VIP); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /api/v1/admin/buff
func (h *Handler) adminBuff(c *gin.Context) {
	var req struct {
		AdminID  int64  `json:"admin_id" binding:"required"`
		TargetID int64  `json:"target_id" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Charges  int    `json:"charges" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Admin.GrantBuff(c.Request.Context(), req.AdminID, req.TargetID, req.Name, req.Charges); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
