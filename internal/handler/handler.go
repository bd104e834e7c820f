// Package handler exposes the economy operations over a JSON HTTP API. It
// translates typed service results and sentinel errors to wire responses;
// no economy rules live here.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"royalbot/internal/arbiter"
	"royalbot/internal/ledger"
	"royalbot/internal/repository"
	"royalbot/internal/reward"
	"royalbot/internal/service"
)

// Handler bundles the services behind the API.
type Handler struct {
	Accounts     *service.AccountService
	Transfers    *service.TransferService
	Bank         *service.BankService
	RedPackets   *service.RedPacketService
	FirstPlay    *service.FirstPlayService
	Forge        *service.ForgeService
	Admin        *service.AdminService
	Checkin      *reward.CheckinService
	Gacha        *reward.GachaService
	Presence     *reward.PresenceService
	Achievements *reward.AchievementService
}

// Router builds the gin engine with all routes mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/account/bind", h.bind)
		v1.GET("/account/:id/profile", h.profile)
		v1.GET("/account/:id/history", h.history)
		v1.GET("/account/:id/achievements", h.achievements)
		v1.GET("/ranking", h.ranking)

		v1.POST("/checkin", h.checkin)
		v1.POST("/gacha/draw", h.gachaDraw)
		v1.POST("/forge", h.forge)
		v1.POST("/presence/message", h.presenceMessage)

		v1.POST("/transfer", h.transfer)
		v1.POST("/bank/deposit", h.deposit)
		v1.POST("/bank/withdraw", h.withdraw)
		v1.GET("/bank/:id/interest", h.interest)
		v1.POST("/bank/interest/claim", h.claimInterest)

		v1.POST("/redpacket", h.spawnRedPacket)
		v1.GET("/redpacket/:id", h.redPacketSummary)
		v1.POST("/redpacket/:id/claim", h.claimRedPacket)
		v1.POST("/firstplay/:item/claim", h.claimFirstPlay)

		v1.POST("/admin/grant", h.adminGrant)
		v1.POST("/admin/burn", h.adminBurn)
		v1.POST("/admin/airdrop", h.adminAirdrop)
		v1.POST("/admin/vip", h.adminVIP)
		v1.POST("/admin/buff", h.adminBuff)
	}
	return r
}

// fail maps sentinel errors to HTTP status codes. Unknown errors log and
// return 500 without leaking internals.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidTarget),
		errors.Is(err, service.ErrInvalidBinding),
		errors.Is(err, arbiter.ErrInvalidResource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, reward.ErrInsufficientFunds),
		errors.Is(err, arbiter.ErrInsufficientFunds),
		errors.Is(err, repository.ErrIdentityTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrAccountNotBound):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrItemNotPlayed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, arbiter.ErrResourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDailyLimitReached),
		errors.Is(err, reward.ErrDailyLimitReached):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// checkAchievements runs the achievement sweep after a state change. Grant
// failures are already logged inside; the request outcome is unaffected.
func (h *Handler) checkAchievements(c *gin.Context, userID int64) {
	if _, err := h.Achievements.CheckAll(c.Request.Context(), userID); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Achievement sweep failed")
	}
}
