// Package model defines the data models for the chat economy core.
package model

import "time"

// Account is the durable per-user economy record. One row exists per user;
// it is created the first time the user binds an external media identity.
type Account struct {
	UserID         int64      `db:"user_id"`
	LinkedAccount  *string    `db:"linked_account"` // external media identity; nil until bound
	Wallet         int64      `db:"wallet"`
	Vault          int64      `db:"vault"`
	LifetimeEarned int64      `db:"lifetime_earned"`
	LifetimeSpent  int64      `db:"lifetime_spent"`
	IsVIP          bool       `db:"is_vip"`
	PowerRating    int64      `db:"power_rating"`
	EquippedItem   *string    `db:"equipped_item"`
	LastCheckinAt  *time.Time `db:"last_checkin_at"`
	CheckinStreak  int        `db:"checkin_streak"`
	TotalCheckins  int        `db:"total_checkins"`
	WinStreak      int        `db:"win_streak"`
	LoseStreak     int        `db:"lose_streak"`
	PityCounter    int        `db:"pity_counter"`
	InterestMarked *time.Time `db:"interest_marked_at"` // start of the current accrual period
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Bound reports whether the account has a linked external identity.
func (a *Account) Bound() bool {
	return a.LinkedAccount != nil && *a.LinkedAccount != ""
}

// Pool identifies which balance of an account a ledger operation targets.
type Pool string

const (
	PoolWallet Pool = "wallet"
	PoolVault  Pool = "vault"
)

// LedgerEntry records a single balance change. Every successful credit or
// debit appends exactly one entry.
type LedgerEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Pool      Pool      `db:"pool"`
	Amount    int64     `db:"amount"` // signed: positive = credit, negative = debit
	Reason    string    `db:"reason"`
	Ref       *string   `db:"ref"` // optional reference (grant key, resource id, peer id)
	CreatedAt time.Time `db:"created_at"`
}

// Ledger entry reasons for categorizing balance changes.
const (
	ReasonCheckin         = "checkin"
	ReasonTransferIn      = "transfer_in"
	ReasonTransferOut     = "transfer_out"
	ReasonDeposit         = "deposit"
	ReasonWithdraw        = "withdraw"
	ReasonInterest        = "interest"
	ReasonGacha           = "gacha"
	ReasonGachaCost       = "gacha_cost"
	ReasonForgeCost       = "forge_cost"
	ReasonRedPacket       = "redpacket"
	ReasonRedPacketFund   = "redpacket_fund"
	ReasonRedPacketRefund = "redpacket_refund"
	ReasonAirdrop         = "airdrop"
	ReasonPresence        = "presence"
	ReasonAchievement     = "achievement"
	ReasonFirstPlay       = "first_play"
	ReasonAdminGrant      = "admin_grant"
	ReasonAdminBurn       = "admin_burn"
)

// Grant records a one-time reward applied to an account. A (user_id,
// grant_key) pair exists at most once, which is what makes achievement,
// presence-level and streak-milestone rewards unrepeatable.
type Grant struct {
	UserID    int64     `db:"user_id"`
	Key       string    `db:"grant_key"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// ResourceKind distinguishes contested pool flavors.
type ResourceKind string

const (
	KindRedPacket ResourceKind = "redpacket"
	KindAirdrop   ResourceKind = "airdrop"
	KindFirstPlay ResourceKind = "first_play" // fixed equal share per claimant
)

// ResourceStatus is the lifecycle state of a contested resource.
// Exhausted and Expired are terminal.
type ResourceStatus string

const (
	StatusActive    ResourceStatus = "active"
	StatusExhausted ResourceStatus = "exhausted"
	StatusExpired   ResourceStatus = "expired"
)

// Resource is a finite-value, finite-slot pool claimed first come first
// served under a deadline.
type Resource struct {
	ID             string         `db:"id"`
	Kind           ResourceKind   `db:"kind"`
	CreatorID      *int64         `db:"creator_id"` // nil for system-spawned pools
	TotalValue     int64          `db:"total_value"`
	TotalSlots     int64          `db:"total_slots"`
	RemainingValue int64          `db:"remaining_value"`
	RemainingSlots int64          `db:"remaining_slots"`
	Status         ResourceStatus `db:"status"`
	ExpiresAt      time.Time      `db:"expires_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

// ResourceClaim records one claimant's share of a resource. Insertion order
// is claim order.
type ResourceClaim struct {
	ID         int64     `db:"id"`
	ResourceID string    `db:"resource_id"`
	ClaimantID int64     `db:"claimant_id"`
	Amount     int64     `db:"amount"`
	CreatedAt  time.Time `db:"created_at"`
}

// DailyCounter is a per-account counter valid only for the day of its
// UpdatedAt timestamp. Readers must treat it as zero after a day rollover.
type DailyCounter struct {
	UserID    int64     `db:"user_id"`
	Name      string    `db:"name"`
	Value     int64     `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Daily counter names.
const (
	CounterChat     = "chat"
	CounterForge    = "forge"
	CounterBox      = "box"
	CounterGift     = "gift"
	CounterPresence = "presence"
	CounterWatch    = "watch_minutes"
	CounterBoxBuy   = "box_buy"
)

// Buff names. Buffs are consumable charges decremented exactly once per use.
const (
	BuffLuckyBoost   = "lucky_boost"
	BuffShield       = "shield"
	BuffGachaDraw    = "gacha_draw"
	BuffFreeForge    = "free_forge"
	BuffFreeForgePro = "free_forge_premium"
)

// Buff is a consumable charge attached to an account.
type Buff struct {
	UserID    int64     `db:"user_id"`
	Name      string    `db:"name"`
	Charges   int       `db:"charges"`
	UpdatedAt time.Time `db:"updated_at"`
}

// WalletRank is a leaderboard row. Daily counters carried alongside must be
// staleness-checked by the reader before display.
type WalletRank struct {
	UserID int64 `db:"user_id"`
	Wallet int64 `db:"wallet"`
	Vault  int64 `db:"vault"`
}
