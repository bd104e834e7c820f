// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"royalbot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

func TestAccountRepository_Bind(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	// First bind creates the account with zero balances
	account, created, err := repo.Bind(ctx, 12345, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(12345), account.UserID)
	require.NotNil(t, account.LinkedAccount)
	assert.Equal(t, "alice", *account.LinkedAccount)
	assert.Zero(t, account.Wallet)
	assert.Zero(t, account.Vault)

	// Rebinding the same account just updates the link
	account, created, err = repo.Bind(ctx, 12345, "alice2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice2", *account.LinkedAccount)
}

func TestAccountRepository_BindIdentityTaken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, _, err := repo.Bind(ctx, 1, "alice")
	require.NoError(t, err)

	// Creating a second account on the same identity is rejected
	_, _, err = repo.Bind(ctx, 2, "alice")
	assert.ErrorIs(t, err, ErrIdentityTaken)

	// So is rebinding an existing account onto it
	_, _, err = repo.Bind(ctx, 2, "bob")
	require.NoError(t, err)
	_, _, err = repo.Bind(ctx, 2, "alice")
	assert.ErrorIs(t, err, ErrIdentityTaken)

	// The loser keeps its previous link
	account, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, account.LinkedAccount)
	assert.Equal(t, "bob", *account.LinkedAccount)
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	_, err := repo.GetByID(context.Background(), 99999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_CreditDebit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, _, err := repo.Bind(ctx, 1, "alice")
	require.NoError(t, err)

	// Credit bumps both the wallet and lifetime earned
	account, err := repo.Credit(ctx, 1, model.PoolWallet, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Wallet)
	assert.Equal(t, int64(500), account.LifetimeEarned)

	// Debit within balance succeeds and bumps lifetime spent
	account, err = repo.Debit(ctx, 1, model.PoolWallet, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(300), account.Wallet)
	assert.Equal(t, int64(200), account.LifetimeSpent)

	// Overdraft fails and leaves the balance untouched
	_, err = repo.Debit(ctx, 1, model.PoolWallet, 1000)
	assert.ErrorIs(t, err, ErrInsufficientPool)

	account, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), account.Wallet)

	// Debit on a missing account reports not-found, not insufficiency
	_, err = repo.Debit(ctx, 999, model.PoolWallet, 10)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_VaultIsolated(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, _, err := repo.Bind(ctx, 1, "alice")
	require.NoError(t, err)

	_, err = repo.Credit(ctx, 1, model.PoolVault, 1000)
	require.NoError(t, err)

	// Vault balance never covers a wallet debit
	_, err = repo.Debit(ctx, 1, model.PoolWallet, 1)
	assert.ErrorIs(t, err, ErrInsufficientPool)
}

func TestAccountRepository_Streaks(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, _, err := repo.Bind(ctx, 1, "alice")
	require.NoError(t, err)

	streak, err := repo.RecordWin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
	streak, err = repo.RecordWin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)

	// A loss resets the win streak
	loseStreak, err := repo.RecordLoss(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, loseStreak)

	account, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, account.WinStreak)
	assert.Equal(t, 1, account.LoseStreak)
}

func TestAccountRepository_AddPowerFloor(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, _, err := repo.Bind(ctx, 1, "alice")
	require.NoError(t, err)

	power, err := repo.AddPower(ctx, 1, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), power)

	// Power never drops below zero
	power, err = repo.AddPower(ctx, 1, -100)
	require.NoError(t, err)
	assert.Zero(t, power)
}

func TestCounterRepository_Rollover(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCounterRepository(pool)
	ctx := context.Background()

	now := time.Now()
	dayStart := now.Truncate(24 * time.Hour)

	value, err := repo.Bump(ctx, 1, model.CounterChat, 3, dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(3), value)

	value, err = repo.Bump(ctx, 1, model.CounterChat, 2, dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(5), value)

	// A bump with tomorrow's day start resets the stale value
	value, err = repo.Bump(ctx, 1, model.CounterChat, 1, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)
}

func TestCounterRepository_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCounterRepository(pool)
	counter, err := repo.Get(context.Background(), 1, model.CounterForge)
	require.NoError(t, err)
	assert.Zero(t, counter.Value)
}

func TestBuffRepository_ConsumeOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBuffRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, 1, model.BuffShield, 1))

	consumed, err := repo.Consume(ctx, 1, model.BuffShield)
	require.NoError(t, err)
	assert.True(t, consumed)

	// Second consume finds no charges
	consumed, err = repo.Consume(ctx, 1, model.BuffShield)
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestGrantRepository_InsertOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGrantRepository(pool)
	ctx := context.Background()

	created, err := repo.Insert(ctx, 1, "ach:first_checkin", 50)
	require.NoError(t, err)
	assert.True(t, created)

	// Duplicate key loses the race
	created, err = repo.Insert(ctx, 1, "ach:first_checkin", 50)
	require.NoError(t, err)
	assert.False(t, created)

	// Same key for a different account is independent
	created, err = repo.Insert(ctx, 2, "ach:first_checkin", 50)
	require.NoError(t, err)
	assert.True(t, created)

	g, err := repo.Get(ctx, 1, "ach:first_checkin")
	require.NoError(t, err)
	assert.Equal(t, int64(50), g.Amount)

	_, err = repo.Get(ctx, 1, "ach:unknown")
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestResourceRepository_ClaimFlow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewResourceRepository(pool)
	ctx := context.Background()

	creator := int64(100)
	resID := uuid.NewString()
	res, err := repo.Create(ctx, &model.Resource{
		ID:         resID,
		Kind:       model.KindRedPacket,
		CreatorID:  &creator,
		TotalValue: 100,
		TotalSlots: 3,
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.RemainingValue)
	assert.Equal(t, int64(3), res.RemainingSlots)
	assert.Equal(t, model.StatusActive, res.Status)

	// Two claims leave one slot
	_, err = repo.InsertClaim(ctx, resID, 1, 40)
	require.NoError(t, err)
	res, err = repo.ApplyClaim(ctx, resID, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), res.RemainingValue)
	assert.Equal(t, int64(2), res.RemainingSlots)

	_, err = repo.InsertClaim(ctx, resID, 2, 23)
	require.NoError(t, err)
	res, err = repo.ApplyClaim(ctx, resID, 23)
	require.NoError(t, err)
	assert.Equal(t, int64(37), res.RemainingValue)

	// Last claim drains the pot exactly and exhausts the resource
	_, err = repo.InsertClaim(ctx, resID, 3, 37)
	require.NoError(t, err)
	res, err = repo.ApplyClaim(ctx, resID, 37)
	require.NoError(t, err)
	assert.Zero(t, res.RemainingValue)
	assert.Zero(t, res.RemainingSlots)
	assert.Equal(t, model.StatusExhausted, res.Status)

	// Claim order is preserved
	claims, err := repo.Claims(ctx, resID)
	require.NoError(t, err)
	require.Len(t, claims, 3)
	assert.Equal(t, int64(1), claims[0].ClaimantID)
	assert.Equal(t, int64(3), claims[2].ClaimantID)

	// A recorded claim is retrievable with its amount
	claim, found, err := repo.GetClaim(ctx, resID, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(23), claim.Amount)
}

func TestResourceRepository_DueAndMarkExpired(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewResourceRepository(pool)
	ctx := context.Background()

	creator := int64(100)
	oldID := uuid.NewString()
	_, err := repo.Create(ctx, &model.Resource{
		ID:         oldID,
		Kind:       model.KindRedPacket,
		CreatorID:  &creator,
		TotalValue: 50,
		TotalSlots: 5,
		ExpiresAt:  time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Resource{
		ID:         uuid.NewString(),
		Kind:       model.KindRedPacket,
		CreatorID:  &creator,
		TotalValue: 50,
		TotalSlots: 5,
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	due, err := repo.Due(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{oldID}, due)

	res, err := repo.MarkExpired(ctx, oldID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, res.Status)
	assert.Equal(t, int64(50), res.RemainingValue)

	// An already-settled resource is gone from both sides
	_, err = repo.MarkExpired(ctx, oldID)
	assert.ErrorIs(t, err, ErrResourceNotFound)
	due, err = repo.Due(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestResourceRepository_FirstPlayRegistration(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewResourceRepository(pool)
	ctx := context.Background()

	raceID := uuid.NewString()
	otherID := uuid.NewString()
	for _, id := range []string{raceID, otherID} {
		_, err := repo.Create(ctx, &model.Resource{
			ID:         id,
			Kind:       model.KindFirstPlay,
			TotalValue: 200,
			TotalSlots: 3,
			ExpiresAt:  time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
	}

	registered, err := repo.RegisterFirstPlay(ctx, "item-1", raceID)
	require.NoError(t, err)
	assert.True(t, registered)

	// Second registration for the same item loses
	registered, err = repo.RegisterFirstPlay(ctx, "item-1", otherID)
	require.NoError(t, err)
	assert.False(t, registered)

	id, found, err := repo.FirstPlayResource(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, raceID, id)
}

func TestLedgerRepository_AppendRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	accounts := NewAccountRepository(pool)
	entries := NewLedgerRepository(pool)
	ctx := context.Background()

	_, _, err := accounts.Bind(ctx, 1, "alice")
	require.NoError(t, err)

	_, err = entries.Append(ctx, 1, model.PoolWallet, 100, model.ReasonCheckin, nil)
	require.NoError(t, err)
	ref := "user:2"
	_, err = entries.Append(ctx, 1, model.PoolWallet, -30, model.ReasonTransferOut, &ref)
	require.NoError(t, err)

	recent, err := entries.Recent(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first
	assert.Equal(t, int64(-30), recent[0].Amount)
	require.NotNil(t, recent[0].Ref)
	assert.Equal(t, "user:2", *recent[0].Ref)
}
