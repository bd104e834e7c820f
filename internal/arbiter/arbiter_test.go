// Tests use testcontainers-go to spin up a PostgreSQL container.
package arbiter

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
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
	"royalbot/internal/repository"
)

func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

func setupArbiter(t *testing.T) (*Arbiter, *repository.AccountRepository, func()) {
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
	require.NoError(t, repository.Migrate(ctx, pool))

	accounts := repository.NewAccountRepository(pool)
	arb := New(pool, accounts, repository.NewResourceRepository(pool), repository.NewLedgerRepository(pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return arb, accounts, cleanup
}

func fund(t *testing.T, accounts *repository.AccountRepository, userID, amount int64) {
	t.Helper()
	ctx := context.Background()
	_, _, err := accounts.Bind(ctx, userID, fmt.Sprintf("user-%d", userID))
	require.NoError(t, err)
	if amount > 0 {
		_, err = accounts.Credit(ctx, userID, model.PoolWallet, amount)
		require.NoError(t, err)
	}
}

func TestSpawnDebitsCreator(t *testing.T) {
	arb, accounts, cleanup := setupArbiter(t)
	defer cleanup()

	ctx := context.Background()
	creator := int64(1)
	fund(t, accounts, creator, 1000)

	resource, err := arb.Spawn(ctx, &creator, model.KindRedPacket, 300, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(300), resource.RemainingValue)

	account, err := accounts.GetByID(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(700), account.Wallet)

	// An underfunded creator spawns nothing and keeps their balance
	_, err = arb.Spawn(ctx, &creator, model.KindRedPacket, 5000, 3, time.Hour)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	account, err = accounts.GetByID(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(700), account.Wallet)
}

func TestClaimStateMachine(t *testing.T) {
	arb, accounts, cleanup := setupArbiter(t)
	defer cleanup()

	ctx := context.Background()
	creator := int64(1)
	fund(t, accounts, creator, 1000)
	for id := int64(2); id <= 5; id++ {
		fund(t, accounts, id, 0)
	}

	resource, err := arb.Spawn(ctx, &creator, model.KindRedPacket, 100, 2, time.Hour)
	require.NoError(t, err)

	// Creator cannot claim their own packet
	result, err := arb.Claim(ctx, resource.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, ClaimSelfClaim, result.Status)

	// First claimant wins a share
	result, err = arb.Claim(ctx, resource.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, ClaimWon, result.Status)
	assert.GreaterOrEqual(t, result.Amount, int64(1))
	won := result.Amount

	// A duplicate attempt reports the original share and pays nothing
	result, err = arb.Claim(ctx, resource.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyClaimed, result.Status)
	assert.Equal(t, won, result.Amount)

	account, err := accounts.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, won, account.Wallet)

	// Last slot drains the pot exactly
	result, err = arb.Claim(ctx, resource.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, ClaimWon, result.Status)
	assert.Equal(t, int64(100)-won, result.Amount)
	assert.Zero(t, result.SlotsLeft)

	// Further claimants find the pot exhausted
	result, err = arb.Claim(ctx, resource.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, ClaimExhausted, result.Status)

	_, err = arb.Claim(ctx, uuid.NewString(), 5)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestClaimExpired(t *testing.T) {
	arb, accounts, cleanup := setupArbiter(t)
	defer cleanup()

	ctx := context.Background()
	creator := int64(1)
	fund(t, accounts, creator, 1000)
	fund(t, accounts, 2, 0)

	resource, err := arb.Spawn(ctx, &creator, model.KindRedPacket, 100, 2, -time.Minute)
	require.NoError(t, err)

	result, err := arb.Claim(ctx, resource.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, ClaimExpired, result.Status)
}

func TestConcurrentClaims(t *testing.T) {
	arb, accounts, cleanup := setupArbiter(t)
	defer cleanup()

	ctx := context.Background()
	creator := int64(1)
	fund(t, accounts, creator, 1000)

	const claimants = 10
	const slots = 4
	for id := int64(2); id < 2+claimants; id++ {
		fund(t, accounts, id, 0)
	}

	resource, err := arb.Spawn(ctx, &creator, model.KindRedPacket, 200, slots, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(claimants)
	results := make([]*ClaimResult, claimants)
	for i := 0; i < claimants; i++ {
		go func(i int) {
			defer wg.Done()
			result, err := arb.Claim(ctx, resource.ID, int64(2+i))
			if err == nil {
				results[i] = result
			}
		}(i)
	}
	wg.Wait()

	won := 0
	var total int64
	for _, r := range results {
		require.NotNil(t, r)
		if r.Status == ClaimWon {
			won++
			total += r.Amount
		}
	}
	assert.Equal(t, slots, won, "exactly one winner per slot")
	assert.Equal(t, int64(200), total, "the pot is conserved")
}

func TestExpiredBoundary(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	res := &model.Resource{Status: model.StatusActive, ExpiresAt: at}

	assert.False(t, expired(res, at.Add(-time.Nanosecond)))
	assert.True(t, expired(res, at), "the deadline instant is out of window")
	assert.True(t, expired(res, at.Add(time.Second)))

	marked := &model.Resource{Status: model.StatusExpired, ExpiresAt: at.Add(time.Hour)}
	assert.True(t, expired(marked, at))
}

func TestSweepExpiredRefundsCreator(t *testing.T) {
	arb, accounts, cleanup := setupArbiter(t)
	defer cleanup()

	ctx := context.Background()
	creator := int64(1)
	fund(t, accounts, creator, 1000)
	fund(t, accounts, 2, 0)

	resource, err := arb.Spawn(ctx, &creator, model.KindRedPacket, 300, 3, time.Second)
	require.NoError(t, err)

	result, err := arb.Claim(ctx, resource.ID, 2)
	require.NoError(t, err)
	require.Equal(t, ClaimWon, result.Status)
	claimed := result.Amount

	time.Sleep(1100 * time.Millisecond)

	swept, err := arb.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	// Creator gets back the unclaimed remainder only
	account, err := accounts.GetByID(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, 1000-claimed, account.Wallet)

	// The claimed share stays with the claimant
	account, err = accounts.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, claimed, account.Wallet)
}

func TestFirstPlayEqualShares(t *testing.T) {
	arb, accounts, cleanup := setupArbiter(t)
	defer cleanup()

	ctx := context.Background()
	for id := int64(1); id <= 4; id++ {
		fund(t, accounts, id, 0)
	}

	// System pool: no creator, no funding debit
	resource, err := arb.Spawn(ctx, nil, model.KindFirstPlay, 100, 3, time.Hour)
	require.NoError(t, err)

	var total int64
	for id := int64(1); id <= 3; id++ {
		result, err := arb.Claim(ctx, resource.ID, id)
		require.NoError(t, err)
		require.Equal(t, ClaimWon, result.Status)
		total += result.Amount
	}
	// 33 + 33 + 34: the last slot absorbs the division remainder
	assert.Equal(t, int64(100), total)

	result, err := arb.Claim(ctx, resource.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, ClaimExhausted, result.Status)
}
