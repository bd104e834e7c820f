// Tests use testcontainers-go to spin up a PostgreSQL container.
package reward

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"royalbot/internal/config"
	"royalbot/internal/grant"
	"royalbot/internal/model"
	"royalbot/internal/pkg/lock"
	"royalbot/internal/repository"
	"royalbot/internal/timewin"
)

func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

func setupPool(t *testing.T) (*pgxpool.Pool, func()) {
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

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

func TestLuckyRollKeepsBoostOnRollback(t *testing.T) {
	pool, cleanup := setupPool(t)
	defer cleanup()

	ctx := context.Background()
	buffs := repository.NewBuffRepository(pool)
	require.NoError(t, buffs.Add(ctx, 1, model.BuffLuckyBoost, 1))

	lucky := NewLucky([]config.LuckyTier{{ChanceBps: 1500, Multiplier: 2}}, buffs)
	lucky.rng = fixedRNG(9999) // no bonus band, boost floor decides

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	roll, err := lucky.Roll(ctx, tx, 1)
	require.NoError(t, err)
	assert.True(t, roll.Boosted)
	assert.Equal(t, int64(2), roll.Multiplier)
	require.NoError(t, tx.Rollback(ctx))

	// The rolled-back transaction did not burn the charge.
	charges, err := buffs.Charges(ctx, 1, model.BuffLuckyBoost)
	require.NoError(t, err)
	assert.Equal(t, 1, charges)
}

func TestRecordMessageBumpsChatCounter(t *testing.T) {
	pool, cleanup := setupPool(t)
	defer cleanup()

	ctx := context.Background()
	accounts := repository.NewAccountRepository(pool)
	counters := repository.NewCounterRepository(pool)
	grants := grant.NewRegistry(pool, accounts,
		repository.NewGrantRepository(pool),
		repository.NewLedgerRepository(pool),
	)
	tw := timewin.MustNew("UTC")

	s := NewPresenceService(counters, grants, tw,
		config.PresenceConfig{PointsPerMessage: 5, PointsPerMinute: 2}, nil)

	_, _, err := accounts.Bind(ctx, 1, "alice")
	require.NoError(t, err)

	result, err := s.RecordMessage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Points)

	result, err = s.RecordMessage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Points)

	chat, err := counters.Get(ctx, 1, model.CounterChat)
	require.NoError(t, err)
	assert.Equal(t, int64(2), chat.Value)
}

func TestGachaDrawAppliesLuckyMultiplier(t *testing.T) {
	pool, cleanup := setupPool(t)
	defer cleanup()

	ctx := context.Background()
	accounts := repository.NewAccountRepository(pool)
	counters := repository.NewCounterRepository(pool)
	buffs := repository.NewBuffRepository(pool)
	entries := repository.NewLedgerRepository(pool)
	tw := timewin.MustNew("UTC")

	lucky := NewLucky([]config.LuckyTier{{ChanceBps: 10000, Multiplier: 3}}, buffs)
	lucky.rng = fixedRNG(0) // always lands in the x3 band

	tiers := []config.GachaTier{{Name: "common", WeightBps: 10000, MinReward: 10, MaxReward: 10}}
	s := NewGachaService(pool, accounts, counters, buffs, entries, lock.New(), tw, lucky,
		config.GachaConfig{Cost: 5, PityThreshold: 10, DailyLimit: 10}, tiers, 2)
	s.rng = fixedRNG(0)

	_, _, err := accounts.Bind(ctx, 1, "alice")
	require.NoError(t, err)
	_, err = accounts.Credit(ctx, 1, model.PoolWallet, 100)
	require.NoError(t, err)

	result, err := s.Draw(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Multiplier)
	assert.Equal(t, int64(30), result.Reward) // 10 base, non-VIP, x3 lucky
	assert.Equal(t, int64(5), result.Cost)
	assert.Equal(t, int64(125), result.Account.Wallet)

	// Paid draws also count toward the purchase counter.
	bought, err := counters.Get(ctx, 1, model.CounterBoxBuy)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bought.Value)
}

func TestCheckinConsumesBoostWithPayout(t *testing.T) {
	pool, cleanup := setupPool(t)
	defer cleanup()

	ctx := context.Background()
	accounts := repository.NewAccountRepository(pool)
	entries := repository.NewLedgerRepository(pool)
	grants := grant.NewRegistry(pool, accounts,
		repository.NewGrantRepository(pool),
		entries,
	)
	buffs := repository.NewBuffRepository(pool)
	tw := timewin.MustNew("UTC")

	lucky := NewLucky([]config.LuckyTier{{ChanceBps: 1500, Multiplier: 2}}, buffs)
	lucky.rng = fixedRNG(9999)

	s := NewCheckinService(pool, accounts, entries, grants, lock.New(), tw, lucky,
		config.CheckinConfig{MinReward: 10, MaxReward: 10}, 2)
	s.rng = fixedRNG(0)

	_, _, err := accounts.Bind(ctx, 1, "alice")
	require.NoError(t, err)
	require.NoError(t, buffs.Add(ctx, 1, model.BuffLuckyBoost, 1))

	result, err := s.Checkin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Multiplier)
	assert.Equal(t, int64(20), result.Amount) // 10 base x2 boost, non-VIP

	charges, err := buffs.Charges(ctx, 1, model.BuffLuckyBoost)
	require.NoError(t, err)
	assert.Zero(t, charges, "the boost charge is spent with the payout")
}
