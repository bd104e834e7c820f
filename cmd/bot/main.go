// Package main is the entry point for the economy service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"royalbot/internal/arbiter"
	"royalbot/internal/config"
	"royalbot/internal/grant"
	"royalbot/internal/handler"
	"royalbot/internal/ledger"
	"royalbot/internal/media"
	"royalbot/internal/pkg/db"
	"royalbot/internal/pkg/lock"
	"royalbot/internal/repository"
	"royalbot/internal/reward"
	"royalbot/internal/service"
	"royalbot/internal/timewin"
)

const sweepInterval = time.Minute

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	tw, err := timewin.New(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	counterRepo := repository.NewCounterRepository(dbPool.Pool)
	buffRepo := repository.NewBuffRepository(dbPool.Pool)
	grantRepo := repository.NewGrantRepository(dbPool.Pool)
	resourceRepo := repository.NewResourceRepository(dbPool.Pool)

	accountLock := lock.New()

	// Core engines
	ledgerService := ledger.NewService(dbPool.Pool, accountRepo, ledgerRepo, accountLock, ledger.Config{
		TransferFeeBps: cfg.Transfer.FeeBps,
		WithdrawFeeBps: cfg.Bank.WithdrawFeeBps,
	})
	grantRegistry := grant.NewRegistry(dbPool.Pool, accountRepo, grantRepo, ledgerRepo)
	arb := arbiter.New(dbPool.Pool, accountRepo, resourceRepo, ledgerRepo)

	// Reward engines
	lucky := reward.NewLucky(cfg.LuckyTiers(), buffRepo)
	checkinService := reward.NewCheckinService(
		dbPool.Pool, accountRepo, ledgerRepo, grantRegistry, accountLock,
		tw, lucky, cfg.Checkin, cfg.VIP.RewardMultiplier,
	)
	gachaService := reward.NewGachaService(
		dbPool.Pool, accountRepo, counterRepo, buffRepo, ledgerRepo, accountLock,
		tw, lucky, cfg.Gacha, cfg.GachaTiers(), cfg.VIP.RewardMultiplier,
	)
	presenceService := reward.NewPresenceService(counterRepo, grantRegistry, tw, cfg.Presence, cfg.PresenceLevels())
	interestService := reward.NewInterestService(dbPool.Pool, accountRepo, ledgerRepo, accountLock, tw, cfg.Bank)
	achievementService := reward.NewAchievementService(grantRegistry)

	// External media service
	mediaClient := media.NewHTTPClient(cfg.Media.BaseURL, cfg.Media.Timeout)

	// User-facing services
	accountService := service.NewAccountService(accountRepo, counterRepo, buffRepo, ledgerRepo, tw)
	transferService := service.NewTransferService(ledgerService, counterRepo, tw, cfg.Transfer)
	bankService := service.NewBankService(ledgerService, interestService, accountRepo)
	redPacketService := service.NewRedPacketService(arb, cfg.RedPacket)
	firstPlayService := service.NewFirstPlayService(arb, resourceRepo, accountRepo, mediaClient, cfg.FirstPlay, cfg.RedPacket.TTL)
	forgeService := service.NewForgeService(dbPool.Pool, accountRepo, counterRepo, buffRepo, ledgerRepo, accountLock, tw, cfg.Forge)
	watchSyncService := service.NewWatchSyncService(accountRepo, counterRepo, mediaClient, presenceService, tw)
	adminService := service.NewAdminService(cfg, ledgerService, accountRepo, buffRepo, arb, cfg.RedPacket.TTL)

	api := &handler.Handler{
		Accounts:     accountService,
		Transfers:    transferService,
		Bank:         bankService,
		RedPackets:   redPacketService,
		FirstPlay:    firstPlayService,
		Forge:        forgeService,
		Admin:        adminService,
		Checkin:      checkinService,
		Gacha:        gachaService,
		Presence:     presenceService,
		Achievements: achievementService,
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.Router(),
	}

	// Background sweeps: expire overdue packets and open races on new items.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		lastSync := time.Now().Add(-sweepInterval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := redPacketService.SweepExpired(ctx); err != nil {
					log.Error().Err(err).Msg("Expiry sweep failed")
				} else if n > 0 {
					log.Info().Int("expired", n).Msg("Expiry sweep completed")
				}
				syncFrom := lastSync
				lastSync = time.Now()
				if _, err := firstPlayService.SyncNewItems(ctx, syncFrom); err != nil {
					log.Error().Err(err).Msg("First-play item sync failed")
				}
				if n, err := watchSyncService.SyncWatchTime(ctx); err != nil {
					log.Error().Err(err).Msg("Watch-time sync failed")
				} else if n > 0 {
					log.Info().Int("credited", n).Msg("Watch-time sync completed")
				}
			}
		}
	}()

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Economy service started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	log.Info().Msg("Economy service stopped gracefully")
}
