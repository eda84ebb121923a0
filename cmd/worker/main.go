// The worker binary sweeps companies with recent statement activity and
// recomputes their rollups. The API process refreshes in-process after each
// intake; this sweep covers jobs lost to a crash or restart, since rollups
// are a derived cache that can always be rebuilt from statements.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/brickdatalab/clear-scrub-sub001/internal/config"
	"github.com/brickdatalab/clear-scrub-sub001/internal/logger"
	"github.com/brickdatalab/clear-scrub-sub001/internal/refresh"
	sqlitestore "github.com/brickdatalab/clear-scrub-sub001/internal/store/sqlite"
)

func main() {
	var (
		interval = flag.Duration("interval", 5*time.Minute, "sweep interval")
		lookback = flag.Duration("lookback", 30*time.Minute, "how far back to look for statement activity")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	refresher := refresh.NewRefresher(db, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down worker...")
		cancel()
	}()

	log.Info().Dur("interval", *interval).Msg("Starting rollup sweep worker")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		sweep(ctx, db, refresher, *lookback, log)

		select {
		case <-ctx.Done():
			log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// sweep refreshes every company whose statements changed within the
// lookback window. Failures are logged and retried on the next sweep.
func sweep(ctx context.Context, db *sqlitestore.Store, refresher *refresh.Refresher, lookback time.Duration, log zerolog.Logger) {
	since := time.Now().Add(-lookback)

	companyIDs, err := db.ListCompaniesWithStatementActivity(ctx, since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list companies for sweep")
		return
	}

	for _, companyID := range companyIDs {
		company, err := db.GetCompany(ctx, companyID)
		if err != nil || company == nil {
			log.Error().Err(err).Str("company_id", companyID).Msg("Failed to load company for sweep")
			continue
		}
		if err := refresher.RefreshCompany(ctx, company.OrganizationID, companyID); err != nil {
			log.Error().Err(err).Str("company_id", companyID).Msg("Rollup refresh failed")
		}
	}

	if len(companyIDs) > 0 {
		log.Info().Int("companies", len(companyIDs)).Msg("Sweep complete")
	}
}
