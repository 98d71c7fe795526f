package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Aidin1998/arbcore/internal/allocator"
	"github.com/Aidin1998/arbcore/internal/audit"
	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/internal/engine"
	"github.com/Aidin1998/arbcore/internal/executor"
	"github.com/Aidin1998/arbcore/internal/ledger"
	"github.com/Aidin1998/arbcore/internal/metrics"
	"github.com/Aidin1998/arbcore/internal/riskgate"
	"github.com/Aidin1998/arbcore/internal/scanner"
	"github.com/Aidin1998/arbcore/internal/venues"
	"github.com/Aidin1998/arbcore/pkg/logger"
	"github.com/Aidin1998/arbcore/pkg/models"
	"github.com/Aidin1998/arbcore/pkg/validation"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	metricsAddr := flag.String("metrics-addr", ":9102", "prometheus metrics listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, *metricsAddr, log); err != nil && err != context.Canceled {
		log.Fatal("arbcore exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, configPath, metricsAddr string, log *zap.Logger) error {
	db, err := gorm.Open(sqlite.Open(cfg.Storage.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	auditor, err := audit.NewStore(db, log)
	if err != nil {
		return fmt.Errorf("failed to init audit store: %w", err)
	}
	obsStore, err := scanner.NewGormObservationStore(db)
	if err != nil {
		return fmt.Errorf("failed to init observation store: %w", err)
	}

	led := ledger.New(log)
	for _, bc := range cfg.Books {
		led.AddBook(&models.Book{
			ID:               uuid.New(),
			Name:             bc.Name,
			Type:             models.BookType(bc.Type),
			CapitalAllocated: decimal.NewFromFloat(bc.CapitalUSD),
			MaxDrawdownLimit: decimal.NewFromFloat(bc.MaxDrawdownLimit),
			RiskTier:         bc.RiskTier,
			Status:           models.BookStatusActive,
			CreatedAt:        time.Now().UTC(),
		})
	}

	registry, quotes, err := buildVenues(ctx, cfg, log)
	if err != nil {
		return err
	}

	tracker := engine.NewDrawdownTracker()
	for _, book := range led.ListBooks() {
		tracker.Register(book.ID, book.MaxDrawdownLimit)
	}

	validator := validation.New()
	var killSwitch venues.KillSwitch = venues.AlwaysOn{}

	scn := scanner.New(cfg.Scanner, quotes, quotes, obsStore, validator, registry.VenueIDs(), log)
	gate := riskgate.New(cfg.Risk, killSwitch, log)
	exec := executor.New(cfg.Executor, registry, led, killSwitch, auditor, validator, log)
	alloc := allocator.New(cfg.Allocation, log)

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, cfg, log)
		if err != nil {
			log.Warn("config hot reload unavailable", zap.Error(err))
		} else {
			// Venue enablement is the one knob that applies without a
			// restart; limit changes take effect on the next boot.
			watcher.OnSwap(func(next *config.Config) {
				for _, vc := range next.Venues {
					registry.SetEnabled(vc.ID, vc.Enabled)
				}
			})
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go serveMetrics(metricsAddr, reg, log)

	primary := ""
	if ids := registry.VenueIDs(); len(ids) > 0 {
		primary = ids[0]
	}

	eng := engine.New(cfg, scn, gate, exec, led, registry, alloc,
		configAllocationSource{cfg: cfg, ledger: led}, tracker, m, primary, log)
	return eng.Run(ctx)
}

// buildVenues registers one paper adapter per configured venue and connects
// each under the reconnect backoff. Real exchange adapters replace the
// paper ones at deployment time.
func buildVenues(ctx context.Context, cfg *config.Config, log *zap.Logger) (*venues.Registry, *venues.PaperQuotes, error) {
	registry := venues.NewRegistry(log)
	basis := make(map[string]decimal.Decimal, len(cfg.Venues))

	for i, vc := range cfg.Venues {
		// Spread paper venues around the shared mid so the scanner has
		// cross-venue edges to find.
		offset := decimal.NewFromInt(int64(i*16 - 8))
		basis[vc.ID] = offset

		adapter := venues.NewPaperAdapter(vc.ID, offset)
		backoff := &venues.Backoff{
			Base:       cfg.Executor.ReconnectBase,
			Cap:        cfg.Executor.ReconnectCap,
			MaxRetries: cfg.Executor.ReconnectRetries,
		}
		if err := venues.Retry(ctx, backoff, adapter.Connect); err != nil {
			return nil, nil, fmt.Errorf("failed to connect venue %s: %w", vc.ID, err)
		}
		registry.Register(adapter, vc.Enabled)
	}

	quotes := venues.NewPaperQuotes(basis, time.Now().UnixNano())
	return registry, quotes, nil
}

// configAllocationSource derives the strategy universe from the configured
// base weights. Performance and regime come from an analytics collaborator
// in a full deployment; standalone runs allocate on base weights alone.
type configAllocationSource struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

func (s configAllocationSource) AllocationInput(ctx context.Context) (allocator.Input, error) {
	in := allocator.Input{
		Performance: make(map[string]models.StrategyPerformance),
		Regime: models.RegimeState{
			RiskBias: models.RiskBiasNeutral,
			AsOf:     time.Now().UTC(),
		},
	}
	for name := range s.cfg.Allocation.BaseWeights {
		in.Strategies = append(in.Strategies, models.StrategyProfile{
			ID:            name,
			Type:          name,
			ExposureClass: models.ExposureClassMarketNeutral,
		})
	}
	for _, book := range s.ledger.ListBooks() {
		in.TotalCapital = in.TotalCapital.Add(book.CapitalAllocated)
	}
	return in, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics listener stopped", zap.Error(err))
	}
}
