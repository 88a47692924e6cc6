// Command monocled runs the monocle RPC server: it loads configuration,
// opens the containment store, wires every dataset repository, lens,
// and the MRT pipeline, then serves internal/rpc/methods over
// WebSocket until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bgpkit/monocle/internal/config"
	"github.com/bgpkit/monocle/internal/ingest"
	"github.com/bgpkit/monocle/internal/lens"
	"github.com/bgpkit/monocle/internal/logging"
	"github.com/bgpkit/monocle/internal/metrics"
	"github.com/bgpkit/monocle/internal/mrtpipe"
	"github.com/bgpkit/monocle/internal/refresh"
	"github.com/bgpkit/monocle/internal/repo"
	"github.com/bgpkit/monocle/internal/rpc"
	"github.com/bgpkit/monocle/internal/rpc/methods"
	"github.com/bgpkit/monocle/internal/store"
)

var version = "dev" // overridden at release build time via -ldflags

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "monocled:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := pflag.NewFlagSet("monocled", pflag.ExitOnError)
	cfgPath := f.String("config", "", "path to a YAML config file")
	f.String("server.address", "", "override server.address")
	f.Int("server.port", 0, "override server.port")
	if err := f.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg, err := config.Load(*cfgPath, f)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Console, nil)
	logger.Info().Str("version", version).Str("data_dir", cfg.DataDir).Msg("monocled starting")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s, err := store.Open(filepath.Join(cfg.DataDir, "monocle.db"), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	asinfoRepo := repo.NewAsinfoRepo(s)
	as2relRepo := repo.NewAS2RelRepo(s)
	pfx2asRepo := repo.NewPfx2asRepo(s)
	roaRepo := repo.NewROARepo(s)
	aspaRepo := repo.NewASPARepo(s)

	m := metrics.New()
	coord := refresh.New(logger, m)

	httpClient := http.DefaultClient

	coord.Register(refresh.Dataset{
		ID: "asinfo", TTL: cfg.Cache.AsinfoTTL, MetaFn: asinfoRepo.Meta,
		RefreshFn: func(ctx context.Context) error {
			records, err := ingest.FetchAsinfo(ctx, httpClient, cfg.Sources.AsinfoURL)
			if err != nil {
				return err
			}
			return asinfoRepo.BulkReplace(ctx, s, records, cfg.Sources.AsinfoURL)
		},
	})
	coord.Register(refresh.Dataset{
		ID: "as2rel", TTL: cfg.Cache.As2relTTL, MetaFn: as2relRepo.Meta,
		RefreshFn: func(ctx context.Context) error {
			edges, err := ingest.FetchAS2Rel(ctx, httpClient, cfg.Sources.As2relURL)
			if err != nil {
				return err
			}
			return as2relRepo.BulkReplace(ctx, s, edges, cfg.Sources.As2relURL)
		},
	})
	coord.Register(refresh.Dataset{
		ID: "rpki", TTL: cfg.Cache.RPKITTL, MetaFn: roaRepo.Meta,
		RefreshFn: func(ctx context.Context) error {
			roas, aspas, err := ingest.FetchRPKI(ctx, httpClient, cfg.Sources.RPKIURL)
			if err != nil {
				return err
			}
			if err := roaRepo.BulkReplace(ctx, s, roas, cfg.Sources.RPKIURL); err != nil {
				return err
			}
			return aspaRepo.BulkReplace(ctx, s, aspas, cfg.Sources.RPKIURL)
		},
	})
	coord.Register(refresh.Dataset{
		ID: "pfx2as", TTL: cfg.Cache.Pfx2asTTL, MetaFn: pfx2asRepo.Meta,
		RefreshFn: func(ctx context.Context) error {
			entries, err := ingest.FetchPfx2as(ctx, httpClient, cfg.Sources.Pfx2asURL)
			if err != nil {
				return err
			}
			return pfx2asRepo.BulkReplace(ctx, s, entries, cfg.Sources.Pfx2asURL)
		},
	})

	historical := ingest.ArchiveFetcher{Client: httpClient, BaseURL: cfg.Sources.RPKIArchive}
	rpkiLens := lens.NewRPKILens(logger, roaRepo, aspaRepo, coord, historical)
	inspectLens := lens.NewInspectLens(logger, asinfoRepo, as2relRepo, pfx2asRepo, rpkiLens, coord)

	broker := mrtpipe.NewHTTPBroker(cfg.Sources.BrokerURL, httpClient)
	pipeline := mrtpipe.NewPipeline(logger, broker, httpClient)

	registry := rpc.NewRegistry()
	methods.Register(registry, methods.Deps{
		Logger:     logger,
		Version:    version,
		StartedAt:  time.Now(),
		Store:      s,
		Asinfo:     asinfoRepo,
		AS2Rel:     as2relRepo,
		Pfx2as:     pfx2asRepo,
		ROAs:       roaRepo,
		ASPAs:      aspaRepo,
		RPKI:       rpkiLens,
		Inspect:    inspectLens,
		Coord:      coord,
		Pipeline:   pipeline,
		HTTPClient: httpClient,
	})

	if err := coord.EnsureAvailable(ctx, "asinfo", "as2rel", "rpki", "pfx2as"); err != nil {
		logger.Warn().Err(err).Msg("bootstrap refresh incomplete, serving with whatever cache is available")
	}

	server := rpc.NewServer(logger, cfg.Server, registry, m)
	return server.ListenAndServe(ctx)
}
