// Package app wires configuration, the knowledge mirror, the session table,
// the resolution engine and the LINE transport into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrlight/shopbot/internal/config"
	"github.com/hrlight/shopbot/internal/engine"
	"github.com/hrlight/shopbot/internal/httpapi"
	"github.com/hrlight/shopbot/internal/knowledge"
	"github.com/hrlight/shopbot/internal/llm/openai"
	"github.com/hrlight/shopbot/internal/session"
	"github.com/hrlight/shopbot/internal/transport/line"
	"github.com/hrlight/shopbot/internal/watcher"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *knowledge.SQLite
	sync       *knowledge.SyncService
	watcher    *watcher.Service
	engine     *engine.Engine
	httpServer *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(cfg.SheetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create sheets directory: %w", err)
	}

	store, err := knowledge.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	fetcher := knowledge.NewFetcher(60 * time.Second)
	syncService := knowledge.NewSync(store, fetcher, cfg.SheetsDir, cfg.SheetSources(), cfg.SheetSyncSpec, logger.With("component", "sheet-sync"))

	sheetWatcher, err := watcher.New(cfg.SheetsDir, logger.With("component", "sheet-watcher"), func(ctx context.Context, path string) {
		importCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := store.ImportFile(importCtx, path); err != nil {
			logger.Warn("sheet file import failed", "path", path, "error", err)
		}
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	sessions := session.New(cfg.SessionMaxEntries, time.Duration(cfg.SessionTTLHours)*time.Hour)
	completer := openai.New(openai.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: time.Duration(cfg.LLMTimeoutSec) * time.Second,
	}, logger.With("component", "llm-openai"))

	resolutionEngine := engine.New(engine.Config{
		Stages:         cfg.Stages(),
		Greeting:       cfg.Greeting,
		Persona:        cfg.SystemPrompt,
		FAQSheet:       cfg.FAQSheet,
		PaintSheet:     cfg.PaintSheet,
		ColorSheet:     cfg.ColorSheet,
		ProductSheet:   cfg.ProductSheet,
		RatioThreshold: cfg.MatchRatioThreshold,
	}, store, sessions, completer, logger.With("component", "engine"))

	connector := line.New(
		cfg.LineChannelSecret,
		cfg.LineChannelToken,
		cfg.LineAPIBase,
		cfg.LineDataAPIBase,
		cfg.ChatLogDir,
		resolutionEngine,
		logger.With("component", "line"),
	)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Config:    cfg,
		Knowledge: store,
		Sheets:    store,
		Engine:    resolutionEngine,
		Sync:      syncService,
		Webhook:   connector.Callback,
		Logger:    logger.With("component", "httpapi"),
	})

	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		sync:    syncService,
		watcher: sheetWatcher,
		engine:  resolutionEngine,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("shopbot runtime starting", "addr", r.cfg.HTTPAddr, "db", r.cfg.DBPath)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return r.sync.Start(groupCtx)
	})
	group.Go(func() error {
		return r.watcher.Start(groupCtx)
	})
	group.Go(func() error {
		err := r.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
