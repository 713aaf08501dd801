package knowledge

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncService keeps the sqlite mirror current: an import of the local sheet
// directory at startup, plus cron-scheduled refetches of any published
// spreadsheet sources.
type SyncService struct {
	store    *SQLite
	fetcher  *Fetcher
	dir      string
	sources  map[string]string
	schedule string
	logger   *slog.Logger
}

func NewSync(store *SQLite, fetcher *Fetcher, dir string, sources map[string]string, schedule string, logger *slog.Logger) *SyncService {
	if schedule == "" {
		schedule = "@every 30m"
	}
	return &SyncService{
		store:    store,
		fetcher:  fetcher,
		dir:      dir,
		sources:  sources,
		schedule: schedule,
		logger:   logger,
	}
}

// SyncOnce imports the local directory and refetches every remote source.
// Individual sheet failures are logged and skipped so one bad source cannot
// poison the rest of the mirror.
func (s *SyncService) SyncOnce(ctx context.Context) {
	if s.dir != "" {
		imported, err := s.store.ImportDir(ctx, s.dir)
		if err != nil {
			s.logger.Warn("sheet directory import failed", "dir", s.dir, "error", err)
		} else if len(imported) > 0 {
			s.logger.Info("sheet directory imported", "sheets", len(imported))
		}
	}
	for sheet, url := range s.sources {
		rows, err := s.fetcher.FetchSheet(ctx, sheet, url)
		if err != nil {
			s.logger.Warn("sheet fetch failed", "sheet", sheet, "error", err)
			continue
		}
		if err := s.store.ReplaceSheet(ctx, sheet, rows); err != nil {
			s.logger.Error("sheet replace failed", "sheet", sheet, "error", err)
			continue
		}
		s.logger.Info("sheet synced", "sheet", sheet, "rows", len(rows))
	}
}

func (s *SyncService) Start(ctx context.Context) error {
	s.SyncOnce(ctx)

	runner := cron.New()
	if _, err := runner.AddFunc(s.schedule, func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.SyncOnce(syncCtx)
	}); err != nil {
		s.logger.Error("invalid sheet sync schedule", "schedule", s.schedule, "error", err)
		<-ctx.Done()
		return nil
	}
	runner.Start()
	s.logger.Info("sheet sync started", "schedule", s.schedule, "sources", len(s.sources))

	<-ctx.Done()
	<-runner.Stop().Done()
	s.logger.Info("sheet sync stopped")
	return nil
}
