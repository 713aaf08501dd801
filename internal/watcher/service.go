// Package watcher reimports local sheet CSV files into the knowledge mirror
// as soon as they change on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

type Service struct {
	root     string
	logger   *slog.Logger
	onChange func(context.Context, string)
	watcher  *fsnotify.Watcher
}

func New(root string, logger *slog.Logger, onChange func(context.Context, string)) (*Service, error) {
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Service{
		root:     root,
		logger:   logger,
		onChange: onChange,
		watcher:  fileWatcher,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create sheets dir: %w", err)
	}
	if err := s.watcher.Add(s.root); err != nil {
		return fmt.Errorf("watch path %s: %w", s.root, err)
	}
	s.logger.Info("sheet watcher started", "root", s.root)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sheet watcher stopped")
			return nil
		case event := <-s.watcher.Events:
			s.handleEvent(ctx, event)
		case err := <-s.watcher.Errors:
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
			}
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	s.logger.Info("sheet file changed", "path", event.Name, "op", event.Op.String())
	s.onChange(ctx, event.Name)
}
