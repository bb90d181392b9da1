package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/medeiros-dev/reservation-notifier/configs"
	"github.com/medeiros-dev/reservation-notifier/internal/app/registry"
	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/offline"
	"github.com/medeiros-dev/reservation-notifier/pkg/lineproto"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

const (
	DriverName = "file"

	dirName       = "notifications"
	fileSuffix    = "_notifications.txt"
	maxRecordSize = 1 << 20
)

func init() {
	err := registry.RegisterStoreFactory(DriverName, func(cfg *configs.Config) (offline.Store, error) {
		return NewStore(cfg.DataDir), nil
	})
	if err != nil {
		logger.L().Fatal("Failed to register offline store driver", zap.String("driver", DriverName), zap.Error(err))
	}
}

// Store keeps one append-only text log per user under <baseDir>/notifications.
type Store struct {
	dir   string
	locks *keyedMutex
	now   func() time.Time
}

var _ offline.Store = (*Store)(nil)

// NewStore builds a store rooted at baseDir. The notifications directory is
// created on the first Save. An empty baseDir yields a store whose every call
// fails with domain.ErrStoreNotConfigured.
func NewStore(baseDir string) *Store {
	s := &Store{locks: newKeyedMutex(), now: time.Now}
	if baseDir != "" {
		s.dir = filepath.Join(baseDir, dirName)
	}
	return s
}

// Dir returns the notifications directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) ready() error {
	if s.dir == "" {
		return domain.ErrStoreNotConfigured
	}
	return nil
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.dir, url.PathEscape(userID)+fileSuffix)
}

func (s *Store) Save(ctx context.Context, userID string, n domain.Notification) error {
	if err := s.ready(); err != nil {
		return err
	}
	record := lineproto.EncodeRecord(n) + "\n"

	unlock := s.locks.lock(userID)
	defer unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create notifications dir: %w", err)
	}
	f, err := os.OpenFile(s.path(userID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open offline log for %q: %w", userID, err)
	}
	if _, err := f.WriteString(record); err != nil {
		f.Close()
		return fmt.Errorf("append offline record for %q: %w", userID, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync offline log for %q: %w", userID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close offline log for %q: %w", userID, err)
	}

	logger.L().Debug("Offline notification saved",
		zap.String("userID", userID),
		zap.String("kind", string(n.Kind)),
		logger.TraceField(ctx),
	)
	return nil
}

func (s *Store) Load(ctx context.Context, userID string) ([]domain.Notification, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()
	return s.read(ctx, userID)
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	unlock := s.locks.lock(userID)
	defer unlock()
	return s.remove(userID)
}

func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	items, err := s.Load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Store) Drain(ctx context.Context, userID string) ([]domain.Notification, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	items, err := s.read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.remove(userID); err != nil {
		return nil, err
	}
	return items, nil
}

// SweepOlderThan deletes every log whose mtime is strictly before now-horizon.
// Failures on single files are collected and the sweep goes on.
func (s *Store) SweepOlderThan(ctx context.Context, horizon time.Duration) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list notifications dir: %w", err)
	}

	cutoff := s.now().Add(-horizon)
	deleted := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		userID, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			userID = name
		}

		removed, err := s.sweepOne(userID, filepath.Join(s.dir, name), cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if removed {
			deleted++
		}
	}

	if deleted > 0 {
		logger.L().Info("Swept stale offline logs",
			zap.Int("deleted", deleted),
			zap.Time("cutoff", cutoff),
			logger.TraceField(ctx),
		)
	}
	return deleted, errors.Join(errs...)
}

func (s *Store) sweepOne(userID, path string, cutoff time.Time) (bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.ModTime().Before(cutoff) {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove %s: %w", path, err)
	}
	return true, nil
}

// read must be called with userID's lock held.
func (s *Store) read(ctx context.Context, userID string) ([]domain.Notification, error) {
	f, err := os.Open(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open offline log for %q: %w", userID, err)
	}
	defer f.Close()

	items := []domain.Notification{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), maxRecordSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !lineproto.IsRecordLine(line) {
			continue
		}
		n, err := lineproto.DecodeRecord(userID, line)
		if err != nil {
			logger.L().Warn("Skipping corrupt offline record",
				zap.String("userID", userID),
				zap.Int("line", lineNo),
				logger.TraceField(ctx),
				zap.Error(err),
			)
			continue
		}
		items = append(items, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read offline log for %q: %w", userID, err)
	}
	return items, nil
}

// remove must be called with userID's lock held.
func (s *Store) remove(userID string) error {
	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove offline log for %q: %w", userID, err)
	}
	return nil
}
