package repositories

import (
	"context"
	"encoding/json"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/maxaizer/funding-digest/internal/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// JSONSeenStore keeps the seen ids in a pretty-printed JSON object: {"<id>": "<YYYY-MM-DD>"}.
type JSONSeenStore struct {
	path       string
	maxAgeDays int
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewJSONSeenStore(path string, maxAgeDays int, log logrus.FieldLogger) *JSONSeenStore {
	return &JSONSeenStore{
		path:       path,
		maxAgeDays: maxAgeDays,
		now:        time.Now,
		log:        log.WithFields(logrus.Fields{"component": "seen_store", "path": path}),
	}
}

func (s *JSONSeenStore) SetClock(now func() time.Time) {
	s.now = now
}

// Load never fails: a missing file starts fresh, an unreadable or corrupt one is logged and ignored.
func (s *JSONSeenStore) Load(ctx context.Context) entities.SeenIDs {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.log.Info("no seen store yet, starting fresh")
		return entities.SeenIDs{}
	}
	if err != nil {
		s.log.WithField(logger.ErrorTypeField, logger.ErrorTypeStore).Warnf("failed to read seen store: %v", err)
		return entities.SeenIDs{}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		s.log.WithField(logger.ErrorTypeField, logger.ErrorTypeStore).Warnf("seen store is corrupt, starting fresh: %v", err)
		return entities.SeenIDs{}
	}

	seen := make(entities.SeenIDs, len(raw))
	var dropped []string
	for id, value := range raw {
		date, ok := value.(string)
		if !ok {
			dropped = append(dropped, id)
			continue
		}
		seen[id] = date
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		s.log.WithFields(logrus.Fields{logger.ErrorTypeField: logger.ErrorTypeStore, "ids": dropped}).
			Warn("seen store entries without a date string were dropped")
	}

	s.log.WithField("count", len(seen)).Debug("seen store loaded")
	return seen
}

// Save prunes entries older than the retention window and replaces the file.
func (s *JSONSeenStore) Save(ctx context.Context, seen entities.SeenIDs) error {
	kept, pruned := seen.Pruned(entities.Today(s.now()), s.maxAgeDays)

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode seen store")
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"kept": len(kept), "pruned": pruned}).Info("seen store saved")
	return nil
}

func (s *JSONSeenStore) Close() error {
	return nil
}

// writeFileAtomic writes through a temporary file in the target directory, so a crash never leaves a truncated store.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create seen store directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary seen store")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write seen store")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "write seen store")
	}

	return errors.Wrap(os.Rename(tmp.Name(), path), "replace seen store")
}
