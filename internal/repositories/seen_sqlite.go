package repositories

import (
	"context"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/maxaizer/funding-digest/internal/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"time"
)

type SQLiteSeenStore struct {
	dbContext  *DbContext
	maxAgeDays int
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewSQLiteSeenStore(path string, maxAgeDays int, log logrus.FieldLogger) (*SQLiteSeenStore, error) {
	dbContext, err := NewDbContext(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seen database")
	}
	if err := dbContext.Migrate(); err != nil {
		_ = dbContext.Close()
		return nil, err
	}

	return &SQLiteSeenStore{
		dbContext:  dbContext,
		maxAgeDays: maxAgeDays,
		now:        time.Now,
		log:        log.WithFields(logrus.Fields{"component": "seen_store", "path": path}),
	}, nil
}

func (s *SQLiteSeenStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLiteSeenStore) Load(ctx context.Context) entities.SeenIDs {
	var records []entities.SeenRecord
	if err := s.dbContext.DB.WithContext(ctx).Find(&records).Error; err != nil {
		s.log.WithField(logger.ErrorTypeField, logger.ErrorTypeStore).Warnf("failed to read seen records, starting fresh: %v", err)
		return entities.SeenIDs{}
	}

	seen := make(entities.SeenIDs, len(records))
	for _, record := range records {
		seen[record.OpportunityID] = record.SeenOn
	}
	return seen
}

// Save replaces the table contents with the pruned mapping in one transaction.
func (s *SQLiteSeenStore) Save(ctx context.Context, seen entities.SeenIDs) error {
	kept, pruned := seen.Pruned(entities.Today(s.now()), s.maxAgeDays)

	records := make([]entities.SeenRecord, 0, len(kept))
	for id, date := range kept {
		records = append(records, entities.SeenRecord{OpportunityID: id, SeenOn: date})
	}

	err := s.dbContext.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entities.SeenRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 500).Error
	})
	if err != nil {
		return errors.Wrap(err, "save seen records")
	}

	s.log.WithFields(logrus.Fields{"kept": len(kept), "pruned": pruned}).Info("seen store saved")
	return nil
}

func (s *SQLiteSeenStore) Close() error {
	return s.dbContext.Close()
}
