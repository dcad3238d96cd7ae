// Package audit writes the inventory activity feed asynchronously.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pantrysnap/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry holds one activity event to be logged.
type Entry struct {
	TraceID  string
	OwnerID  int64
	Action   string
	ItemName string
	Quantity int
	Detail   interface{}
	Error    string
	IP       string
}

// Service logs activity entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.ActivityLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new activity Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.ActivityLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an activity entry for async DB write.
func (svc *Service) Log(entry Entry) {
	var detail datatypes.JSON
	if entry.Detail != nil {
		b, _ := json.Marshal(entry.Detail)
		detail = datatypes.JSON(b)
	}
	record := &model.ActivityLog{
		TraceID:  entry.TraceID,
		OwnerID:  entry.OwnerID,
		Action:   entry.Action,
		ItemName: entry.ItemName,
		Quantity: entry.Quantity,
		Detail:   detail,
		Error:    entry.Error,
		IP:       entry.IP,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("activity channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Recent returns the newest entries for one owner, newest first.
func (svc *Service) Recent(ctx context.Context, ownerID int64, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries := make([]model.ActivityLog, 0, limit)
	err := svc.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Prune deletes entries older than the retention window.
func (svc *Service) Prune(retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	res := svc.db.Where("created_at < ?", cutoff).Delete(&model.ActivityLog{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("activity log pruned", zap.Int64("deleted", res.RowsAffected))
	}
	return nil
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.ActivityLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("activity batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
