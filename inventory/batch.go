package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pantrysnap/server/cache"
	"github.com/pantrysnap/server/model"
	"github.com/pantrysnap/server/vision"
	"go.uber.org/zap"
)

// ErrBatchNotFound is returned when a pending batch does not exist,
// belongs to another owner, or has expired.
var ErrBatchNotFound = errors.New("inventory: batch not found")

// Batch outcome statuses.
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// BatchOutcome is the result of one candidate in a confirmed batch.
type BatchOutcome struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"` // quantity after the increment
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// BatchResult reports a confirmed batch. Increments are individually
// durable: when one fails the run stops there, the applied prefix
// stays, and the remainder is marked skipped so the caller can retry
// just the suffix.
type BatchResult struct {
	Outcomes []BatchOutcome `json:"outcomes"`
	Applied  int            `json:"applied"`
}

// Incrementer applies a single increment. Satisfied by *Service.
type Incrementer interface {
	Increment(ctx context.Context, ownerID int64, rawName string) (*model.Item, error)
}

// Intake converts a captured image into a pending batch of candidate
// item names and commits or discards it on the owner's say-so. Pending
// batches live in the cache under an owner-scoped key with a TTL, so
// an abandoned capture expires as an implicit discard.
type Intake struct {
	inc     Incrementer
	labeler vision.Labeler
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewIntake creates a batch intake workflow.
func NewIntake(inc Incrementer, labeler vision.Labeler, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Intake {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Intake{inc: inc, labeler: labeler, cache: c, ttl: ttl, logger: logger}
}

func batchKey(ownerID int64, batchID string) string {
	return fmt.Sprintf("batch:%d:%s", ownerID, batchID)
}

// Detect labels the image and stores the candidates as a pending
// batch. When the service finds no labels, the empty candidate list is
// returned with an empty batch ID and nothing is stored: there is
// nothing to confirm.
func (in *Intake) Detect(ctx context.Context, ownerID int64, image []byte) (string, []string, error) {
	labels, err := in.labeler.Labels(ctx, image)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", vision.ErrDetectionUnavailable, err)
	}
	if len(labels) == 0 {
		return "", []string{}, nil
	}

	payload, err := json.Marshal(labels)
	if err != nil {
		return "", nil, err
	}
	batchID := uuid.New().String()
	if err := in.cache.Set(ctx, batchKey(ownerID, batchID), string(payload), in.ttl); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	in.logger.Info("batch detected",
		zap.Int64("owner_id", ownerID),
		zap.String("batch_id", batchID),
		zap.Int("candidates", len(labels)))
	return batchID, labels, nil
}

// Confirm applies the pending batch as increments, sequentially and in
// listed order. The first failure stops the run; nothing is rolled
// back. The batch entry is consumed either way.
func (in *Intake) Confirm(ctx context.Context, ownerID int64, batchID string) (*BatchResult, error) {
	key := batchKey(ownerID, batchID)
	raw, err := in.cache.Get(ctx, key)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var candidates []string
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		_ = in.cache.Del(ctx, key)
		return nil, ErrBatchNotFound
	}
	_ = in.cache.Del(ctx, key)

	result := &BatchResult{Outcomes: make([]BatchOutcome, 0, len(candidates))}
	failed := false
	for _, name := range candidates {
		if failed {
			result.Outcomes = append(result.Outcomes, BatchOutcome{Name: name, Status: OutcomeSkipped})
			continue
		}
		item, err := in.inc.Increment(ctx, ownerID, name)
		if err != nil {
			failed = true
			result.Outcomes = append(result.Outcomes, BatchOutcome{
				Name:   name,
				Status: OutcomeFailed,
				Error:  err.Error(),
			})
			continue
		}
		result.Applied++
		result.Outcomes = append(result.Outcomes, BatchOutcome{
			Name:     item.Name,
			Quantity: item.Quantity,
			Status:   OutcomeApplied,
		})
	}

	in.logger.Info("batch confirmed",
		zap.Int64("owner_id", ownerID),
		zap.String("batch_id", batchID),
		zap.Int("applied", result.Applied),
		zap.Bool("failed", failed))
	return result, nil
}

// Discard drops the pending batch without touching the store.
// Discarding an unknown or expired batch is a no-op.
func (in *Intake) Discard(ctx context.Context, ownerID int64, batchID string) error {
	return in.cache.Del(ctx, batchKey(ownerID, batchID))
}
