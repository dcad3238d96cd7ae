package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/pantrysnap/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrEmptyName is returned when an item name is empty after normalization.
	ErrEmptyName = errors.New("inventory: item name is empty")
	// ErrStoreUnavailable wraps any database failure; the caller's view
	// is left untouched and no partial write is visible.
	ErrStoreUnavailable = errors.New("inventory: store unavailable")
)

// Normalize returns the storage key for an item name: trimmed and
// lowercased. The key is the canonical name; the display form is
// derived from it, never stored.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// DisplayName capitalizes the first rune of a normalized name for
// presentation.
func DisplayName(name string) string {
	r := []rune(name)
	if len(r) == 0 {
		return name
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Service keeps per-owner item state consistent with the database.
// Each mutation is transactional and uses relative update expressions,
// so concurrent increments from two sessions both land (no lost
// updates from the read-then-write pattern).
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates an inventory Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// List returns all items owned by ownerID in insertion order.
// An owner with no items gets an empty slice, not an error.
func (s *Service) List(ctx context.Context, ownerID int64) ([]model.Item, error) {
	items := make([]model.Item, 0)
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at, id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return items, nil
}

// Increment adds one unit of the named item, creating it with
// quantity 1 if absent. It returns the item as persisted.
func (s *Service) Increment(ctx context.Context, ownerID int64, rawName string) (*model.Item, error) {
	name := Normalize(rawName)
	if name == "" {
		return nil, ErrEmptyName
	}

	var item model.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("owner_id = ? AND name = ?", ownerID, name).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			item = model.Item{OwnerID: ownerID, Name: name, Quantity: 1}
			createErr := tx.Create(&item).Error
			if createErr == nil {
				return nil
			}
			// Unique violation: another session created the row between
			// our read and write. Fall through to the relative update.
			if !isUniqueViolation(createErr) {
				return createErr
			}
			return s.bump(tx, ownerID, name, &item)
		}
		if err != nil {
			return err
		}
		return s.bump(tx, ownerID, name, &item)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("item incremented",
		zap.Int64("owner_id", ownerID),
		zap.String("name", name),
		zap.Int("quantity", item.Quantity))
	return &item, nil
}

// bump applies quantity = quantity + 1 relative to the stored value
// and re-reads the row.
func (s *Service) bump(tx *gorm.DB, ownerID int64, name string, item *model.Item) error {
	err := tx.Model(&model.Item{}).
		Where("owner_id = ? AND name = ?", ownerID, name).
		Update("quantity", gorm.Expr("quantity + ?", 1)).Error
	if err != nil {
		return err
	}
	return tx.Where("owner_id = ? AND name = ?", ownerID, name).First(item).Error
}

// Decrement removes one unit of the named item. A row at quantity 1 is
// deleted rather than kept at zero. Decrementing a missing item is an
// idempotent no-op (nil item, removed=false), not an error.
//
// The returned item is nil when the row no longer exists; removed
// reports whether this call deleted it.
func (s *Service) Decrement(ctx context.Context, ownerID int64, rawName string) (*model.Item, bool, error) {
	name := Normalize(rawName)
	if name == "" {
		return nil, false, ErrEmptyName
	}

	var (
		out     *model.Item
		removed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.Item
		err := tx.Where("owner_id = ? AND name = ?", ownerID, name).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if item.Quantity <= 1 {
			if err := tx.Delete(&model.Item{}, item.ID).Error; err != nil {
				return err
			}
			removed = true
			return nil
		}

		// The quantity > 1 guard keeps the row from ever reaching zero
		// even if another session decremented it since our read.
		res := tx.Model(&model.Item{}).
			Where("id = ? AND quantity > 1", item.ID).
			Update("quantity", gorm.Expr("quantity - ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Delete(&model.Item{}, item.ID).Error; err != nil {
				return err
			}
			removed = true
			return nil
		}
		if err := tx.First(&item, item.ID).Error; err != nil {
			return err
		}
		out = &item
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("item decremented",
		zap.Int64("owner_id", ownerID),
		zap.String("name", name),
		zap.Bool("removed", removed))
	return out, removed, nil
}

// Search filters a view by case-insensitive substring match on the
// item name. It is a pure function: an empty query returns the input
// unchanged and no database access happens either way.
func Search(items []model.Item, query string) []model.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), q) {
			out = append(out, it)
		}
	}
	return out
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
