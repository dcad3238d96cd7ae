package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/pantrysnap/server/audit"
	"github.com/pantrysnap/server/model"
	"github.com/pantrysnap/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogAndRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := audit.New(db, zap.NewNop())

	svc.Log(audit.Entry{OwnerID: 1, Action: "increment", ItemName: "apple", Quantity: 1})
	svc.Log(audit.Entry{OwnerID: 1, Action: "increment", ItemName: "apple", Quantity: 2})
	svc.Log(audit.Entry{OwnerID: 2, Action: "increment", ItemName: "milk", Quantity: 1})

	// Stop flushes the async batch.
	svc.Stop(context.Background())

	entries, err := svc.Recent(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, 2, entries[0].Quantity)
	assert.Equal(t, 1, entries[1].Quantity)
	for _, e := range entries {
		assert.Equal(t, "apple", e.ItemName)
	}
}

func TestRecentLimitClamped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := audit.New(db, zap.NewNop())

	for i := 0; i < 60; i++ {
		svc.Log(audit.Entry{OwnerID: 1, Action: "increment", ItemName: "rice"})
	}
	svc.Stop(context.Background())

	entries, err := svc.Recent(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 50)

	entries, err = svc.Recent(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestLogDetailSerialized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := audit.New(db, zap.NewNop())

	svc.Log(audit.Entry{
		OwnerID: 1,
		Action:  "batch_confirm",
		Detail:  map[string]int{"applied": 3},
	})
	svc.Stop(context.Background())

	entries, err := svc.Recent(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"applied":3}`, string(entries[0].Detail))
}

func TestPrune(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := audit.New(db, zap.NewNop())
	defer svc.Stop(context.Background())

	old := model.ActivityLog{OwnerID: 1, Action: "increment", CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := model.ActivityLog{OwnerID: 1, Action: "increment", CreatedAt: time.Now()}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&fresh).Error)

	require.NoError(t, svc.Prune(24*time.Hour))

	entries, err := svc.Recent(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fresh.ID, entries[0].ID)
}
