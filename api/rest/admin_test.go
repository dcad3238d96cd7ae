package rest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pantrysnap/server/api/rest"
	mw "github.com/pantrysnap/server/middleware"
	"github.com/pantrysnap/server/model"
	"github.com/pantrysnap/server/scheduler"
	"github.com/pantrysnap/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newAdminRouter(t *testing.T, adminKey string, adminIPs []string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)
	sched.AddTicker("activity_prune", time.Hour, func() {})

	h := rest.NewAdminHandler(db, sched, zap.NewNop())
	r := gin.New()
	adminG := r.Group("/api/admin")
	adminG.Use(mw.IPWhitelist(adminIPs), rest.AdminAuth(adminKey))
	adminG.GET("/metrics", h.Metrics)
	adminG.POST("/users/:id/disable", h.DisableUser)
	return r, db
}

func adminReq(r *gin.Engine, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuthDisabledWithoutKey(t *testing.T) {
	r, _ := newAdminRouter(t, "", nil)

	w := adminReq(r, http.MethodGet, "/api/admin/metrics", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminAuthWrongKey(t *testing.T) {
	r, _ := newAdminRouter(t, "hunter2", nil)

	w := adminReq(r, http.MethodGet, "/api/admin/metrics", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminIPBlocked(t *testing.T) {
	r, _ := newAdminRouter(t, "hunter2", []string{"10.0.0.1"})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/metrics", nil)
	req.Header.Set("X-Admin-Key", "hunter2")
	req.Header.Set("X-Real-IP", "1.2.3.4")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminMetrics(t *testing.T) {
	r, db := newAdminRouter(t, "hunter2", nil)

	require.NoError(t, db.Create(&model.User{Email: "a@example.com", PasswordHash: "x", Status: 1}).Error)
	require.NoError(t, db.Create(&model.Item{OwnerID: 1, Name: "apple", Quantity: 2}).Error)
	require.NoError(t, db.Create(&model.Item{OwnerID: 1, Name: "milk", Quantity: 1}).Error)

	w := adminReq(r, http.MethodGet, "/api/admin/metrics", "hunter2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["users"])
	assert.EqualValues(t, 2, resp["items"])
	assert.Contains(t, resp["scheduler_tasks"], "activity_prune")
}

func TestAdminDisableAndReenableUser(t *testing.T) {
	r, db := newAdminRouter(t, "hunter2", nil)

	user := model.User{Email: "b@example.com", PasswordHash: "x", Status: 1}
	require.NoError(t, db.Create(&user).Error)

	w := postJSON(r, "/api/admin/users/1/disable", map[string]bool{"disable": true},
		"X-Admin-Key", "hunter2")
	require.Equal(t, http.StatusOK, w.Code)

	var got model.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, 0, got.Status)

	w = postJSON(r, "/api/admin/users/1/disable", map[string]bool{"disable": false},
		"X-Admin-Key", "hunter2")
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, 1, got.Status)
}

func TestAdminDisableUnknownUser(t *testing.T) {
	r, _ := newAdminRouter(t, "hunter2", nil)

	w := adminReq(r, http.MethodPost, "/api/admin/users/999/disable", "hunter2")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = adminReq(r, http.MethodPost, "/api/admin/users/abc/disable", "hunter2")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
