package vision_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pantrysnap/server/config"
	"github.com/pantrysnap/server/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLabeler(endpoint string) *vision.GoogleLabeler {
	return vision.NewGoogleLabeler(config.VisionConfig{
		Endpoint:   endpoint,
		APIKey:     "test-key",
		Timeout:    5 * time.Second,
		MaxResults: 5,
	})
}

func TestLabelsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req, "requests")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"responses": [{
				"labelAnnotations": [
					{"description": "Banana", "score": 0.98},
					{"description": "Fruit", "score": 0.95}
				]
			}]
		}`))
	}))
	defer srv.Close()

	labels, err := newLabeler(srv.URL).Labels(context.Background(), []byte("fake-image"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Banana", "Fruit"}, labels)
}

func TestLabelsNoAnnotations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"responses": [{}]}`))
	}))
	defer srv.Close()

	labels, err := newLabeler(srv.URL).Labels(context.Background(), []byte("fake-image"))
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestLabelsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newLabeler(srv.URL).Labels(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestLabelsAnnotateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"responses": [{"error": {"message": "bad image"}}]}`))
	}))
	defer srv.Close()

	_, err := newLabeler(srv.URL).Labels(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad image")
}

func TestLabelsUnreachable(t *testing.T) {
	_, err := newLabeler("http://127.0.0.1:1/annotate").Labels(context.Background(), []byte("fake-image"))
	assert.Error(t, err)
}
