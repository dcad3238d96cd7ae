// Package vision labels images through an external detection service.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pantrysnap/server/config"
)

// ErrDetectionUnavailable signals that the labeling call failed or
// timed out. An image with no recognizable labels is not an error.
var ErrDetectionUnavailable = errors.New("vision: label detection unavailable")

// Labeler can detect labels in an image.
type Labeler interface {
	// Labels returns human-readable label descriptions for the image,
	// most confident first. An empty slice means nothing was detected.
	Labels(ctx context.Context, image []byte) ([]string, error)
}

// GoogleLabeler calls the Google Vision images:annotate REST endpoint
// with LABEL_DETECTION.
type GoogleLabeler struct {
	endpoint   string
	apiKey     string
	maxResults int
	client     *http.Client
}

// NewGoogleLabeler creates a labeler from config.
func NewGoogleLabeler(cfg config.VisionConfig) *GoogleLabeler {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &GoogleLabeler{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string `json:"description"`
		} `json:"labelAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Labels implements Labeler.
func (g *GoogleLabeler) Labels(ctx context.Context, image []byte) ([]string, error) {
	body, err := json.Marshal(annotateRequest{
		Requests: []annotateEntry{{
			Image:    imageContent{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []feature{{Type: "LABEL_DETECTION", MaxResults: g.maxResults}},
		}},
	})
	if err != nil {
		return nil, err
	}

	url := g.endpoint
	if g.apiKey != "" {
		url += "?key=" + g.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("vision: annotate returned %d: %s", resp.StatusCode, snippet)
	}

	var ar annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, err
	}
	if len(ar.Responses) == 0 {
		return nil, nil
	}
	r := ar.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("vision: annotate error: %s", r.Error.Message)
	}

	labels := make([]string, 0, len(r.LabelAnnotations))
	for _, la := range r.LabelAnnotations {
		labels = append(labels, la.Description)
	}
	return labels, nil
}
