package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/types"
)

// PineconeConfig configures the Pinecone VectorStore implementation.
//
// To use Pinecone you need either:
// - BaseURL (data-plane host, e.g. https://<index>-<project>.svc.<region>.pinecone.io), or
// - Index, in which case the store will resolve host via the controller API.
type PineconeConfig struct {
	APIKey  string        `json:"api_key"`
	Index   string        `json:"index,omitempty"`    // Used to resolve BaseURL if BaseURL is empty
	BaseURL string        `json:"base_url,omitempty"` // Data-plane base URL (preferred if known)
	Timeout time.Duration `json:"timeout,omitempty"`

	ControllerBaseURL string `json:"controller_base_url,omitempty"` // Default: https://api.pinecone.io
}

// PineconeStore implements VectorStore using Pinecone's REST API.
type PineconeStore struct {
	cfg    PineconeConfig
	logger *zap.Logger
	client *http.Client

	mu      sync.RWMutex
	baseURL string
}

// NewPineconeStore creates a Pinecone-backed VectorStore.
func NewPineconeStore(cfg PineconeConfig, logger *zap.Logger) *PineconeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ControllerBaseURL == "" {
		cfg.ControllerBaseURL = "https://api.pinecone.io"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &PineconeStore{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "pinecone_store")),
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: baseURL,
	}
}

func (s *PineconeStore) ensureBaseURL(ctx context.Context) error {
	s.mu.RLock()
	if s.baseURL != "" {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	if strings.TrimSpace(s.cfg.Index) == "" {
		return types.NewError(types.ErrVectorStoreFailure, "pinecone base_url is required when index is empty")
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return types.NewError(types.ErrVectorStoreFailure, "pinecone api_key is required")
	}

	// Resolve host via controller API: GET /indexes/{index}
	controller := strings.TrimRight(strings.TrimSpace(s.cfg.ControllerBaseURL), "/")
	endpoint := fmt.Sprintf("%s/indexes/%s", controller, url.PathEscape(s.cfg.Index))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrVectorStoreFailure, "pinecone describe index failed").
			WithCause(err).WithProvider("pinecone").WithRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return types.FromHTTPStatus(resp.StatusCode, "pinecone", string(raw))
	}

	var describe struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&describe); err != nil {
		return err
	}
	host := strings.TrimSpace(describe.Host)
	if host == "" {
		return types.NewError(types.ErrVectorStoreFailure,
			fmt.Sprintf("pinecone controller returned empty host for index %q", s.cfg.Index))
	}

	baseURL := host
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	s.mu.Lock()
	s.baseURL = baseURL
	s.mu.Unlock()

	return nil
}

func (s *PineconeStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	if err := s.ensureBaseURL(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	baseURL := s.baseURL
	s.mu.RUnlock()
	endpoint := baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrVectorStoreFailure, "pinecone request failed").
			WithCause(err).WithProvider("pinecone").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return types.FromHTTPStatus(resp.StatusCode, "pinecone", string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *PineconeStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	payload := make([]pineconeVector, 0, len(vectors))
	for i, v := range vectors {
		if v.ID == "" {
			return types.NewError(types.ErrVectorStoreFailure, fmt.Sprintf("vector[%d] has empty id", i))
		}
		if len(v.Values) == 0 {
			return types.NewError(types.ErrVectorStoreFailure, fmt.Sprintf("vector[%d] has no values", i))
		}
		payload = append(payload, pineconeVector{ID: v.ID, Values: v.Values, Metadata: v.Metadata})
	}

	req := struct {
		Vectors   []pineconeVector `json:"vectors"`
		Namespace string           `json:"namespace,omitempty"`
	}{
		Vectors:   payload,
		Namespace: strings.TrimSpace(namespace),
	}

	if err := s.doJSON(ctx, http.MethodPost, "/vectors/upsert", req, nil); err != nil {
		return err
	}

	s.logger.Debug("vectors upserted",
		zap.String("namespace", namespace),
		zap.Int("count", len(vectors)))
	return nil
}

func (s *PineconeStore) Query(ctx context.Context, namespace string, vector []float64, topK int) ([]types.SearchMatch, error) {
	if topK <= 0 {
		return []types.SearchMatch{}, nil
	}
	if len(vector) == 0 {
		return nil, types.NewError(types.ErrVectorStoreFailure, "query vector is required")
	}

	req := struct {
		Vector          []float64 `json:"vector"`
		TopK            int       `json:"topK"`
		Namespace       string    `json:"namespace,omitempty"`
		IncludeMetadata bool      `json:"includeMetadata"`
	}{
		Vector:          vector,
		TopK:            topK,
		Namespace:       strings.TrimSpace(namespace),
		IncludeMetadata: true,
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata,omitempty"`
		} `json:"matches"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	out := make([]types.SearchMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := types.SearchMatch{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		}
		if m.Metadata != nil {
			if content, ok := m.Metadata[metadataContentField].(string); ok {
				match.Content = content
			}
		}
		out = append(out, match)
	}
	return out, nil
}

func (s *PineconeStore) DeleteVectors(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := struct {
		IDs       []string `json:"ids"`
		Namespace string   `json:"namespace,omitempty"`
	}{
		IDs:       ids,
		Namespace: strings.TrimSpace(namespace),
	}
	return s.doJSON(ctx, http.MethodPost, "/vectors/delete", req, nil)
}

func (s *PineconeStore) DeleteNamespace(ctx context.Context, namespace string) error {
	req := struct {
		DeleteAll bool   `json:"deleteAll"`
		Namespace string `json:"namespace,omitempty"`
	}{
		DeleteAll: true,
		Namespace: strings.TrimSpace(namespace),
	}
	return s.doJSON(ctx, http.MethodPost, "/vectors/delete", req, nil)
}

func (s *PineconeStore) Count(ctx context.Context, namespace string) (int, error) {
	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
		Namespaces       map[string]struct {
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/describe_index_stats", nil, &resp); err != nil {
		return 0, err
	}

	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return resp.TotalVectorCount, nil
	}
	if ns, ok := resp.Namespaces[namespace]; ok {
		return ns.VectorCount, nil
	}
	return 0, nil
}
