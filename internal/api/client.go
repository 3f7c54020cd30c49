// Package api talks to the technician REST endpoints and translates between
// the wire vocabulary (specialization/isActive) and the directory's own
// (skill/active). No other package sees wire field names.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/staff-directory/internal/technician"
)

const (
	techniciansPath    = "/api/technicians"
	requestIDHeader    = "X-Request-ID"
	maxErrorBodyBytes  = 2048
	defaultHTTPTimeout = 15 * time.Second
)

// Client is the technician collaborator consumed by the directory.
type Client interface {
	List(ctx context.Context) ([]technician.Record, error)
	Create(ctx context.Context, d technician.Draft) (technician.Record, error)
	Update(ctx context.Context, id string, p technician.Patch) (technician.Record, error)
	Delete(ctx context.Context, id string) error
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s failed: %s - %s", e.URL, e.Status, e.Body)
}

// HTTPClient implements Client over net/http.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	newID   func() string
}

// Option customizes HTTPClient construction.
type Option func(*HTTPClient)

// WithHTTPClient swaps the underlying *http.Client (transport, timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.http = c
		}
	}
}

// WithTimeout sets the per-request timeout on the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.http.Timeout = d
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *HTTPClient) {
		if l != nil {
			h.logger = l.Named("api")
		}
	}
}

// NewHTTPClient targets baseURL, e.g. http://127.0.0.1:5000.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		logger:  zap.NewNop(),
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// List handles GET /api/technicians.
func (h *HTTPClient) List(ctx context.Context) ([]technician.Record, error) {
	var wire []wireRecord
	if err := h.do(ctx, http.MethodGet, techniciansPath, nil, &wire); err != nil {
		return nil, err
	}
	records := make([]technician.Record, 0, len(wire))
	for _, w := range wire {
		records = append(records, w.record())
	}
	return records, nil
}

// Create handles POST /api/technicians.
func (h *HTTPClient) Create(ctx context.Context, d technician.Draft) (technician.Record, error) {
	body := createBody{
		Name:           d.Name,
		Phone:          d.Phone,
		Specialization: string(d.Skill),
		IsActive:       d.Active,
	}
	var created wireRecord
	if err := h.do(ctx, http.MethodPost, techniciansPath, body, &created); err != nil {
		return technician.Record{}, err
	}
	return created.record(), nil
}

// Update handles PATCH /api/technicians/:id, sending only present fields.
func (h *HTTPClient) Update(ctx context.Context, id string, p technician.Patch) (technician.Record, error) {
	body := patchBody{Name: p.Name, Phone: p.Phone, IsActive: p.Active}
	if p.Skill != nil {
		spec := string(*p.Skill)
		body.Specialization = &spec
	}
	var updated wireRecord
	if err := h.do(ctx, http.MethodPatch, recordPath(id), body, &updated); err != nil {
		return technician.Record{}, err
	}
	return updated.record(), nil
}

// Delete handles DELETE /api/technicians/:id.
func (h *HTTPClient) Delete(ctx context.Context, id string) error {
	return h.do(ctx, http.MethodDelete, recordPath(id), nil, nil)
}

func recordPath(id string) string {
	return techniciansPath + "/" + url.PathEscape(id)
}

func (h *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	target := h.baseURL + path
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	requestID := h.newID()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := h.http.Do(req)
	if err != nil {
		h.logger.Warn("request failed",
			zap.String("method", method), zap.String("path", path),
			zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	h.logger.Debug("request done",
		zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}
