package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/pkg/models"
)

// Client posts analysis results to a webhook with connection pooling
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	bufferPool sync.Pool // JSON marshaling buffers
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new webhook client with optimized connection pooling
func NewClient(url string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},

		ResponseHeaderTimeout: 30 * time.Second,

		// payloads are small
		DisableCompression: true,
		ForceAttemptHTTP2:  false,
	}

	c := &Client{
		url: url,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		logger: slog.Default(),
		now:    time.Now,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 1024))
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "webhook"))
	return c
}

// Send posts one result. Any non-2xx response is an error.
func (c *Client) Send(ctx context.Context, item models.WebhookItem) error {
	payload := c.Payload(item)

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal webhook data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("webhook sent",
		slog.String("request_id", item.RequestID),
		slog.String("kind", payload.Kind),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}

// Payload builds the JSON body for item. Non-finite values become null.
func (c *Client) Payload(item models.WebhookItem) models.WebhookPayload {
	p := models.WebhookPayload{
		ID:           item.RequestID,
		Time:         c.now().Format(time.RFC3339Nano),
		BatchID:      item.BatchID,
		SampleID:     item.SampleID,
		Index:        item.Index,
		Kind:         tafelcore.ErrorKind(item.Err),
		ProcessingMs: float64(item.ProcessingTime.Nanoseconds()) / 1e6,
	}
	if item.Err != nil {
		p.Error = item.Err.Error()
		return p
	}
	if item.Analysis == nil {
		p.Kind = "internal"
		p.Error = "missing analysis"
		return p
	}

	an := item.Analysis
	s := an.Summary
	boundary := an.Boundary
	window := an.Window

	p.Success = true
	p.Boundary = &boundary
	p.Window = &window
	p.TafelSlope = sanitizeFloat(s.TafelSlope)
	p.Intercept = sanitizeFloat(s.Intercept)
	p.R = sanitizeFloat(s.R)
	p.StdErr = sanitizeFloat(s.StdErr)
	p.PotentialAtRef = sanitizeFloat(s.PotentialAtRef)
	p.OverpotentialAtRef = sanitizeFloat(s.OverpotentialAtRef)
	if s.ExchangeCurrentDensity != nil {
		p.ExchangeCurrentDensity = sanitizeFloat(*s.ExchangeCurrentDensity)
	}
	if s.Onset != nil {
		p.Onset = sanitizeFloat(*s.Onset)
	}
	p.Warnings = s.Warnings
	return p
}

// sanitizeFloat drops values JSON cannot represent
func sanitizeFloat(value float64) *float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}
