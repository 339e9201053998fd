// Package api reports player status to a remote server as a periodic
// heartbeat. Delivery is best effort: failures are logged and the next
// tick tries again.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"usbloop/internal/config"

	"github.com/charmbracelet/log"
)

// Status is the playback part of a heartbeat.
type Status struct {
	Folder   string `json:"folder"`
	State    string `json:"state"`
	Index    int    `json:"index"`
	File     string `json:"file"`
	Total    int    `json:"total"`
	Rotation int    `json:"rotation"`
}

// StatusFunc returns the current status. It must be safe to call from
// any goroutine.
type StatusFunc func() Status

// Heartbeat is the payload sent to the remote server on each tick.
type Heartbeat struct {
	ID        string  `json:"id"`
	Key       string  `json:"key,omitempty"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime_sec"`
	Version   string  `json:"version"`
	Arch      string  `json:"arch"`
	OS        string  `json:"os"`
	Status
}

// Client posts heartbeats to <endpoint>/heartbeat.
type Client struct {
	cfg     config.Heartbeat
	version string
	status  StatusFunc
	startAt time.Time
	httpCli *http.Client
	log     *log.Logger
}

// NewClient creates a heartbeat client. cfg.IntervalSec <= 0 means 60s.
func NewClient(cfg config.Heartbeat, version string, status StatusFunc, logger *log.Logger) *Client {
	if cfg.IntervalSec <= 0 {
		cfg.IntervalSec = 60
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{
		cfg:     cfg,
		version: version,
		status:  status,
		startAt: time.Now(),
		httpCli: &http.Client{Timeout: 10 * time.Second},
		log:     logger.WithPrefix("heartbeat"),
	}
}

// Interval returns the configured period between heartbeats.
func (c *Client) Interval() time.Duration {
	return time.Duration(c.cfg.IntervalSec) * time.Second
}

// Run sends one heartbeat immediately and then one per interval until
// ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Interval())
	defer ticker.Stop()

	c.log.Info("started", "endpoint", c.cfg.Endpoint, "every", c.Interval())
	c.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Client) tick(ctx context.Context) {
	if err := c.Send(ctx); err != nil {
		c.log.Warn("heartbeat failed", "err", err)
		return
	}
	c.log.Debug("heartbeat sent")
}

// Send posts a single heartbeat.
func (c *Client) Send(ctx context.Context) error {
	if c.cfg.Endpoint == "" || c.cfg.ID == "" {
		return fmt.Errorf("missing endpoint or id")
	}

	hb := Heartbeat{
		ID:        c.cfg.ID,
		Key:       c.cfg.Key,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(c.startAt).Seconds(),
		Version:   c.version,
		Arch:      runtime.GOARCH,
		OS:        runtime.GOOS,
	}
	if c.status != nil {
		hb.Status = c.status()
	}

	body, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/heartbeat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("post heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat response: %d", resp.StatusCode)
	}
	return nil
}
