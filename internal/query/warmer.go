package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vantutran2k1/rsql/internal/filterstore"
	"github.com/vantutran2k1/rsql/pkg/logger"
	"github.com/vantutran2k1/rsql/pkg/metrics"
)

// FilterSource lists saved filters that are due for a check, records the
// outcome and counts filters by their last recorded status.
type FilterSource interface {
	Due(ctx context.Context, every time.Duration) ([]filterstore.Filter, error)
	MarkChecked(ctx context.Context, id int64, status, lastError string) error
	CountByStatus(ctx context.Context, status string) (int, error)
}

type Notifier interface {
	Notify(ctx context.Context, f filterstore.Filter, message string) error
}

// WebhookNotifier posts {"filter": name, "message": msg} to a fixed URL.
type WebhookNotifier struct {
	client *http.Client
	url    string
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, f filterstore.Filter, message string) error {
	payload, err := json.Marshal(map[string]string{"filter": f.Name, "message": message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook failed with status code %d", resp.StatusCode)
	}
	return nil
}

type WarmerConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WebhookURL string        `mapstructure:"webhook_url"`
}

// Warmer periodically recompiles saved filters. This keeps their results in
// the cache and flags filters that stopped compiling, for example after a
// schema change.
type Warmer struct {
	source   FilterSource
	service  *Service
	notifier Notifier
	config   WarmerConfig
}

// NewWarmer accepts a nil notifier.
func NewWarmer(source FilterSource, service *Service, notifier Notifier, cfg WarmerConfig) *Warmer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Warmer{source: source, service: service, notifier: notifier, config: cfg}
}

func (w *Warmer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("filter warmer stopping")
			return nil
		case <-ticker.C:
			if err := w.check(ctx); err != nil {
				logger.Error("error checking saved filters", "error", err)
			}
		}
	}
}

func (w *Warmer) check(ctx context.Context) error {
	filters, err := w.source.Due(ctx, w.config.Interval)
	if err != nil {
		return fmt.Errorf("failed to get saved filters: %w", err)
	}

	ctx = context.WithValue(ctx, logger.KeyNameKey, "warmer")
	for _, f := range filters {
		status, lastErr := w.compile(ctx, f)

		switch {
		case status == filterstore.StatusBroken && f.Status != filterstore.StatusBroken:
			logger.Warn("saved filter broke", "filter", f.Name, "error", lastErr)
			w.notify(ctx, f, fmt.Sprintf("saved filter %s no longer compiles: %s", f.Name, lastErr))
		case status == filterstore.StatusOK && f.Status == filterstore.StatusBroken:
			logger.Info("saved filter recovered", "filter", f.Name)
			w.notify(ctx, f, fmt.Sprintf("saved filter %s compiles again", f.Name))
		}

		if err := w.source.MarkChecked(ctx, f.ID, status, lastErr); err != nil {
			logger.Error("failed to record saved filter status", "filter", f.Name, "error", err)
		}
	}

	// Filters that were not due keep their last status, so the gauge is
	// read back from the store rather than counted from this pass.
	broken, err := w.source.CountByStatus(ctx, filterstore.StatusBroken)
	if err != nil {
		return fmt.Errorf("failed to count broken saved filters: %w", err)
	}
	metrics.SavedFiltersBroken.Set(float64(broken))
	return nil
}

func (w *Warmer) compile(ctx context.Context, f filterstore.Filter) (string, string) {
	target, err := ParseTarget(f.Target)
	if err != nil {
		return filterstore.StatusBroken, err.Error()
	}

	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if _, _, err := w.service.Compile(ctx, Request{Filter: f.Expression, Target: target}); err != nil {
		return filterstore.StatusBroken, err.Error()
	}
	return filterstore.StatusOK, ""
}

func (w *Warmer) notify(ctx context.Context, f filterstore.Filter, msg string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, f, msg); err != nil {
		logger.Error("notify error", "filter", f.Name, "error", err)
	}
}
