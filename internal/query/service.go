package query

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vantutran2k1/rsql/internal/audit"
	"github.com/vantutran2k1/rsql/pkg/auth"
	"github.com/vantutran2k1/rsql/pkg/logger"
	"github.com/vantutran2k1/rsql/pkg/metrics"
)

const serviceName = "rsql-query"

// Publisher sends audit events.
type Publisher interface {
	Publish(ctx context.Context, e audit.Event) error
}

type Service struct {
	compiler  *Compiler
	cache     Cache
	publisher Publisher
	group     singleflight.Group
}

type ServiceOption func(*Service)

func WithCache(c Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

func NewService(c *Compiler, opts ...ServiceOption) *Service {
	s := &Service{compiler: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile returns the result for req and whether it came from the cache.
// Concurrent identical requests share one compilation. Cache and audit
// failures are logged and never fail the call.
func (s *Service) Compile(ctx context.Context, req Request) (*Result, bool, error) {
	start := time.Now()
	ctx = context.WithValue(ctx, logger.FilterKey, req.Filter)
	event := audit.NewEvent(auth.KeyName(ctx), req.Filter, string(req.Target))

	res, cached, err := s.compile(ctx, req)

	event.Cached = cached
	event.Duration = time.Since(start)
	if err != nil {
		event.Fail(err)
	}
	s.publish(ctx, event)

	return res, cached, err
}

func (s *Service) compile(ctx context.Context, req Request) (*Result, bool, error) {
	key := s.compiler.Fingerprint() + "|" + req.Key()

	if s.cache != nil {
		res, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheRequestsTotal.WithLabelValues(serviceName, "error").Inc()
			logger.WarnContext(ctx, "cache lookup failed", "error", err)
		case ok:
			metrics.CacheRequestsTotal.WithLabelValues(serviceName, "hit").Inc()
			return res, true, nil
		default:
			metrics.CacheRequestsTotal.WithLabelValues(serviceName, "miss").Inc()
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		res, err := s.compiler.Compile(ctx, req)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, res); err != nil {
				logger.WarnContext(ctx, "failed to set cache", "error", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Result), false, nil
}

func (s *Service) publish(ctx context.Context, e audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.WarnContext(ctx, "failed to publish audit event", "event_id", e.ID, "error", err)
	}
}
