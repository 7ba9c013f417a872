package audit

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/vantutran2k1/rsql/pkg/metrics"
)

const DefaultSubject = "rsql.audit.compile"

type Publisher struct {
	nc      *nats.Conn
	subject string
}

func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

func (p *Publisher) Publish(_ context.Context, e Event) error {
	data, err := e.Marshal()
	if err != nil {
		metrics.AuditEventsTotal.WithLabelValues("publish", OutcomeError).Inc()
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		metrics.AuditEventsTotal.WithLabelValues("publish", OutcomeError).Inc()
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	metrics.AuditEventsTotal.WithLabelValues("publish", OutcomeOK).Inc()
	return nil
}
