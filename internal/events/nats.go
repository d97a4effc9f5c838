package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"jobspool/internal/job"
	logx "jobspool/pkg/logx"
)

const (
	eventJobPrefix  = "jobspool.events.job."
	eventAllSubject = "jobspool.events.all"
)

func eventJobSubject(name string) string { return eventJobPrefix + name }

// NATSPublisher publishes every event to a job-specific subject and to a
// global firehose subject, JSON-encoded.
type NATSPublisher struct {
	nc  *nats.Conn
	log logx.Logger
}

func Connect(url string, log logx.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("jobspool"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc, log: log}, nil
}

func (p *NATSPublisher) Publish(ev job.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(eventJobSubject(ev.Job), data); err != nil {
		p.log.Error("failed to publish job event", logx.Err(err), logx.String("job", ev.Job))
		return fmt.Errorf("publish event: %w", err)
	}
	if err := p.nc.Publish(eventAllSubject, data); err != nil {
		p.log.Error("failed to publish global event", logx.Err(err))
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
