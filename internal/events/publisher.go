// Package events fans job lifecycle transitions out to interested
// subscribers over NATS core pub/sub. Publishing is best-effort: a broker
// hiccup never affects scheduling.
package events

import "jobspool/internal/job"

// Publisher delivers lifecycle events to an external audience.
type Publisher interface {
	Publish(ev job.Event) error
	Close()
}

// Nop discards all events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(job.Event) error { return nil }
func (Nop) Close()                  {}
