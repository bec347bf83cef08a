// Package publish sends a summary of each pipeline run to NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/wardmap/aggregate"
)

// DefaultSubject is the subject reports are published on.
const DefaultSubject = "wardmap.report"

// Publisher delivers run reports.
type Publisher interface {
	Publish(ctx context.Context, r *Report) error
	Close() error
}

// Report is the message published after a successful run.
type Report struct {
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	CRS         string      `json:"crs"`
	Counties    int         `json:"counties"`
	Wards       int         `json:"wards"`
	Joined      int         `json:"joined"`
	Dropped     int         `json:"dropped"`
	ByCounty    []CountyRow `json:"by_county"`
	ByWard      []WardRow   `json:"by_ward"`
	Output      string      `json:"output"`
	Exports     []string    `json:"exports,omitempty"`
}

// CountyRow is one row of the per-county aggregate.
type CountyRow struct {
	County string  `json:"county"`
	Value  float64 `json:"value"`
}

// WardRow is one row of the per-county, per-ward aggregate.
type WardRow struct {
	County string  `json:"county"`
	Ward   string  `json:"ward"`
	Value  float64 `json:"value"`
}

// Rows copies the aggregates into the report. Rows with the wrong number
// of keys are skipped.
func (r *Report) Rows(byCounty, byWard *aggregate.Series) {
	r.ByCounty = r.ByCounty[:0]
	if byCounty != nil {
		for _, row := range byCounty.Rows {
			if len(row.Keys) != 1 {
				continue
			}
			r.ByCounty = append(r.ByCounty, CountyRow{County: row.Keys[0], Value: row.Value})
		}
	}
	r.ByWard = r.ByWard[:0]
	if byWard != nil {
		for _, row := range byWard.Rows {
			if len(row.Keys) != 2 {
				continue
			}
			r.ByWard = append(r.ByWard, WardRow{County: row.Keys[0], Ward: row.Keys[1], Value: row.Value})
		}
	}
}

// NATSPublisher publishes JSON reports on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("wardmap"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject, timeout: 5 * time.Second}, nil
}

// Subject returns the subject reports go to.
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// Publish marshals r and publishes it, waiting for the server to
// acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := p.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
