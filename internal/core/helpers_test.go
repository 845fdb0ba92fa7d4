package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pidcheck/internal/catalog"
	"pidcheck/internal/ctxlog"
	"pidcheck/pkg/domain"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	cat, err := catalog.Builtin(catalog.WithLogger(ctxlog.Discard()))
	if err != nil {
		t.Fatalf("builtin catalog: %v", err)
	}
	return NewService(cat, append([]Option{WithLogger(ctxlog.Discard())}, opts...)...)
}

func raw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func pipe(id string, diameter, rating float64) domain.InstancePayload {
	return domain.InstancePayload{ID: id, Type: "pipe", Parameters: map[string]json.RawMessage{
		"diameter":        raw(diameter),
		"pressure_rating": raw(rating),
	}}
}

func link(from, fromPort, to, toPort string) domain.Connection {
	return domain.Connection{
		From: domain.PortRef{Instance: from, Port: fromPort},
		To:   domain.PortRef{Instance: to, Port: toPort},
	}
}

// pipeLoop is two pipes feeding each other: every port is connected and every
// constraint can be decided.
func pipeLoop(id string, firstDiameter float64) domain.SchematicPayload {
	return domain.SchematicPayload{
		ID:         id,
		Name:       "recirculation loop",
		Components: []domain.InstancePayload{pipe("p1", firstDiameter, 10), pipe("p2", 50, 10)},
		Connections: []domain.Connection{
			link("p1", "outlet", "p2", "inlet"),
			link("p2", "outlet", "p1", "inlet"),
		},
	}
}

type captureMetricsRecorder struct {
	mu      sync.Mutex
	entries []metricsEntry
}

type metricsEntry struct {
	op      string
	success bool
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, metricsEntry{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.op == op && e.success == success {
			return true
		}
	}
	return false
}

type captureReportObserver struct {
	statuses []domain.Status
}

func (c *captureReportObserver) ObserveReport(status domain.Status) {
	c.statuses = append(c.statuses, status)
}
