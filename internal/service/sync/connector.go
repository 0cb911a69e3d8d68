package sync

import (
	"context"

	"idsync/internal/domain"
)

// Registry is a map-backed ConnectorRegistry. Connectors register under the
// connected system's name during wiring, before any run starts; Register is
// not safe to call concurrently with For.
type Registry struct {
	connectors map[string]domain.Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]domain.Connector)}
}

// Register binds a connector to a system name, replacing any previous one.
func (r *Registry) Register(systemName string, c domain.Connector) {
	r.connectors[systemName] = c
}

func (r *Registry) For(systemName string) (domain.Connector, error) {
	c, ok := r.connectors[systemName]
	if !ok {
		return nil, domain.ErrNotFound("no connector registered for system %q", systemName)
	}
	return c, nil
}

// StaticConnector serves a fixed record set. It backs tests and the demo
// seed; real connectors live outside this repo behind the same interface.
type StaticConnector struct {
	Records []domain.RawRecord
	// Changed holds the delta subset. Nil means the connector cannot do
	// deltas and serves the full set, per the Connector contract.
	Changed []domain.RawRecord
	// Err, when set, is returned by both operations.
	Err error
}

func (c *StaticConnector) FullImport(ctx context.Context) ([]domain.RawRecord, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Records, nil
}

func (c *StaticConnector) DeltaImport(ctx context.Context) ([]domain.RawRecord, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Changed == nil {
		return c.Records, nil
	}
	return c.Changed, nil
}
