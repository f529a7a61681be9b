// Package api exposes the prepd control plane over HTTP: agent check-in and
// task delivery, the administrator's assignment and checklist endpoints, and
// the catalog read surface.
package api

import (
	"errors"
	"log"
	"time"

	"prepd/pkg/bus"
	"prepd/pkg/store"
	"prepd/services/assignor"
	"prepd/services/ledger"
	"prepd/services/registry"
	"prepd/services/reporter"
)

const defaultRequestTimeout = 5 * time.Second

// Config controls runtime behaviour for the API handlers.
type Config struct {
	// AllowUnknownChecklistItems loosens bulk checklist validation; see
	// ledger.Config.
	AllowUnknownChecklistItems bool
}

// API wires the domain services and configuration for the HTTP handlers.
type API struct {
	store    store.Store
	registry *registry.Registry
	ledger   *ledger.Ledger
	assignor *assignor.Assignor
	reporter *reporter.Reporter
	bus      *bus.Bus
	logger   *log.Logger
}

// New initialises the API layer. events and logger may be nil; event publishes
// are best-effort and logging falls back to the standard logger.
func New(st store.Store, presign assignor.Presigner, events *bus.Bus, logger *log.Logger, cfg Config) (*API, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	reg, err := registry.New(st)
	if err != nil {
		return nil, err
	}
	led, err := ledger.New(st, ledger.Config{AllowUnknownItems: cfg.AllowUnknownChecklistItems})
	if err != nil {
		return nil, err
	}
	asg, err := assignor.New(st, presign)
	if err != nil {
		return nil, err
	}
	rep, err := reporter.New(st)
	if err != nil {
		return nil, err
	}

	return &API{
		store:    st,
		registry: reg,
		ledger:   led,
		assignor: asg,
		reporter: rep,
		bus:      events,
		logger:   logger,
	}, nil
}
