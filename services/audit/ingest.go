// Package audit consumes provisioning events from NATS and writes an audit
// trail to the database: who checked in, what changed on the checklist, and
// how install runs ended.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prepd/pkg/bus"
	"prepd/pkg/db"
)

const durablePrefix = "audit"

// Ingestor subscribes to the prepd event subjects and records one audit row
// per event. Handler errors NAK the message, so a flaky database retries
// instead of dropping history.
type Ingestor struct {
	pool *pgxpool.Pool
	bus  *bus.Bus

	subMu sync.Mutex
	subs  []io.Closer
}

// NewIngestor constructs an Ingestor for the provided dependencies.
func NewIngestor(pool *pgxpool.Pool, eventBus *bus.Bus) (*Ingestor, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	if eventBus == nil {
		return nil, errors.New("bus is required")
	}
	return &Ingestor{pool: pool, bus: eventBus}, nil
}

// Start subscribes to all audited subjects and processes events until ctx is
// cancelled.
func (i *Ingestor) Start(ctx context.Context) error {
	if i == nil {
		return errors.New("nil ingestor")
	}

	subjects := map[string]func(context.Context, []byte) error{
		bus.SubjectMachineCheckin:   i.handleCheckin,
		bus.SubjectChecklistUpdated: i.handleChecklist,
		bus.SubjectReportSubmitted:  i.handleReport,
	}

	for subj, handler := range subjects {
		sub, err := i.bus.Subscribe(ctx, subj, durablePrefix+"-"+subj, handler)
		if err != nil {
			i.Close()
			return err
		}
		i.subMu.Lock()
		i.subs = append(i.subs, sub)
		i.subMu.Unlock()
	}
	return nil
}

// Close stops every active subscription.
func (i *Ingestor) Close() error {
	if i == nil {
		return nil
	}

	i.subMu.Lock()
	defer i.subMu.Unlock()

	var firstErr error
	for _, sub := range i.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	i.subs = nil
	return firstErr
}

type checkinEvent struct {
	MachineID uuid.UUID `json:"machine_id"`
	Hostname  string    `json:"hostname"`
	Created   bool      `json:"created"`
}

func (i *Ingestor) handleCheckin(ctx context.Context, data []byte) error {
	var evt checkinEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	if evt.MachineID == uuid.Nil {
		return errors.New("machine_id missing from event")
	}

	action := "machine_checkin"
	if evt.Created {
		action = "machine_enrolled"
	}

	previous, err := i.previousDetails(ctx, evt.MachineID.String(), action)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	current := map[string]any{
		"hostname": evt.Hostname,
		"created":  evt.Created,
	}

	return i.insertAudit(ctx, "agent", action, evt.MachineID.String(), map[string]any{
		"hostname": evt.Hostname,
		"changes":  computeDiff(previous, current),
	})
}

type checklistEvent struct {
	MachineID     uuid.UUID `json:"machine_id"`
	Applied       int       `json:"applied"`
	OverallStatus string    `json:"overall_status"`
}

func (i *Ingestor) handleChecklist(ctx context.Context, data []byte) error {
	var evt checklistEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	if evt.MachineID == uuid.Nil {
		return errors.New("machine_id missing from event")
	}

	return i.insertAudit(ctx, "technician", "checklist_updated", evt.MachineID.String(), map[string]any{
		"applied":        evt.Applied,
		"overall_status": evt.OverallStatus,
	})
}

type reportEvent struct {
	MachineID     uuid.UUID `json:"machine_id"`
	Hostname      string    `json:"hostname"`
	Status        string    `json:"status"`
	OverallStatus string    `json:"overall_status"`
}

func (i *Ingestor) handleReport(ctx context.Context, data []byte) error {
	var evt reportEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}

	obj := evt.MachineID.String()
	if evt.MachineID == uuid.Nil {
		obj = evt.Hostname
	}
	if obj == "" {
		return errors.New("machine reference missing from event")
	}

	return i.insertAudit(ctx, "agent", "report_submitted", obj, map[string]any{
		"status":         evt.Status,
		"overall_status": evt.OverallStatus,
	})
}

// previousDetails loads the most recent audit details for the same object and
// action so the new row can carry a field-level diff.
func (i *Ingestor) previousDetails(ctx context.Context, obj, action string) (map[string]any, error) {
	var raw []byte
	err := db.Get(ctx, i.pool, &raw, `
SELECT details
FROM audit
WHERE obj = $1 AND action = $2
ORDER BY at DESC
LIMIT 1
`, obj, action)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, err
	}
	// Diff against the recorded change target, not the envelope.
	if changes, ok := details["changes"].(map[string]any); ok {
		flattened := make(map[string]any, len(changes))
		for key, entry := range changes {
			if pair, ok := entry.(map[string]any); ok {
				flattened[key] = pair["new"]
			}
		}
		return flattened, nil
	}
	return details, nil
}

func (i *Ingestor) insertAudit(ctx context.Context, actor, action, obj string, details map[string]any) error {
	detailsBytes, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, i.pool, `
INSERT INTO audit (actor, action, obj, details, at)
VALUES ($1, $2, $3, $4::jsonb, $5)
`, actor, action, obj, detailsBytes, time.Now().UTC())
	return err
}

func computeDiff(previous, current map[string]any) map[string]map[string]any {
	if previous == nil {
		previous = map[string]any{}
	}
	if current == nil {
		current = map[string]any{}
	}

	diff := make(map[string]map[string]any)

	for key, prevVal := range previous {
		curVal, ok := current[key]
		if !ok {
			diff[key] = map[string]any{"old": prevVal, "new": nil}
			continue
		}
		if !reflect.DeepEqual(prevVal, curVal) {
			diff[key] = map[string]any{"old": prevVal, "new": curVal}
		}
	}

	for key, curVal := range current {
		if _, seen := previous[key]; seen {
			continue
		}
		diff[key] = map[string]any{"old": nil, "new": curVal}
	}

	return diff
}
