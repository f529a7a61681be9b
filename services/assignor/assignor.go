// Package assignor builds the per-machine task manifest agents poll for: the
// live department tool requirements, the machine's assigned tool set, and the
// full checklist with download locations resolved to fetchable URLs.
package assignor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"prepd/pkg/model"
	"prepd/pkg/store"
	"prepd/services/ledger"
)

// DefaultPresignTTL bounds how long a resolved installer URL stays valid.
const DefaultPresignTTL = 15 * time.Minute

// Presigner resolves bucket-relative object keys to time-limited URLs.
// *s3.Client satisfies it; tests substitute a stub.
type Presigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Assignor assembles task manifests.
type Assignor struct {
	store   store.Store
	presign Presigner
	signTTL time.Duration
}

// New constructs an Assignor. presign may be nil; s3:// locators are then
// passed through unresolved.
func New(st store.Store, presign Presigner) (*Assignor, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	return &Assignor{store: st, presign: presign, signTTL: DefaultPresignTTL}, nil
}

// ToolTask is one tool an agent should install, with its download link
// resolved to something fetchable.
type ToolTask struct {
	Tool        model.ProductivityTool
	DownloadURL string
}

// Manifest is the complete work order for one machine. Department is nil
// until an administrator assigns one; RequiredTools is empty in that case.
type Manifest struct {
	Machine       model.Machine
	Department    *model.Department
	RequiredTools []ToolTask
	AssignedTools []ToolTask
	Checklist     []ledger.ItemState
}

// MachineRef identifies a machine by id or by hostname. When both are set the
// hostname wins; it is the agent's stable identity.
type MachineRef struct {
	ID       uuid.UUID
	Hostname string
}

// Tasks builds the manifest for the referenced machine. An unassigned
// machine still gets its full checklist and anything already on it; the
// required set stays empty until a department exists, and agents hold off
// installing until the manifest carries one.
//
// RequiredTools is computed live from the department's current bundle
// (non-optional entries only), so catalog edits reach agents without a
// re-cascade. AssignedTools is the machine's stored bundle plus extras.
func (a *Assignor) Tasks(ctx context.Context, ref MachineRef) (Manifest, error) {
	var manifest Manifest
	err := a.store.Transaction(ctx, func(tx store.Store) error {
		m, err := resolveMachine(ctx, tx, ref)
		if err != nil {
			return err
		}

		items, err := tx.ListChecklistItems(ctx)
		if err != nil {
			return err
		}
		rows, err := tx.ListChecklistStatuses(ctx, m.ID)
		if err != nil {
			return err
		}

		manifest = Manifest{
			Machine:       m,
			RequiredTools: []ToolTask{},
			Checklist:     ledger.Overlay(items, rows),
		}
		if m.DepartmentID != nil {
			dept, err := tx.GetDepartment(ctx, *m.DepartmentID)
			if err != nil {
				return fmt.Errorf("department %s: %w", *m.DepartmentID, err)
			}
			manifest.Department = &dept
			manifest.RequiredTools, err = a.resolveTools(ctx, dept.RequiredTools())
			if err != nil {
				return err
			}
		}
		manifest.AssignedTools, err = a.resolveTools(ctx, m.AssignedTools())
		return err
	})
	if err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Lookup resolves a machine by hostname without building a manifest.
func (a *Assignor) Lookup(ctx context.Context, hostname string) (model.Machine, error) {
	return a.store.GetMachineByHostname(ctx, hostname)
}

func resolveMachine(ctx context.Context, tx store.Store, ref MachineRef) (model.Machine, error) {
	if h := strings.TrimSpace(ref.Hostname); h != "" {
		return tx.GetMachineByHostname(ctx, h)
	}
	if ref.ID == uuid.Nil {
		return model.Machine{}, store.ErrNotFound
	}
	return tx.GetMachine(ctx, ref.ID)
}

func (a *Assignor) resolveTools(ctx context.Context, tools []model.ProductivityTool) ([]ToolTask, error) {
	out := make([]ToolTask, 0, len(tools))
	for _, tool := range tools {
		url, err := a.resolveLink(ctx, tool.DownloadLink)
		if err != nil {
			return nil, fmt.Errorf("resolve download for %s: %w", tool.Name, err)
		}
		out = append(out, ToolTask{Tool: tool, DownloadURL: url})
	}
	return out, nil
}

// resolveLink presigns s3://bucket/key locators; anything else (https
// mirrors, file shares) passes through untouched.
func (a *Assignor) resolveLink(ctx context.Context, link string) (string, error) {
	bucket, key, ok := splitS3Locator(link)
	if !ok || a.presign == nil {
		return link, nil
	}
	return a.presign.PresignGet(ctx, bucket, key, a.signTTL)
}

func splitS3Locator(link string) (bucket, key string, ok bool) {
	const scheme = "s3://"
	if !strings.HasPrefix(link, scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(link, scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
