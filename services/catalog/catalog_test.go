package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prepd/pkg/store"
)

const seedYAML = `
tools:
  - name: Office Suite
    description: Word processing and spreadsheets
    download_link: s3://installers/office/setup.exe
    version: "2024"
  - name: Diagram Editor
    download_link: https://mirror.example.com/diagram.msi
    optional: true
departments:
  - name: Engineering
    description: Product engineering
    tools: [Office Suite, Diagram Editor]
  - name: Sales
    tools: [Office Suite]
checklist:
  - name: Join domain
    order: 1
    critical: true
  - name: Asset tag
    order: 2
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestApplyFileSeedsCatalog(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	if err := ApplyFile(ctx, st, writeSeed(t, seedYAML)); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}

	tools, _ := st.ListTools(ctx, false)
	if len(tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(tools))
	}
	optional, _ := st.ListTools(ctx, true)
	if len(optional) != 1 || optional[0].Name != "Diagram Editor" {
		t.Fatalf("optional tools = %+v", optional)
	}

	depts, _ := st.ListDepartments(ctx)
	if len(depts) != 2 {
		t.Fatalf("departments = %d, want 2", len(depts))
	}
	for _, d := range depts {
		switch d.Name {
		case "Engineering":
			if len(d.Tools) != 2 {
				t.Fatalf("Engineering tools = %d, want 2", len(d.Tools))
			}
		case "Sales":
			if len(d.Tools) != 1 {
				t.Fatalf("Sales tools = %d, want 1", len(d.Tools))
			}
		}
	}

	items, _ := st.ListChecklistItems(ctx)
	if len(items) != 2 || items[0].Name != "Join domain" || !items[0].IsCritical {
		t.Fatalf("checklist = %+v", items)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	path := writeSeed(t, seedYAML)

	if err := ApplyFile(ctx, st, path); err != nil {
		t.Fatalf("first ApplyFile: %v", err)
	}
	toolsBefore, _ := st.ListTools(ctx, false)

	if err := ApplyFile(ctx, st, path); err != nil {
		t.Fatalf("second ApplyFile: %v", err)
	}
	toolsAfter, _ := st.ListTools(ctx, false)

	if len(toolsAfter) != len(toolsBefore) {
		t.Fatalf("re-seed grew the catalog: %d -> %d", len(toolsBefore), len(toolsAfter))
	}
	for i := range toolsBefore {
		if toolsAfter[i].ID != toolsBefore[i].ID {
			t.Fatalf("tool %q changed id across seeds", toolsBefore[i].Name)
		}
	}
}

func TestValidateRejectsUnknownToolRef(t *testing.T) {
	const bad = `
tools:
  - name: Office Suite
departments:
  - name: Engineering
    tools: [Ghost Tool]
`
	err := ApplyFile(context.Background(), store.NewMemory(), writeSeed(t, bad))
	if err == nil || !strings.Contains(err.Error(), "Ghost Tool") {
		t.Fatalf("err = %v, want unknown tool reference", err)
	}
}

func TestValidateRejectsDuplicateTool(t *testing.T) {
	const bad = `
tools:
  - name: Office Suite
  - name: Office Suite
`
	err := ApplyFile(context.Background(), store.NewMemory(), writeSeed(t, bad))
	if err == nil || !strings.Contains(err.Error(), "duplicate tool") {
		t.Fatalf("err = %v, want duplicate tool error", err)
	}
}
