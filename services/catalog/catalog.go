// Package catalog loads the reference data — tools, departments, checklist
// items — from a YAML seed file and reconciles it into the store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"prepd/pkg/model"
	"prepd/pkg/store"
)

// Seed is the on-disk catalog format.
type Seed struct {
	Tools []struct {
		Name         string `yaml:"name"`
		Description  string `yaml:"description"`
		DownloadLink string `yaml:"download_link"`
		Version      string `yaml:"version"`
		Optional     bool   `yaml:"optional"`
	} `yaml:"tools"`
	Departments []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Tools       []string `yaml:"tools"`
	} `yaml:"departments"`
	Checklist []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Order       int    `yaml:"order"`
		Critical    bool   `yaml:"critical"`
	} `yaml:"checklist"`
}

// Load parses a seed file.
func Load(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return seed, nil
}

// Validate checks referential integrity before anything is written.
func (s Seed) Validate() error {
	toolNames := make(map[string]struct{}, len(s.Tools))
	for _, t := range s.Tools {
		if t.Name == "" {
			return errors.New("catalog: tool with empty name")
		}
		if _, dup := toolNames[t.Name]; dup {
			return fmt.Errorf("catalog: duplicate tool %q", t.Name)
		}
		toolNames[t.Name] = struct{}{}
	}
	for _, d := range s.Departments {
		if d.Name == "" {
			return errors.New("catalog: department with empty name")
		}
		for _, ref := range d.Tools {
			if _, ok := toolNames[ref]; !ok {
				return fmt.Errorf("catalog: department %q references unknown tool %q", d.Name, ref)
			}
		}
	}
	for _, item := range s.Checklist {
		if item.Name == "" {
			return errors.New("catalog: checklist item with empty name")
		}
	}
	return nil
}

// Apply reconciles the seed into the store. Existing rows are matched by name
// so re-seeding is idempotent: ids are stable across runs, descriptions and
// links follow the file.
func Apply(ctx context.Context, st store.Store, seed Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}

	return st.Transaction(ctx, func(tx store.Store) error {
		existingTools, err := tx.ListTools(ctx, false)
		if err != nil {
			return err
		}
		toolByName := make(map[string]model.ProductivityTool, len(existingTools))
		for _, t := range existingTools {
			toolByName[t.Name] = t
		}

		for _, entry := range seed.Tools {
			tool, ok := toolByName[entry.Name]
			if !ok {
				tool = model.ProductivityTool{ID: uuid.New(), Name: entry.Name}
			}
			tool.Description = entry.Description
			tool.DownloadLink = entry.DownloadLink
			tool.Version = entry.Version
			tool.Optional = entry.Optional
			if err := tx.SaveTool(ctx, &tool); err != nil {
				return err
			}
			toolByName[tool.Name] = tool
		}

		existingDepts, err := tx.ListDepartments(ctx)
		if err != nil {
			return err
		}
		deptByName := make(map[string]model.Department, len(existingDepts))
		for _, d := range existingDepts {
			deptByName[d.Name] = d
		}

		for _, entry := range seed.Departments {
			dept, ok := deptByName[entry.Name]
			if !ok {
				dept = model.Department{ID: uuid.New(), Name: entry.Name}
			}
			dept.Description = entry.Description
			dept.Tools = make([]model.ProductivityTool, 0, len(entry.Tools))
			for _, ref := range entry.Tools {
				dept.Tools = append(dept.Tools, toolByName[ref])
			}
			if err := tx.SaveDepartment(ctx, &dept); err != nil {
				return err
			}
		}

		existingItems, err := tx.ListChecklistItems(ctx)
		if err != nil {
			return err
		}
		itemByName := make(map[string]model.ChecklistItem, len(existingItems))
		for _, item := range existingItems {
			itemByName[item.Name] = item
		}

		for _, entry := range seed.Checklist {
			item, ok := itemByName[entry.Name]
			if !ok {
				item = model.ChecklistItem{ID: uuid.New(), Name: entry.Name}
			}
			item.Description = entry.Description
			item.Order = entry.Order
			item.IsCritical = entry.Critical
			if err := tx.SaveChecklistItem(ctx, &item); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyFile loads, validates, and applies a seed file in one step.
func ApplyFile(ctx context.Context, st store.Store, path string) error {
	seed, err := Load(path)
	if err != nil {
		return err
	}
	return Apply(ctx, st, seed)
}
