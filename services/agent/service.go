package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Service drives the agent workflow: check in, wait for an assignment, fetch
// the work order, install, report.
type Service struct {
	client    API
	installer *Installer
	config    Config
	logger    *log.Logger
}

// NewService wires the agent from configuration. client and installer may be
// nil for the default HTTP client and os/exec installer.
func NewService(cfg Config, client API, installer *Installer, logger *log.Logger) (*Service, error) {
	var err error
	cfg, err = cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.New(log.Writer(), "prep-agent: ", log.LstdFlags)
	}
	if client == nil {
		client = NewClient(cfg)
	}
	if installer == nil {
		installer, err = NewInstaller(cfg.CacheDir, nil, nil, logger)
		if err != nil {
			return nil, err
		}
	}

	return &Service{client: client, installer: installer, config: cfg, logger: logger}, nil
}

// Run executes the workflow on the poll interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Printf("ERROR run failed: %v", err)
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Printf("ERROR run failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single pass. A machine without a department checks in
// and stops there; the next pass tries again. Install failures are collected
// per tool and reported, never raised as run errors.
func (s *Service) RunOnce(ctx context.Context) error {
	facts := gatherFacts()

	machine, err := s.client.CheckIn(ctx, facts, s.config.IsLead)
	if err != nil {
		return fmt.Errorf("check in: %w", err)
	}
	s.logger.Printf("INFO checked in as %s (%s)", machine.Hostname, machine.OverallStatus)

	manifest, err := s.client.Tasks(ctx, machine.ID)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	if manifest.Department == nil {
		s.logger.Printf("INFO awaiting department assignment")
		return nil
	}

	tools := installSet(manifest)
	if len(tools) == 0 {
		s.logger.Printf("INFO no tools assigned")
		return nil
	}

	results := s.installer.InstallAll(ctx, tools)

	status := "completed"
	for _, r := range results {
		if r.Status == "failed" {
			status = "failed"
			break
		}
	}

	report := RunReport{
		Hostname: s.config.Hostname,
		Status:   status,
		Tools:    results,
		Facts:    facts,
	}
	// Reporting is best effort: the install work is already done and the
	// next pass re-reports through the idempotent cache.
	if err := s.client.Report(ctx, report); err != nil {
		s.logger.Printf("WARN report failed: %v", err)
	}
	return nil
}

// installSet merges the live required set with the machine's assigned bundle,
// deduplicated by tool id. The cascade is one-time, so a tool made required
// after assignment exists only in the required list; neither list alone is
// complete.
func installSet(m Manifest) []ToolTask {
	seen := make(map[uuid.UUID]struct{}, len(m.RequiredTools)+len(m.AssignedTools))
	out := make([]ToolTask, 0, len(m.RequiredTools)+len(m.AssignedTools))
	for _, list := range [][]ToolTask{m.RequiredTools, m.AssignedTools} {
		for _, tool := range list {
			if _, ok := seen[tool.ID]; ok {
				continue
			}
			seen[tool.ID] = struct{}{}
			out = append(out, tool)
		}
	}
	return out
}
