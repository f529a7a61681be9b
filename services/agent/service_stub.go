//go:build !windows

package agent

import "context"

// RunService runs the poll loop directly; service manager integration only
// exists on Windows.
func RunService(ctx context.Context, s *Service) error {
	return s.Run(ctx)
}
