//go:build windows

package agent

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows/svc"
)

const windowsServiceName = "PrepAgent"

// RunService starts the agent under the Service Control Manager when running
// as a Windows service, or runs the poll loop directly when interactive.
func RunService(ctx context.Context, s *Service) error {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return fmt.Errorf("detecting service environment: %w", err)
	}
	if !isService {
		return s.Run(ctx)
	}
	return svc.Run(windowsServiceName, &program{svc: s})
}

type program struct {
	svc *Service
}

func (p *program) Execute(_ []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown
	changes <- svc.Status{State: svc.StartPending}
	changes <- svc.Status{State: svc.Running, Accepts: accepted}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.svc.logger.Printf("ERROR agent loop: %v", err)
		}
	}()

	for c := range r {
		switch c.Cmd {
		case svc.Interrogate:
			changes <- c.CurrentStatus
		case svc.Stop, svc.Shutdown:
			changes <- svc.Status{State: svc.StopPending}
			cancel()
			<-done
			return false, 0
		default:
		}
	}

	changes <- svc.Status{State: svc.StopPending}
	cancel()
	<-done
	return false, 0
}
