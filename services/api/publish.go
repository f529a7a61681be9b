package api

import "context"

// publishJSON fires an event without blocking the response path. A down bus
// costs a log line, never a failed request.
func (a *API) publishJSON(subject string, payload map[string]any) {
	if a.bus == nil || subject == "" {
		return
	}
	ctx, cancel := withTimeout(context.Background())
	defer cancel()
	if err := a.bus.Publish(ctx, subject, payload); err != nil {
		a.logger.Printf("WARN publish %s: %v", subject, err)
	}
}
