package alert

import "context"

// Alerter pushes an operational alert (failed tick, misconfiguration) to the
// people running the service.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Nop discards alerts.
type Nop struct{}

func (Nop) Alert(context.Context, string) error { return nil }
