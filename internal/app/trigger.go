package app

import (
	"context"
)

type manualTriggerKey struct{}

// ManualTrigger marks ctx as an operator-initiated run. Reminder logs written
// under it are recorded with IsAuto false.
func ManualTrigger(ctx context.Context) context.Context {
	return context.WithValue(ctx, manualTriggerKey{}, true)
}

// IsManualTrigger reports whether ctx was marked by ManualTrigger.
func IsManualTrigger(ctx context.Context) bool {
	manual, _ := ctx.Value(manualTriggerKey{}).(bool)
	return manual
}
