package checks

import (
	"context"
	"strings"

	"github.com/tuntasinaja/tuntasinaja/internal/monitoring"
)

// PushState describes which delivery channels are wired.
type PushState struct {
	Enabled        bool
	NativeProvider string
	WebPush        bool
}

// Push reports degraded when delivery is switched off or no channel is configured.
// Fan-out still succeeds in that state, it just reaches nobody.
func Push(state PushState) monitoring.Check {
	return monitoring.NewCheck("push", func(ctx context.Context) monitoring.ProbeResult {
		native := strings.TrimSpace(state.NativeProvider)
		if native == "" {
			native = "none"
		}

		switch {
		case !state.Enabled:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "push delivery disabled"}
		case native == "none" && !state.WebPush:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "no push channel configured"}
		}

		details := "native=" + native
		if state.WebPush {
			details += " web=vapid"
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: details}
	})
}
