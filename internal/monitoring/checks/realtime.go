package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/tuntasinaja/tuntasinaja/internal/monitoring"
)

// RealtimeObserver exposes the notification stream hub state.
type RealtimeObserver interface {
	Connections() int
}

// Realtime is a liveness probe reporting the number of open notification streams.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "realtime hub unavailable",
				Duration: time.Since(start),
			}
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%d open streams", observer.Connections()),
			Duration: time.Since(start),
		}
	})
}
