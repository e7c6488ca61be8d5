package checks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database pings the store behind reminders and fan-out. Details carry the
// pool counters.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}

	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		start := time.Now()
		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		stats := sqlDB.Stats()
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("open=%d in_use=%d idle=%d wait=%d", stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount),
			Duration: time.Since(start),
		}
	})
}
