package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// preview cuts text to limit runes and marks the cut with an ellipsis.
func preview(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if limit <= 0 || len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}

// startOfDay returns local midnight of t in loc, expressed in UTC.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}

func systemNow() time.Time {
	return time.Now().UTC()
}

// classmates lists the non-admin members of kelas other than excludeID.
func classmates(ctx context.Context, db *gorm.DB, kelas, excludeID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&models.User{}).
		Where("kelas = ? AND is_admin = ? AND id <> ?", kelas, false, excludeID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load classmates: %w", err)
	}
	return ids, nil
}
