package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
)

var (
	// ErrInvalidClass is returned when a fan-out targets a blank class label.
	ErrInvalidClass = apperrors.New("INVALID_CLASS", "Class is required", http.StatusBadRequest)
	// ErrUnknownCategory is returned for notification categories outside the supported set.
	ErrUnknownCategory = apperrors.New("UNKNOWN_CATEGORY", "Unknown notification category", http.StatusBadRequest)
	// ErrPushDisabled is returned when push delivery is switched off in configuration.
	ErrPushDisabled = apperrors.New("PUSH_DISABLED", "Push notifications are disabled", http.StatusServiceUnavailable)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
