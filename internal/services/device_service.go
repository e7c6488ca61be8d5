package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
)

// deleteBatch bounds the IN list of prune deletes.
const deleteBatch = 500

// RegisterTokenInput captures a native token registration.
type RegisterTokenInput struct {
	Token      string `json:"token" validate:"required,max=512"`
	DeviceInfo string `json:"device_info" validate:"omitempty,max=255"`
}

// RegisterWebPushInput mirrors the browser PushSubscription JSON.
type RegisterWebPushInput struct {
	Endpoint  string `json:"endpoint" validate:"required,url,max=1024"`
	P256dh    string `json:"p256dh" validate:"required,max=255"`
	Auth      string `json:"auth" validate:"required,max=255"`
	UserAgent string `json:"user_agent" validate:"omitempty,max=512"`
}

// DeviceSummary lists what a user has registered.
type DeviceSummary struct {
	Tokens               []models.DeviceToken         `json:"tokens"`
	WebPushSubscriptions []models.WebPushSubscription `json:"web_push_subscriptions"`
}

// DeviceRecipient is a native token joined with its owner.
type DeviceRecipient struct {
	Token  string  `gorm:"column:token"`
	UserID string  `gorm:"column:user_id"`
	Kelas  *string `gorm:"column:kelas"`
}

// WebRecipient is a web-push subscription joined with its owner.
type WebRecipient struct {
	Endpoint string  `gorm:"column:endpoint"`
	P256dh   string  `gorm:"column:p256dh"`
	Auth     string  `gorm:"column:auth"`
	UserID   string  `gorm:"column:user_id"`
	Kelas    *string `gorm:"column:kelas"`
}

func (r DeviceRecipient) ownerID() string    { return r.UserID }
func (r DeviceRecipient) ownerClass() string { return trimmedLabel(r.Kelas) }
func (r DeviceRecipient) identifier() string { return r.Token }

func (r WebRecipient) ownerID() string    { return r.UserID }
func (r WebRecipient) ownerClass() string { return trimmedLabel(r.Kelas) }
func (r WebRecipient) identifier() string { return r.Endpoint }

func trimmedLabel(kelas *string) string {
	if kelas == nil {
		return ""
	}
	return strings.TrimSpace(*kelas)
}

// RecipientSource resolves delivery targets and removes dead ones. The gorm
// backed DeviceService is the production implementation.
type RecipientSource interface {
	ClassDeviceTokens(ctx context.Context, kelas string) ([]DeviceRecipient, error)
	ClassWebSubscriptions(ctx context.Context, kelas string) ([]WebRecipient, error)
	UserDeviceTokens(ctx context.Context, userID string) ([]DeviceRecipient, error)
	UserWebSubscriptions(ctx context.Context, userID string) ([]WebRecipient, error)
	DeleteDeviceTokens(ctx context.Context, tokens []string) (int64, error)
	DeleteWebSubscriptions(ctx context.Context, endpoints []string) (int64, error)
}

// DeviceService manages native tokens and web-push subscriptions.
type DeviceService struct {
	db *gorm.DB
}

// NewDeviceService constructs a DeviceService.
func NewDeviceService(db *gorm.DB) (*DeviceService, error) {
	if db == nil {
		return nil, errors.New("device service: db is required")
	}
	return &DeviceService{db: db}, nil
}

// RegisterToken stores token for userID. A token already owned by someone
// else is moved to userID.
func (s *DeviceService) RegisterToken(ctx context.Context, userID string, input RegisterTokenInput) (*models.DeviceToken, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	token := strings.TrimSpace(input.Token)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	if token == "" {
		return nil, apperrors.NewBadRequest("token is required")
	}

	row := models.DeviceToken{
		Token:      token,
		UserID:     userID,
		DeviceInfo: strings.TrimSpace(input.DeviceInfo),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("device service: register token: %w", err)
	}

	var stored models.DeviceToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).Take(&stored).Error; err != nil {
		return nil, fmt.Errorf("device service: reload token: %w", err)
	}
	return &stored, nil
}

// UnregisterToken removes token when it belongs to userID. Removing an
// unknown token is not an error.
func (s *DeviceService) UnregisterToken(ctx context.Context, userID, token string) error {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewBadRequest("token is required")
	}
	err := s.db.WithContext(ctx).
		Where("token = ? AND user_id = ?", token, strings.TrimSpace(userID)).
		Delete(&models.DeviceToken{}).Error
	if err != nil {
		return fmt.Errorf("device service: unregister token: %w", err)
	}
	return nil
}

// RegisterWebPush stores a browser subscription for userID, taking over the
// endpoint if another user held it.
func (s *DeviceService) RegisterWebPush(ctx context.Context, userID string, input RegisterWebPushInput) (*models.WebPushSubscription, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	endpoint := strings.TrimSpace(input.Endpoint)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	if endpoint == "" || strings.TrimSpace(input.P256dh) == "" || strings.TrimSpace(input.Auth) == "" {
		return nil, apperrors.NewBadRequest("endpoint and keys are required")
	}

	row := models.WebPushSubscription{
		Endpoint:  endpoint,
		P256dh:    strings.TrimSpace(input.P256dh),
		Auth:      strings.TrimSpace(input.Auth),
		UserID:    userID,
		UserAgent: strings.TrimSpace(input.UserAgent),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "user_agent", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("device service: register web push: %w", err)
	}

	var stored models.WebPushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Take(&stored).Error; err != nil {
		return nil, fmt.Errorf("device service: reload web push: %w", err)
	}
	return &stored, nil
}

// UnregisterWebPush removes the caller's subscription for endpoint.
func (s *DeviceService) UnregisterWebPush(ctx context.Context, userID, endpoint string) error {
	ctx = ensureContext(ctx)
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return apperrors.NewBadRequest("endpoint is required")
	}
	err := s.db.WithContext(ctx).
		Where("endpoint = ? AND user_id = ?", endpoint, strings.TrimSpace(userID)).
		Delete(&models.WebPushSubscription{}).Error
	if err != nil {
		return fmt.Errorf("device service: unregister web push: %w", err)
	}
	return nil
}

// List returns the user's registrations, newest first.
func (s *DeviceService) List(ctx context.Context, userID string) (DeviceSummary, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)

	summary := DeviceSummary{
		Tokens:               []models.DeviceToken{},
		WebPushSubscriptions: []models.WebPushSubscription{},
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&summary.Tokens).Error; err != nil {
		return DeviceSummary{}, fmt.Errorf("device service: list tokens: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&summary.WebPushSubscriptions).Error; err != nil {
		return DeviceSummary{}, fmt.Errorf("device service: list web push: %w", err)
	}
	return summary, nil
}

// ClassDeviceTokens returns the tokens of non-admin users whose class equals kelas.
func (s *DeviceService) ClassDeviceTokens(ctx context.Context, kelas string) ([]DeviceRecipient, error) {
	var rows []DeviceRecipient
	err := s.db.WithContext(ensureContext(ctx)).
		Table("device_tokens").
		Select("device_tokens.token AS token, users.id AS user_id, users.kelas AS kelas").
		Joins("JOIN users ON users.id = device_tokens.user_id").
		Where("users.kelas = ? AND users.is_admin = ?", kelas, false).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("device service: class tokens: %w", err)
	}
	return rows, nil
}

// ClassWebSubscriptions returns the subscriptions of non-admin users whose class equals kelas.
func (s *DeviceService) ClassWebSubscriptions(ctx context.Context, kelas string) ([]WebRecipient, error) {
	var rows []WebRecipient
	err := s.db.WithContext(ensureContext(ctx)).
		Table("web_push_subscriptions").
		Select("web_push_subscriptions.endpoint AS endpoint, web_push_subscriptions.p256dh AS p256dh, "+
			"web_push_subscriptions.auth AS auth, users.id AS user_id, users.kelas AS kelas").
		Joins("JOIN users ON users.id = web_push_subscriptions.user_id").
		Where("users.kelas = ? AND users.is_admin = ?", kelas, false).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("device service: class web subscriptions: %w", err)
	}
	return rows, nil
}

// UserDeviceTokens returns every token registered by userID.
func (s *DeviceService) UserDeviceTokens(ctx context.Context, userID string) ([]DeviceRecipient, error) {
	var rows []DeviceRecipient
	err := s.db.WithContext(ensureContext(ctx)).
		Table("device_tokens").
		Select("device_tokens.token AS token, users.id AS user_id, users.kelas AS kelas").
		Joins("JOIN users ON users.id = device_tokens.user_id").
		Where("users.id = ?", userID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("device service: user tokens: %w", err)
	}
	return rows, nil
}

// UserWebSubscriptions returns every subscription registered by userID.
func (s *DeviceService) UserWebSubscriptions(ctx context.Context, userID string) ([]WebRecipient, error) {
	var rows []WebRecipient
	err := s.db.WithContext(ensureContext(ctx)).
		Table("web_push_subscriptions").
		Select("web_push_subscriptions.endpoint AS endpoint, web_push_subscriptions.p256dh AS p256dh, "+
			"web_push_subscriptions.auth AS auth, users.id AS user_id, users.kelas AS kelas").
		Joins("JOIN users ON users.id = web_push_subscriptions.user_id").
		Where("users.id = ?", userID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("device service: user web subscriptions: %w", err)
	}
	return rows, nil
}

// DeleteDeviceTokens removes tokens regardless of owner.
func (s *DeviceService) DeleteDeviceTokens(ctx context.Context, tokens []string) (int64, error) {
	return s.deleteIn(ensureContext(ctx), &models.DeviceToken{}, "token", tokens)
}

// DeleteWebSubscriptions removes endpoints regardless of owner.
func (s *DeviceService) DeleteWebSubscriptions(ctx context.Context, endpoints []string) (int64, error) {
	return s.deleteIn(ensureContext(ctx), &models.WebPushSubscription{}, "endpoint", endpoints)
}

func (s *DeviceService) deleteIn(ctx context.Context, model any, column string, values []string) (int64, error) {
	values = normaliseIDs(values)
	var total int64
	for start := 0; start < len(values); start += deleteBatch {
		end := start + deleteBatch
		if end > len(values) {
			end = len(values)
		}
		res := s.db.WithContext(ctx).Where(column+" IN ?", values[start:end]).Delete(model)
		if res.Error != nil {
			return total, fmt.Errorf("device service: delete by %s: %w", column, res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}
