package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

const announcementPreviewLen = 100

// CreateAnnouncementInput is the payload for posting an announcement. Kelas
// defaults to the author's class; Global targets every user and is reserved
// for administrators.
type CreateAnnouncementInput struct {
	Title     string     `json:"title" validate:"required,max=200"`
	Content   string     `json:"content" validate:"required,max=5000"`
	Kelas     string     `json:"kelas" validate:"omitempty,max=64"`
	Global    bool       `json:"global"`
	Priority  string     `json:"priority" validate:"omitempty,oneof=urgent normal low"`
	IsPinned  bool       `json:"is_pinned"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// AnnouncementView is an announcement as seen by one user.
type AnnouncementView struct {
	models.Announcement
	IsRead bool `json:"is_read"`
}

// AnnouncementService posts class announcements and tracks who has read them.
type AnnouncementService struct {
	db       *gorm.DB
	notifier ClassNotifier
	inbox    InboxWriter
	tasks    *Background
	now      func() time.Time
	log      *zap.Logger
}

// AnnouncementOption customises an AnnouncementService.
type AnnouncementOption func(*AnnouncementService)

// WithAnnouncementClock overrides the time source.
func WithAnnouncementClock(now func() time.Time) AnnouncementOption {
	return func(s *AnnouncementService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAnnouncementService constructs an AnnouncementService. notifier and inbox
// may be nil to disable push and in-app notifications respectively.
func NewAnnouncementService(db *gorm.DB, notifier ClassNotifier, inbox InboxWriter, tasks *Background, opts ...AnnouncementOption) (*AnnouncementService, error) {
	if db == nil {
		return nil, errors.New("announcement service: db is required")
	}
	if tasks == nil {
		tasks = NewBackground(0)
	}
	svc := &AnnouncementService{
		db:       db,
		notifier: notifier,
		inbox:    inbox,
		tasks:    tasks,
		now:      systemNow,
		log:      logger.WithModule("announcements"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Wait blocks until notifications started by this service have been sent.
func (s *AnnouncementService) Wait() {
	s.tasks.Wait()
}

// Create posts an announcement. Administrators may target any class or
// everyone; a class leader may only target their own class. Class
// announcements are pushed to the class and land in classmates' inboxes.
func (s *AnnouncementService) Create(ctx context.Context, author *models.User, input CreateAnnouncementInput) (*models.Announcement, error) {
	ctx = ensureContext(ctx)
	if author == nil {
		return nil, apperrors.ErrUnauthorized
	}
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return nil, apperrors.NewBadRequest("title and content are required")
	}

	priority := strings.ToLower(strings.TrimSpace(input.Priority))
	switch priority {
	case "":
		priority = models.PriorityNormal
	case models.PriorityUrgent, models.PriorityNormal, models.PriorityLow:
	default:
		return nil, apperrors.NewBadRequest("priority must be one of urgent, normal, low")
	}

	now := s.now().UTC()
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, apperrors.NewBadRequest("expiry must be in the future")
	}

	row := models.Announcement{
		Title:     title,
		Content:   content,
		AuthorID:  author.ID,
		Priority:  priority,
		IsPinned:  input.IsPinned,
		ExpiresAt: input.ExpiresAt,
	}

	var kelas string
	if input.Global {
		if !author.IsAdmin {
			return nil, apperrors.NewForbidden("only administrators can post to every class")
		}
	} else {
		kelas = strings.TrimSpace(input.Kelas)
		if kelas == "" {
			kelas = author.ClassLabel()
		}
		if kelas == "" {
			return nil, apperrors.NewBadRequest("target class is required")
		}
		if !CanManageClass(author, kelas) {
			return nil, apperrors.NewForbidden("only administrators or the class leader can post announcements to this class")
		}
		row.TargetKelas = &kelas
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("announcement service: create announcement: %w", err)
	}

	if kelas == "" {
		s.log.Debug("announcement push skipped", zap.String("announcement_id", row.ID), zap.String("reason", "global announcement"))
		return &row, nil
	}
	s.notify(author, &row, kelas)
	return &row, nil
}

// List returns the unexpired announcements visible to user: global ones plus
// those for the user's class. Pinned announcements come first, then higher
// priority, then newest.
func (s *AnnouncementService) List(ctx context.Context, user *models.User) ([]AnnouncementView, error) {
	ctx = ensureContext(ctx)
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}

	query := s.db.WithContext(ctx).
		Where("expires_at IS NULL OR expires_at > ?", s.now().UTC())
	if label := user.ClassLabel(); label != "" {
		query = query.Where("target_kelas IS NULL OR target_kelas = ?", label)
	} else {
		query = query.Where("target_kelas IS NULL")
	}

	var rows []models.Announcement
	if err := query.Preload("Author").Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("announcement service: list announcements: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IsPinned != rows[j].IsPinned {
			return rows[i].IsPinned
		}
		return models.PriorityRank(rows[i].Priority) > models.PriorityRank(rows[j].Priority)
	})

	read, err := s.readSet(ctx, user.ID, rows)
	if err != nil {
		return nil, err
	}
	views := make([]AnnouncementView, 0, len(rows))
	for _, row := range rows {
		_, seen := read[row.ID]
		views = append(views, AnnouncementView{Announcement: row, IsRead: seen})
	}
	return views, nil
}

// MarkRead records that userID has seen the announcement. Repeated calls are no-ops.
func (s *AnnouncementService) MarkRead(ctx context.Context, userID, announcementID string) error {
	ctx = ensureContext(ctx)
	row, err := s.load(ctx, announcementID)
	if err != nil {
		return err
	}
	mark := models.AnnouncementRead{
		AnnouncementID: row.ID,
		UserID:         strings.TrimSpace(userID),
		ReadAt:         s.now().UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "announcement_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&mark).Error
	if err != nil {
		return fmt.Errorf("announcement service: mark read: %w", err)
	}
	return nil
}

// Delete removes an announcement and its read marks. Global announcements
// can only be removed by administrators.
func (s *AnnouncementService) Delete(ctx context.Context, actor *models.User, announcementID string) error {
	ctx = ensureContext(ctx)
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	row, err := s.load(ctx, announcementID)
	if err != nil {
		return err
	}
	allowed := actor.IsAdmin
	if row.TargetKelas != nil {
		allowed = CanManageClass(actor, *row.TargetKelas)
	}
	if !allowed {
		return apperrors.NewForbidden("only administrators or the class leader can delete this announcement")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("announcement_id = ?", row.ID).Delete(&models.AnnouncementRead{}).Error; err != nil {
			return fmt.Errorf("announcement service: delete read marks: %w", err)
		}
		if err := tx.Delete(row).Error; err != nil {
			return fmt.Errorf("announcement service: delete announcement: %w", err)
		}
		return nil
	})
}

func (s *AnnouncementService) load(ctx context.Context, announcementID string) (*models.Announcement, error) {
	announcementID = strings.TrimSpace(announcementID)
	if announcementID == "" {
		return nil, apperrors.NewBadRequest("announcement id is required")
	}
	var row models.Announcement
	if err := s.db.WithContext(ctx).Where("id = ?", announcementID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("announcement not found")
		}
		return nil, fmt.Errorf("announcement service: load announcement: %w", err)
	}
	return &row, nil
}

func (s *AnnouncementService) readSet(ctx context.Context, userID string, rows []models.Announcement) (map[string]struct{}, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var read []string
	err := s.db.WithContext(ctx).
		Model(&models.AnnouncementRead{}).
		Where("user_id = ? AND announcement_id IN ?", userID, ids).
		Pluck("announcement_id", &read).Error
	if err != nil {
		return nil, fmt.Errorf("announcement service: load read marks: %w", err)
	}
	set := make(map[string]struct{}, len(read))
	for _, id := range read {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *AnnouncementService) notify(author *models.User, row *models.Announcement, kelas string) {
	title := "📢 " + row.Title
	body := preview(row.Content, announcementPreviewLen)

	s.tasks.Go("announcement.notify", func(ctx context.Context) error {
		var errs error
		if s.notifier != nil {
			_, err := s.notifier.SendToClass(ctx, ClassPushInput{
				Kelas: kelas,
				Title: title,
				Body:  body,
				Type:  NotificationAnnouncement,
				Data: map[string]string{
					"type":           "announcement",
					"announcementId": row.ID,
					"priority":       row.Priority,
				},
			})
			errs = multierr.Append(errs, err)
		}
		if s.inbox != nil {
			members, err := classmates(ctx, s.db, kelas, author.ID)
			if err == nil {
				_, err = s.inbox.CreateForUsers(ctx, members, CreateNotificationInput{
					Type:    NotificationAnnouncement,
					Title:   title,
					Message: body,
					Metadata: map[string]any{
						"announcement_id": row.ID,
						"priority":        row.Priority,
					},
				})
			}
			errs = multierr.Append(errs, err)
		}
		return errs
	})
}
