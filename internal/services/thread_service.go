package services

import (
	"context"
	"errors"
	"fmt"
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

const commentPreviewLen = 80

// Thread creation outcomes.
const (
	CreatedThread  = "thread"
	CreatedComment = "comment"
)

// CreateThreadInput is the payload for posting homework.
type CreateThreadInput struct {
	Title    string     `json:"title" validate:"required,max=255"`
	Comment  string     `json:"comment" validate:"omitempty,max=5000"`
	Deadline *time.Time `json:"deadline"`
}

// AddCommentInput is the payload for a sub-task.
type AddCommentInput struct {
	Content  string     `json:"content" validate:"required,max=5000"`
	Deadline *time.Time `json:"deadline"`
}

// CreateThreadResult reports whether a thread was created or the request was
// folded into today's existing thread as a comment.
type CreateThreadResult struct {
	Type    string          `json:"type"`
	Thread  *models.Thread  `json:"thread"`
	Comment *models.Comment `json:"comment,omitempty"`
}

// ThreadService manages homework threads and their completion state.
type ThreadService struct {
	db       *gorm.DB
	notifier ClassNotifier
	inbox    InboxWriter
	tasks    *Background
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger
}

// ThreadOption customises a ThreadService.
type ThreadOption func(*ThreadService)

// WithThreadLocation sets the timezone that defines "today".
func WithThreadLocation(loc *time.Location) ThreadOption {
	return func(s *ThreadService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithThreadClock overrides the time source.
func WithThreadClock(now func() time.Time) ThreadOption {
	return func(s *ThreadService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewThreadService constructs a ThreadService. notifier and inbox may be nil
// to disable push and in-app notifications respectively.
func NewThreadService(db *gorm.DB, notifier ClassNotifier, inbox InboxWriter, tasks *Background, opts ...ThreadOption) (*ThreadService, error) {
	if db == nil {
		return nil, errors.New("thread service: db is required")
	}
	if tasks == nil {
		tasks = NewBackground(0)
	}
	svc := &ThreadService{
		db:       db,
		notifier: notifier,
		inbox:    inbox,
		tasks:    tasks,
		loc:      time.UTC,
		now:      systemNow,
		log:      logger.WithModule("threads"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Wait blocks until notifications started by this service have been sent.
func (s *ThreadService) Wait() {
	s.tasks.Wait()
}

// Create posts a thread for author's class. A thread with the same title
// already posted today by the same class absorbs the request as a comment
// when one is supplied; otherwise the request conflicts.
func (s *ThreadService) Create(ctx context.Context, author *models.User, input CreateThreadInput) (*CreateThreadResult, error) {
	ctx = ensureContext(ctx)
	if author == nil {
		return nil, apperrors.ErrUnauthorized
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	comment := strings.TrimSpace(input.Comment)

	now := s.now().UTC()
	if input.Deadline != nil && !input.Deadline.After(now) {
		return nil, apperrors.NewBadRequest("deadline must be in the future")
	}

	today := startOfDay(now, s.loc)
	tomorrow := today.Add(24 * time.Hour)

	existing, err := s.findTodayThread(ctx, author, title, today, tomorrow)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if comment == "" {
			return nil, apperrors.NewConflict("a thread with this title already exists today")
		}
		row := models.Comment{
			ThreadID: existing.ID,
			AuthorID: author.ID,
			Content:  comment,
			Deadline: input.Deadline,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("thread service: create comment: %w", err)
		}
		if label := author.ClassLabel(); label != "" && !author.IsAdmin {
			s.notifyComment(author, existing, &row, label)
		}
		return &CreateThreadResult{Type: CreatedComment, Thread: existing, Comment: &row}, nil
	}

	thread := models.Thread{
		Title:    title,
		AuthorID: author.ID,
		Date:     today,
		Deadline: input.Deadline,
	}
	if comment != "" {
		thread.Comments = []models.Comment{{
			AuthorID: author.ID,
			Content:  comment,
			Deadline: input.Deadline,
		}}
	}
	if err := s.db.WithContext(ctx).Create(&thread).Error; err != nil {
		return nil, fmt.Errorf("thread service: create thread: %w", err)
	}

	if label := author.ClassLabel(); label != "" && !author.IsAdmin {
		s.notifyThread(author, &thread, label)
	}
	return &CreateThreadResult{Type: CreatedThread, Thread: &thread}, nil
}

// AddComment attaches a sub-task to a thread. Classmates are notified only
// when the commenter belongs to the thread author's class.
func (s *ThreadService) AddComment(ctx context.Context, author *models.User, threadID string, input AddCommentInput) (*models.Comment, error) {
	ctx = ensureContext(ctx)
	if author == nil {
		return nil, apperrors.ErrUnauthorized
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewBadRequest("content is required")
	}

	thread, err := s.load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	row := models.Comment{
		ThreadID: thread.ID,
		AuthorID: author.ID,
		Content:  content,
		Deadline: input.Deadline,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("thread service: create comment: %w", err)
	}

	threadClass := thread.Author.ClassLabel()
	switch {
	case threadClass == "":
		s.log.Debug("comment notification skipped", zap.String("thread_id", thread.ID), zap.String("reason", "thread author has no class"))
	case !author.InClass(threadClass):
		s.log.Debug("comment notification skipped", zap.String("thread_id", thread.ID), zap.String("reason", "class mismatch"))
	case author.IsAdmin:
		s.log.Debug("comment notification skipped", zap.String("thread_id", thread.ID), zap.String("reason", "author is admin"))
	default:
		s.notifyComment(author, thread, &row, threadClass)
	}
	return &row, nil
}

// Complete records that user finished the thread. Completing twice is a no-op.
func (s *ThreadService) Complete(ctx context.Context, userID, threadID string) error {
	ctx = ensureContext(ctx)
	if _, err := s.load(ctx, threadID); err != nil {
		return err
	}

	history := models.History{
		UserID:        strings.TrimSpace(userID),
		ThreadID:      strings.TrimSpace(threadID),
		CompletedDate: s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "thread_id"}},
		DoNothing: true,
	}).Create(&history).Error
	if err != nil {
		return fmt.Errorf("thread service: complete thread: %w", err)
	}
	return nil
}

// Uncomplete removes the user's completion mark.
func (s *ThreadService) Uncomplete(ctx context.Context, userID, threadID string) error {
	ctx = ensureContext(ctx)
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", strings.TrimSpace(userID), strings.TrimSpace(threadID)).
		Delete(&models.History{}).Error
	if err != nil {
		return fmt.Errorf("thread service: uncomplete thread: %w", err)
	}
	return nil
}

func (s *ThreadService) load(ctx context.Context, threadID string) (*models.Thread, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, apperrors.NewBadRequest("thread id is required")
	}
	var thread models.Thread
	if err := s.db.WithContext(ctx).Preload("Author").Where("id = ?", threadID).First(&thread).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("thread not found")
		}
		return nil, fmt.Errorf("thread service: load thread: %w", err)
	}
	return &thread, nil
}

func (s *ThreadService) findTodayThread(ctx context.Context, author *models.User, title string, from, to time.Time) (*models.Thread, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Thread{}).
		Joins("JOIN users ON users.id = threads.author_id").
		Where("threads.title = ? AND threads.date >= ? AND threads.date < ?", title, from, to)
	if label := author.ClassLabel(); label != "" {
		query = query.Where("users.kelas = ?", label)
	} else {
		query = query.Where("users.kelas IS NULL")
	}

	var thread models.Thread
	err := query.Preload("Author").Order("threads.created_at ASC").First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("thread service: find today's thread: %w", err)
	}
	return &thread, nil
}

func (s *ThreadService) notifyThread(author *models.User, thread *models.Thread, kelas string) {
	body := fmt.Sprintf("%s - %s. Yuk, cek dan selesaikan sekarang!", author.Name, thread.Title)
	if len(thread.Comments) > 0 {
		body = fmt.Sprintf("%s - %s. %s", author.Name, thread.Title, preview(thread.Comments[0].Content, commentPreviewLen))
	}

	s.dispatch("thread.notify", author.ID, kelas, ClassPushInput{
		Kelas: kelas,
		Title: "Tugas Baru",
		Body:  body,
		Type:  NotificationTask,
		Data: map[string]string{
			"type":        "new_thread",
			"threadId":    thread.ID,
			"threadTitle": thread.Title,
			"url":         "/threads/" + thread.ID,
		},
	}, CreateNotificationInput{
		Type:     NotificationTask,
		Title:    "Tugas Baru",
		Message:  body,
		ThreadID: thread.ID,
	})
}

func (s *ThreadService) notifyComment(author *models.User, thread *models.Thread, comment *models.Comment, kelas string) {
	name := defaultIfEmpty(author.Name, "Seseorang")
	body := fmt.Sprintf("%s - %s. %s", name, thread.Title, preview(comment.Content, commentPreviewLen))

	s.dispatch("comment.notify", author.ID, kelas, ClassPushInput{
		Kelas: kelas,
		Title: "Sub Tugas Baru",
		Body:  body,
		Type:  NotificationComment,
		Data: map[string]string{
			"type":        "new_comment",
			"threadId":    thread.ID,
			"threadTitle": thread.Title,
			"commentId":   comment.ID,
			"threadDate":  thread.Date.UTC().Format(time.RFC3339),
			"url":         "/threads/" + thread.ID,
		},
	}, CreateNotificationInput{
		Type:      NotificationComment,
		Title:     "Sub Tugas Baru",
		Message:   body,
		ThreadID:  thread.ID,
		CommentID: comment.ID,
	})
}

// dispatch sends the class push and records in-app notifications for the
// author's classmates without blocking the caller.
func (s *ThreadService) dispatch(task, authorID, kelas string, pushInput ClassPushInput, inboxInput CreateNotificationInput) {
	s.tasks.Go(task, func(ctx context.Context) error {
		var errs error
		if s.notifier != nil {
			if _, err := s.notifier.SendToClass(ctx, pushInput); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if s.inbox != nil {
			members, err := classmates(ctx, s.db, kelas, authorID)
			if err == nil {
				_, err = s.inbox.CreateForUsers(ctx, members, inboxInput)
			}
			errs = multierr.Append(errs, err)
		}
		return errs
	})
}
