package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type logRepo struct {
	store *Store
}

// ExecutionLogs returns the rule execution log repository view.
func (s *Store) ExecutionLogs() repository.RuleExecutionLogRepository {
	return &logRepo{store: s}
}

func (r *logRepo) Create(_ context.Context, entry *domain.RuleExecutionLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = r.store.now()
	}
	clone := *entry
	clone.RuleID = cloneStringPtr(entry.RuleID)
	r.store.logs = append(r.store.logs, &clone)
	return nil
}

func (r *logRepo) List(_ context.Context, filter repository.ExecutionLogFilter) ([]domain.RuleExecutionLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.RuleExecutionLog
	for _, entry := range r.store.logs {
		if filter.TicketID != nil && entry.TicketID != *filter.TicketID {
			continue
		}
		if filter.RuleID != nil && (entry.RuleID == nil || *entry.RuleID != *filter.RuleID) {
			continue
		}
		if filter.Outcome != nil && entry.Outcome != *filter.Outcome {
			continue
		}
		clone := *entry
		clone.RuleID = cloneStringPtr(entry.RuleID)
		result = append(result, clone)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExecutedAt.After(result[j].ExecutedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *logRepo) Stats(_ context.Context) (*repository.ExecutionStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var stats repository.ExecutionStats
	for _, entry := range r.store.logs {
		stats.Total++
		switch entry.Outcome {
		case domain.OutcomeSuccess:
			stats.Success++
		case domain.OutcomeFailed:
			stats.Failed++
		case domain.OutcomeSkipped:
			stats.Skipped++
		}
	}
	return &stats, nil
}

type activityRepo struct {
	store *Store
}

// Activities returns the ticket activity repository view.
func (s *Store) Activities() repository.TicketActivityRepository {
	return &activityRepo{store: s}
}

func (r *activityRepo) Create(_ context.Context, activity *domain.TicketActivity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = r.store.now()
	}
	clone := *activity
	clone.ActorID = cloneStringPtr(activity.ActorID)
	r.store.activities = append(r.store.activities, &clone)
	return nil
}

func (r *activityRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.TicketActivity
	for _, activity := range r.store.activities {
		if activity.TicketID == ticketID {
			result = append(result, *activity)
		}
	}
	// newest first, stable within equal timestamps
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

type commentRepo struct {
	store *Store
}

// Comments returns the ticket comment repository view.
func (s *Store) Comments() repository.TicketCommentRepository {
	return &commentRepo{store: s}
}

func (r *commentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = r.store.now()
	}
	clone := *comment
	clone.AuthorID = cloneStringPtr(comment.AuthorID)
	r.store.comments = append(r.store.comments, &clone)
	return nil
}

func (r *commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.TicketComment
	for _, comment := range r.store.comments {
		if comment.TicketID == ticketID {
			result = append(result, *comment)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type tagRepo struct {
	store *Store
}

// Tags returns the tag repository view.
func (s *Store) Tags() repository.TagRepository {
	return &tagRepo{store: s}
}

func (r *tagRepo) GetOrCreate(_ context.Context, name string) (*domain.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	slug := repository.Slugify(name)
	if tag, ok := r.store.tags[slug]; ok {
		clone := *tag
		return &clone, nil
	}
	tag := &domain.Tag{ID: uuid.NewString(), Name: strings.TrimSpace(name), Slug: slug}
	r.store.tags[slug] = tag
	clone := *tag
	return &clone, nil
}

type categoryRepo struct {
	store *Store
}

// Categories returns the category repository view.
func (s *Store) Categories() repository.CategoryRepository {
	return &categoryRepo{store: s}
}

func (r *categoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	category, ok := r.store.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *category
	return &clone, nil
}

type userRepo struct {
	store *Store
}

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository {
	return &userRepo{store: s}
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, user := range r.store.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *userRepo) FindEligibleAgent(_ context.Context, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	user, ok := r.store.users[id]
	if !ok || !user.IsActive || !user.Role.EligibleAssignee() {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *userRepo) ListManagers(_ context.Context) ([]domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.User
	for _, user := range r.store.users {
		if user.IsActive && (user.Role == domain.RoleManager || user.Role == domain.RoleAdmin) {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type notificationRepo struct {
	store *Store
}

// Notifications returns the notification repository view.
func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepo{store: s}
}

func (r *notificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = r.store.now()
	}
	clone := *notification
	clone.TicketID = cloneStringPtr(notification.TicketID)
	r.store.notifications = append(r.store.notifications, &clone)
	return nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Notification
	for _, notification := range r.store.notifications {
		if notification.UserID == userID {
			result = append(result, *notification)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit <= 0 {
		limit = 20
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
