package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chore-tracker/internal/metrics"
	"chore-tracker/internal/model"
	"chore-tracker/internal/sentinel"
)

// HistoryLimit is the number of tasks returned by GetHistory.
const HistoryLimit = 20

const maxShareCodeAttempts = 16

type DocumentStore interface {
	Load(ctx context.Context) (*model.Document, error)
	Save(ctx context.Context, doc *model.Document) error
}

// HouseholdCreated is the result of CreateHousehold.
type HouseholdCreated struct {
	HouseholdID int64
	UserID      int64
	ShareCode   string
}

// Membership identifies a user within a household.
type Membership struct {
	HouseholdID int64
	UserID      int64
}

// Members lists a household's users along with its share code.
type Members struct {
	Users     []model.User
	ShareCode string
}

// HistoryEntry is a task resolved to current user and category names.
type HistoryEntry struct {
	TaskID   int64
	User     string
	Category string
	Time     time.Time
}

// ChoreService applies the chore operations to the stored document. Each
// call loads the document, works on it and saves it back while holding mu,
// so concurrent callers in this process cannot lose each other's updates.
type ChoreService struct {
	store   DocumentStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	random  io.Reader
	mu      sync.Mutex
}

type Option func(s *ChoreService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *ChoreService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ChoreService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ChoreService) {
		s.now = now
	}
}

// WithRandom sets the source used for share codes.
func WithRandom(r io.Reader) Option {
	return func(s *ChoreService) {
		s.random = r
	}
}

func NewChoreService(store DocumentStore, opts ...Option) *ChoreService {
	s := &ChoreService{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateHousehold starts a household whose first member is called name.
func (s *ChoreService) CreateHousehold(ctx context.Context, name string) (HouseholdCreated, error) {
	name = strings.TrimSpace(name)
	var out HouseholdCreated
	err := s.mutate(ctx, "create_household", func(doc *model.Document) error {
		if name == "" {
			return fmt.Errorf("%w: name is required", sentinel.ErrValidation)
		}
		code, err := s.uniqueShareCode(doc)
		if err != nil {
			return err
		}
		h := doc.AddHousehold(model.Household{
			ID:            doc.NextHousehold(),
			ShareCode:     code,
			Users:         []model.User{},
			Categories:    []model.Category{},
			Tasks:         []model.Task{},
			OverallCounts: map[int64]int64{},
		})
		creator := model.User{ID: doc.NextUser(), Name: name}
		h.AddUser(creator)
		out = HouseholdCreated{HouseholdID: h.ID, UserID: creator.ID, ShareCode: code}
		return nil
	})
	if err != nil {
		return HouseholdCreated{}, err
	}
	s.logger.Info("household created", "household_id", out.HouseholdID, "user_id", out.UserID)
	return out, nil
}

func (s *ChoreService) uniqueShareCode(doc *model.Document) (string, error) {
	for i := 0; i < maxShareCodeAttempts; i++ {
		code, err := model.GenerateShareCode(s.random)
		if err != nil {
			return "", fmt.Errorf("generate share code: %w", err)
		}
		if doc.HouseholdByShareCode(code) == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no unused share code after %d attempts", sentinel.ErrConflict, maxShareCodeAttempts)
}

// JoinHousehold adds a member called name to the household owning code.
func (s *ChoreService) JoinHousehold(ctx context.Context, code, name string) (Membership, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	var out Membership
	err := s.mutate(ctx, "join_household", func(doc *model.Document) error {
		if code == "" || name == "" {
			return fmt.Errorf("%w: code and name are required", sentinel.ErrValidation)
		}
		h := doc.HouseholdByShareCode(code)
		if h == nil {
			return fmt.Errorf("%w: share code %q", sentinel.ErrNotFound, code)
		}
		user := model.User{ID: doc.NextUser(), Name: name}
		h.AddUser(user)
		out = Membership{HouseholdID: h.ID, UserID: user.ID}
		return nil
	})
	if err != nil {
		return Membership{}, err
	}
	s.logger.Info("household joined", "household_id", out.HouseholdID, "user_id", out.UserID)
	return out, nil
}

// RenameUser changes a user's display name wherever they live.
func (s *ChoreService) RenameUser(ctx context.Context, userID int64, name string) (model.User, error) {
	name = strings.TrimSpace(name)
	var out model.User
	err := s.mutate(ctx, "rename_user", func(doc *model.Document) error {
		if userID <= 0 || name == "" {
			return fmt.Errorf("%w: user_id and name are required", sentinel.ErrValidation)
		}
		_, user := doc.FindUser(userID)
		if user == nil {
			return fmt.Errorf("%w: user %d", sentinel.ErrNotFound, userID)
		}
		user.Name = name
		out = *user
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return out, nil
}

// CreateCategory adds a category to a household. A zero weight means 1.
func (s *ChoreService) CreateCategory(ctx context.Context, householdID int64, name string, weight int64) (model.Category, error) {
	name = strings.TrimSpace(name)
	var out model.Category
	err := s.mutate(ctx, "create_category", func(doc *model.Document) error {
		if householdID <= 0 || name == "" {
			return fmt.Errorf("%w: household_id and name are required", sentinel.ErrValidation)
		}
		if weight < 0 {
			return fmt.Errorf("%w: weight must be positive, got %d", sentinel.ErrValidation, weight)
		}
		h := doc.Household(householdID)
		if h == nil {
			return fmt.Errorf("%w: household %d", sentinel.ErrNotFound, householdID)
		}
		if existing := h.CategoryByName(name); existing != nil {
			return fmt.Errorf("%w: category %q already exists", sentinel.ErrConflict, existing.Name)
		}
		c := h.AddCategory(model.Category{ID: doc.NextCategory(), Name: name, Weight: weight})
		out = c.Clone()
		return nil
	})
	if err != nil {
		return model.Category{}, err
	}
	s.logger.Info("category created", "household_id", householdID, "category_id", out.ID, "weight", out.Weight)
	return out, nil
}

// LogTask credits userID with one task in categoryID. The user and the
// category must belong to the same household.
func (s *ChoreService) LogTask(ctx context.Context, userID, categoryID int64) (model.Task, error) {
	var out model.Task
	err := s.mutate(ctx, "log_task", func(doc *model.Document) error {
		if userID <= 0 || categoryID <= 0 {
			return fmt.Errorf("%w: user_id and category_id are required", sentinel.ErrValidation)
		}
		h, c := doc.FindMembership(userID, categoryID)
		if h == nil {
			return fmt.Errorf("%w: user %d with category %d", sentinel.ErrNotFound, userID, categoryID)
		}
		c.TaskCounts[userID]++
		h.OverallCounts[userID] += c.EffectiveWeight()
		out = model.Task{
			ID:         doc.NextTask(),
			UserID:     userID,
			CategoryID: categoryID,
			Timestamp:  s.now().UTC(),
		}
		h.Tasks = append(h.Tasks, out)
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	s.metrics.IncrementTasksLogged()
	s.logger.Info("task logged", "task_id", out.ID, "user_id", userID, "category_id", categoryID)
	return out, nil
}

// GetHistory returns the latest tasks, most recent first. Names that no
// longer resolve come back empty.
func (s *ChoreService) GetHistory(ctx context.Context, householdID int64) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := s.view(ctx, "get_history", householdID, func(h *model.Household) {
		recent := h.RecentTasks(HistoryLimit)
		out = make([]HistoryEntry, 0, len(recent))
		for _, t := range recent {
			entry := HistoryEntry{TaskID: t.ID, Time: t.Timestamp}
			if u := h.User(t.UserID); u != nil {
				entry.User = u.Name
			}
			if c := h.Category(t.CategoryID); c != nil {
				entry.Category = c.Name
			}
			out = append(out, entry)
		}
	})
	return out, err
}

func (s *ChoreService) GetUsers(ctx context.Context, householdID int64) (Members, error) {
	var out Members
	err := s.view(ctx, "get_users", householdID, func(h *model.Household) {
		out = Members{
			Users:     append([]model.User(nil), h.Users...),
			ShareCode: h.ShareCode,
		}
	})
	return out, err
}

func (s *ChoreService) GetCategories(ctx context.Context, householdID int64) ([]model.Category, error) {
	var out []model.Category
	err := s.view(ctx, "get_categories", householdID, func(h *model.Household) {
		out = make([]model.Category, 0, len(h.Categories))
		for _, c := range h.Categories {
			out = append(out, c.Clone())
		}
	})
	return out, err
}

func (s *ChoreService) GetOverallCounts(ctx context.Context, householdID int64) (map[int64]int64, error) {
	var out map[int64]int64
	err := s.view(ctx, "get_overall_counts", householdID, func(h *model.Household) {
		out = make(map[int64]int64, len(h.OverallCounts))
		for k, v := range h.OverallCounts {
			out[k] = v
		}
	})
	return out, err
}

// GetStandings ranks the household's users by weighted total.
func (s *ChoreService) GetStandings(ctx context.Context, householdID int64) ([]model.Standing, error) {
	var out []model.Standing
	err := s.view(ctx, "get_standings", householdID, func(h *model.Household) {
		out = h.Standings()
	})
	return out, err
}

func (s *ChoreService) mutate(ctx context.Context, op string, fn func(doc *model.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load snapshot: %w", err)
		s.observe(op, err)
		return err
	}
	if err := fn(doc); err != nil {
		s.observe(op, err)
		return err
	}
	if err := s.store.Save(ctx, doc); err != nil {
		err = fmt.Errorf("save snapshot: %w", err)
		s.observe(op, err)
		return err
	}
	s.observe(op, nil)
	return nil
}

func (s *ChoreService) view(ctx context.Context, op string, householdID int64, fn func(h *model.Household)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if householdID <= 0 {
		err := fmt.Errorf("%w: household_id is required", sentinel.ErrValidation)
		s.observe(op, err)
		return err
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load snapshot: %w", err)
		s.observe(op, err)
		return err
	}
	h := doc.Household(householdID)
	if h == nil {
		err := fmt.Errorf("%w: household %d", sentinel.ErrNotFound, householdID)
		s.observe(op, err)
		return err
	}
	fn(h)
	s.observe(op, nil)
	return nil
}

func (s *ChoreService) observe(op string, err error) {
	outcome := Outcome(err)
	s.metrics.ObserveOperation(op, outcome)
	switch outcome {
	case "ok":
	case "validation", "not_found", "conflict":
		s.logger.Debug("operation rejected", "operation", op, "error", err)
	default:
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
}

// Outcome names the error kind of err for logs, metrics and callers that
// map failures to user-facing replies.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sentinel.ErrValidation):
		return "validation"
	case errors.Is(err, sentinel.ErrNotFound):
		return "not_found"
	case errors.Is(err, sentinel.ErrConflict):
		return "conflict"
	case errors.Is(err, sentinel.ErrIntegrity):
		return "integrity"
	case errors.Is(err, sentinel.ErrCorrupt):
		return "corrupt"
	case errors.Is(err, sentinel.ErrIO):
		return "io"
	default:
		return "error"
	}
}
