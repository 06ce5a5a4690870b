package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/encoder"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/metrics"
	"github.com/darkodi/shortlink/internal/model"
	"github.com/darkodi/shortlink/internal/repository"
	"github.com/darkodi/shortlink/internal/validator"
)

const (
	DefaultMaxAliasAttempts = 16
	DefaultListLimit        = 50
	MaxListLimit            = 100

	// DefaultResolveTimeout bounds the storage read shared by concurrent
	// misses on one alias.
	DefaultResolveTimeout = 5 * time.Second
)

// Messages surfaced to clients
const (
	MsgUserNotFound     = "User not found"
	MsgAliasExists      = "Alias already exists"
	MsgURLNotFound      = "URL not found"
	MsgTierLimitReached = "Tier Limit Reached: You have reached your monthly limit"
)

// URLStore persists URL records. repository.URLRepository implements it.
type URLStore interface {
	Create(ctx context.Context, url *model.URL) error
	FindByAlias(ctx context.Context, alias string) (*model.URL, error)
	FindByFilter(ctx context.Context, filter model.URLFilter, skip, limit int) ([]*model.URL, error)
	CountByFilter(ctx context.Context, filter model.URLFilter, skip, limit int) (int64, error)
	IncrementClicks(ctx context.Context, alias string) (*model.URL, error)
}

// UserDirectory looks users up by email.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// AliasCounter hands out strictly increasing values.
type AliasCounter interface {
	Next(ctx context.Context) (uint64, error)
}

// Cache maps aliases to target URLs. Get never fails; Set and Delete report
// shared-tier failures only.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Deps are the collaborators of URLService.
type Deps struct {
	URLs      URLStore
	Users     UserDirectory
	Counter   AliasCounter
	Cache     Cache
	Validator *validator.URLValidator
	Logger    *logger.Logger

	BaseURL          string
	MaxAliasAttempts int
	ResolveTimeout   time.Duration
	Now              func() time.Time
}

// URLService handles business logic for URL operations
type URLService struct {
	urls      URLStore
	users     UserDirectory
	counter   AliasCounter
	cache     Cache
	validator *validator.URLValidator
	log       *logger.Logger

	baseURL        string
	maxAttempts    int
	resolveTimeout time.Duration
	now            func() time.Time

	resolving singleflight.Group
}

// NewURLService creates a new service instance
func NewURLService(d Deps) *URLService {
	s := &URLService{
		urls:           d.URLs,
		users:          d.Users,
		counter:        d.Counter,
		cache:          d.Cache,
		validator:      d.Validator,
		log:            d.Logger,
		baseURL:        strings.TrimRight(d.BaseURL, "/"),
		maxAttempts:    d.MaxAliasAttempts,
		resolveTimeout: d.ResolveTimeout,
		now:            d.Now,
	}
	if s.validator == nil {
		s.validator = validator.NewURLValidator()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = DefaultMaxAliasAttempts
	}
	if s.resolveTimeout <= 0 {
		s.resolveTimeout = DefaultResolveTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateShortURL validates the target, picks an alias, persists the record
// and warms the cache.
func (s *URLService) CreateShortURL(ctx context.Context, req model.CreateURLRequest, ownerEmail string) (*model.URL, error) {
	// ============ STEP 1: Validation ============
	if appErr := s.validator.ValidateURL(req.URL); appErr != nil {
		return nil, appErr
	}

	// ============ STEP 2: Resolve owner ============
	owner, err := s.lookupUser(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	// ============ STEP 3: Alias + persist ============
	var record *model.URL
	if req.CustomAlias != "" {
		record, err = s.createWithCustomAlias(ctx, req, owner.ID)
	} else {
		record, err = s.createWithGeneratedAlias(ctx, req, owner.ID)
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordURLCreated(record.IsCustomAlias)

	// ============ STEP 4: Cache ============
	if err := s.cache.Set(ctx, record.Alias, record.TargetURL); err != nil {
		logger.FromContext(ctx, s.log).Warn("cache populate failed after create",
			"alias", record.Alias, "error", err)
	}

	s.decorate(record)
	logger.FromContext(ctx, s.log).Info("short url created",
		"alias", record.Alias, "owner_id", record.OwnerID, "custom", record.IsCustomAlias)
	return record, nil
}

func (s *URLService) createWithCustomAlias(ctx context.Context, req model.CreateURLRequest, ownerID string) (*model.URL, error) {
	if appErr := s.validator.ValidateCustomAlias(req.CustomAlias); appErr != nil {
		return nil, appErr
	}

	_, err := s.urls.FindByAlias(ctx, req.CustomAlias)
	if err == nil {
		return nil, apperr.Conflict(MsgAliasExists)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("check custom alias: %w", err))
	}

	record := &model.URL{
		Alias:         req.CustomAlias,
		TargetURL:     req.URL,
		OwnerID:       ownerID,
		IsCustomAlias: true,
	}
	if err := s.urls.Create(ctx, record); err != nil {
		// Lost a race with a concurrent request for the same alias.
		if errors.Is(err, repository.ErrDuplicateAlias) {
			return nil, apperr.Conflict(MsgAliasExists)
		}
		return nil, apperr.Internal(fmt.Errorf("create url: %w", err))
	}
	return record, nil
}

// createWithGeneratedAlias draws counter values until one encodes to a free
// alias. A taken alias is only possible when a custom alias happens to match
// an encoded counter value.
func (s *URLService) createWithGeneratedAlias(ctx context.Context, req model.CreateURLRequest, ownerID string) (*model.URL, error) {
	log := logger.FromContext(ctx, s.log)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		n, err := s.counter.Next(ctx)
		if err != nil {
			return nil, apperr.Unavailable(fmt.Errorf("next alias value: %w", err))
		}

		alias := encoder.Encode(n)
		if alias == "" {
			continue
		}

		_, err = s.urls.FindByAlias(ctx, alias)
		if err == nil {
			metrics.AliasCollisions.Inc()
			log.Warn("generated alias already taken", "alias", alias, "attempt", attempt)
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Internal(fmt.Errorf("check generated alias: %w", err))
		}

		record := &model.URL{
			Alias:     alias,
			TargetURL: req.URL,
			OwnerID:   ownerID,
		}
		err = s.urls.Create(ctx, record)
		if errors.Is(err, repository.ErrDuplicateAlias) {
			metrics.AliasCollisions.Inc()
			log.Warn("generated alias taken concurrently", "alias", alias, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("create url: %w", err))
		}
		return record, nil
	}

	return nil, apperr.Internal(fmt.Errorf("no free alias after %d attempts", s.maxAttempts))
}

// Resolve returns the target URL for alias. Cache misses for the same alias
// share a single persistence read. That read is detached from any one
// caller's cancellation; each caller stops waiting when its own ctx ends.
func (s *URLService) Resolve(ctx context.Context, alias string) (string, error) {
	if !encoder.IsValid(alias) {
		metrics.RecordRedirect("not_found")
		return "", apperr.NotFound(MsgURLNotFound)
	}

	if target, ok := s.cache.Get(ctx, alias); ok {
		metrics.RecordRedirect("found")
		return target, nil
	}

	ch := s.resolving.DoChan(alias, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.resolveTimeout)
		defer cancel()

		record, err := s.urls.FindByAlias(readCtx, alias)
		if err != nil {
			return "", err
		}
		if err := s.cache.Set(readCtx, alias, record.TargetURL); err != nil {
			logger.FromContext(ctx, s.log).Warn("cache populate failed after resolve",
				"alias", alias, "error", err)
		}
		return record.TargetURL, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", apperr.Internal(fmt.Errorf("resolve %q: %w", alias, ctx.Err()))
	}

	v, err := res.Val, res.Err
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordRedirect("not_found")
		return "", apperr.NotFound(MsgURLNotFound)
	}
	if err != nil {
		metrics.RecordRedirect("error")
		return "", apperr.Internal(fmt.Errorf("resolve %q: %w", alias, err))
	}

	metrics.RecordRedirect("found")
	return v.(string), nil
}

// RecordClick adds one click to alias and stamps last_clicked_at.
func (s *URLService) RecordClick(ctx context.Context, alias string) (*model.URL, error) {
	record, err := s.urls.IncrementClicks(ctx, alias)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(MsgURLNotFound)
	}
	if err != nil {
		metrics.ClickFailures.Inc()
		return nil, apperr.Internal(fmt.Errorf("record click: %w", err))
	}
	s.decorate(record)
	return record, nil
}

// GetURLStats returns the persisted record for alias
func (s *URLService) GetURLStats(ctx context.Context, alias string) (*model.URL, error) {
	record, err := s.urls.FindByAlias(ctx, alias)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(MsgURLNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get url stats: %w", err))
	}
	s.decorate(record)
	return record, nil
}

// ListURLs returns the owner's URLs, newest first.
func (s *URLService) ListURLs(ctx context.Context, ownerEmail string, q model.ListURLsQuery) ([]*model.URL, error) {
	owner, err := s.lookupUser(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	skip := max(q.Skip, 0)
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	filter := model.URLFilter{OwnerID: owner.ID, IsCustomAlias: q.Custom}
	records, err := s.urls.FindByFilter(ctx, filter, skip, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list urls: %w", err))
	}
	for _, r := range records {
		s.decorate(r)
	}
	return records, nil
}

// GetTierLimits returns the monthly limit of every tier, lowest tier first.
func (s *URLService) GetTierLimits() []model.TierLimit {
	limits := make([]model.TierLimit, 0, len(model.Tiers))
	for _, tier := range model.Tiers {
		limits = append(limits, model.TierLimit{Tier: tier, Limit: model.TierLimits[tier]})
	}
	return limits
}

// CountURLsForOwnerInMonth counts URLs created by ownerID during the UTC
// calendar month that contains month.
func (s *URLService) CountURLsForOwnerInMonth(ctx context.Context, ownerID string, month time.Time) (int64, error) {
	return s.countInMonth(ctx, ownerID, month, 0)
}

// CheckQuota rejects the user once this month's creations reach the tier
// limit.
func (s *URLService) CheckQuota(ctx context.Context, email string) error {
	user, err := s.lookupUser(ctx, email)
	if err != nil {
		return err
	}

	tier := user.Tier
	if !tier.Valid() {
		tier = model.TierFree
	}
	limit := model.TierLimits[tier]

	// Counting stops one past the limit; the exact total is not needed.
	count, err := s.countInMonth(ctx, user.ID, s.now(), limit+1)
	if err != nil {
		return err
	}
	if count >= int64(limit) {
		metrics.QuotaRejections.WithLabelValues(string(tier)).Inc()
		now := s.now()
		_, reset := MonthBounds(now)
		return apperr.TooManyRequests(MsgTierLimitReached).WithRetryAfter(reset.Sub(now))
	}
	return nil
}

// ============ HELPERS ============

func (s *URLService) countInMonth(ctx context.Context, ownerID string, month time.Time, limit int) (int64, error) {
	from, before := MonthBounds(month)
	filter := model.URLFilter{OwnerID: ownerID, CreatedFrom: from, CreatedBefore: before}

	count, err := s.urls.CountByFilter(ctx, filter, 0, limit)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("count urls for month: %w", err))
	}
	return count, nil
}

func (s *URLService) lookupUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("lookup user: %w", err))
	}
	return user, nil
}

func (s *URLService) decorate(record *model.URL) {
	record.ShortURL = s.baseURL + "/" + record.Alias
}

// MonthBounds returns [first instant of t's UTC month, first instant of the
// next month).
func MonthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
