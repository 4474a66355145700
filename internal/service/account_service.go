package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-gin-gorm-accounts/internal/core/logger"
	"go-gin-gorm-accounts/internal/domain"
)

// Repository is what the service needs from the account repository.
type Repository interface {
	Create(ctx context.Context, rec domain.NewAccountRecord) (*domain.Account, error)
	FindOne(ctx context.Context, c domain.Criteria) (*domain.Account, error)
	FindOneWithCredential(ctx context.Context, c domain.Criteria) (*domain.PrivilegedAccount, error)
	FindByCredentialKey(ctx context.Context, email string) (*domain.PrivilegedAccount, error)
	FindMany(ctx context.Context, q domain.ListQuery) ([]domain.Account, error)
	Count(ctx context.Context, f domain.Filter) (int64, error)
	Update(ctx context.Context, c domain.Criteria, ch domain.Changes) (*domain.Account, error)
	Delete(ctx context.Context, c domain.Criteria) (*domain.Account, error)
}

type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

type TokenIssuer interface {
	Issue(id, email, role string) (string, error)
}

// AccountCache caches public projections by id.
type AccountCache interface {
	Get(ctx context.Context, id string, load func(context.Context) (*domain.Account, error)) (*domain.Account, error)
	Invalidate(ctx context.Context, id string)
}

type Options struct {
	// EmailCaseInsensitive trims and lower-cases every email before it is
	// stored or looked up.
	EmailCaseInsensitive bool
	MaxPageSize          int
}

type Deps struct {
	Repo   Repository
	Hasher Hasher
	Tokens TokenIssuer
	Cache  AccountCache // optional
	Log    *zap.Logger
}

type AccountService struct {
	repo   Repository
	hasher Hasher
	tokens TokenIssuer
	cache  AccountCache
	log    *zap.Logger
	opts   Options

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(d Deps, opts Options) *AccountService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	return &AccountService{
		repo:   d.Repo,
		hasher: d.Hasher,
		tokens: d.Tokens,
		cache:  d.Cache,
		log:    d.Log.Named("accounts"),
		opts:   opts,
	}
}

func (s *AccountService) normEmail(e string) string {
	e = strings.TrimSpace(e)
	if s.opts.EmailCaseInsensitive {
		e = strings.ToLower(e)
	}
	return e
}

// Register creates a USER account and signs a token for it.
func (s *AccountService) Register(ctx context.Context, in domain.NewAccountInput) (*domain.AuthResult, error) {
	if err := in.Validate(false); err != nil {
		return nil, err
	}
	acc, err := s.create(ctx, in, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.authResult(*acc)
}

// CreatePrivileged is Register with an explicit role and no token. Callers
// must have been authorized upstream.
func (s *AccountService) CreatePrivileged(ctx context.Context, in domain.NewAccountInput) (*domain.Account, error) {
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	role := domain.RoleUser
	if in.Role != nil {
		role = *in.Role
	}
	return s.create(ctx, in, role)
}

func (s *AccountService) create(ctx context.Context, in domain.NewAccountInput, role domain.Role) (*domain.Account, error) {
	email := s.normEmail(in.Email)

	existing, err := s.repo.FindOne(ctx, domain.ByEmail(email))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrConflict
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}
	// the store's unique index still catches a concurrent winner; Create
	// reports that as ErrConflict too
	acc, err := s.repo.Create(ctx, domain.NewAccountRecord{
		Email:          email,
		CredentialHash: hash,
		DisplayName:    in.DisplayName,
		Role:           role,
	})
	if err != nil {
		return nil, err
	}
	accountEvents.WithLabelValues("created").Inc()
	s.logger(ctx).Info("account created", zap.String("id", acc.ID), zap.String("role", string(acc.Role)))
	return acc, nil
}

// Login answers ErrUnauthorized for an unknown email and for a wrong secret
// alike, and spends one hash verification in both cases.
func (s *AccountService) Login(ctx context.Context, email, secret string) (*domain.AuthResult, error) {
	priv, err := s.repo.FindByCredentialKey(ctx, s.normEmail(email))
	if err != nil {
		return nil, err
	}
	if priv == nil {
		s.hasher.Verify(secret, s.dummy())
		return nil, domain.ErrUnauthorized
	}
	if !s.hasher.Verify(secret, priv.CredentialHash) {
		return nil, domain.ErrUnauthorized
	}
	return s.authResult(priv.Account)
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equaliser-not-a-password")
		if err != nil {
			s.log.Warn("dummy hash failed", zap.Error(err))
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AccountService) authResult(acc domain.Account) (*domain.AuthResult, error) {
	tok, err := s.tokens.Issue(acc.ID, acc.Email, string(acc.Role))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &domain.AuthResult{Account: acc, Token: tok}, nil
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	load := func(ctx context.Context) (*domain.Account, error) {
		acc, err := s.repo.FindOne(ctx, domain.ByID(id))
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return nil, domain.ErrNotFound
		}
		return acc, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	acc, err := s.cache.Get(ctx, id, load)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, domain.ErrNotFound
	}
	return acc, nil
}

// ListPage returns one 1-based page of live accounts, newest first unless
// order says otherwise.
func (s *AccountService) ListPage(ctx context.Context, page, pageSize int, f domain.Filter, order domain.Ordering) (*domain.Page, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page and pageSize must be positive", domain.ErrInvalidInput)
	}
	if pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.MaxPageSize
	}
	if f.EmailContains != "" {
		f.EmailContains = s.normEmail(f.EmailContains)
	}
	// live rows only; the tombstone audit goes through its own path
	f.Tombstoned = nil
	if order.Field == "" {
		order = domain.NewestFirst
	}

	var (
		items []domain.Account
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.FindMany(gctx, domain.ListQuery{
			Skip:   (page - 1) * pageSize,
			Take:   pageSize,
			Filter: f,
			Order:  order,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Page{
		Accounts:   items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// UpdateProfile applies email and displayName changes. Role is not part of
// domain.ProfileFields, so it cannot be changed here.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, f domain.ProfileFields) (*domain.Account, error) {
	cur, err := s.repo.FindOne(ctx, domain.ByID(id))
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domain.ErrNotFound
	}

	var ch domain.Changes
	if f.Email != nil {
		email := s.normEmail(*f.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: email", domain.ErrInvalidInput)
		}
		if email != cur.Email {
			other, err := s.repo.FindOne(ctx, domain.ByEmail(email))
			if err != nil {
				return nil, err
			}
			if other != nil && other.ID != id {
				return nil, domain.ErrConflict
			}
			ch.Email = &email
		}
	}
	if f.DisplayName != nil {
		name := strings.TrimSpace(*f.DisplayName)
		ch.DisplayName = &name
	}
	if ch.Empty() {
		return cur, nil
	}

	acc, err := s.repo.Update(ctx, domain.ByID(id), ch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	accountEvents.WithLabelValues("updated").Inc()
	s.logger(ctx).Info("account updated", zap.String("id", id))
	return acc, nil
}

func (s *AccountService) UpdateCredential(ctx context.Context, id, current, next string) (*domain.Account, error) {
	if err := domain.ValidatePassword(next); err != nil {
		return nil, err
	}
	priv, err := s.repo.FindOneWithCredential(ctx, domain.ByID(id))
	if err != nil {
		return nil, err
	}
	if priv == nil {
		return nil, domain.ErrNotFound
	}
	if !s.hasher.Verify(current, priv.CredentialHash) {
		return nil, domain.ErrInvalidCredential
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}
	acc, err := s.repo.Update(ctx, domain.ByID(id), domain.Changes{CredentialHash: &hash})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	accountEvents.WithLabelValues("credential_updated").Inc()
	s.logger(ctx).Info("credential updated", zap.String("id", id))
	return acc, nil
}

// Remove tombstones the account and returns it as it was before.
func (s *AccountService) Remove(ctx context.Context, id string) (*domain.Account, error) {
	acc, err := s.repo.Delete(ctx, domain.ByID(id))
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, domain.ErrNotFound
	}
	s.invalidate(ctx, id)
	accountEvents.WithLabelValues("removed").Inc()
	s.logger(ctx).Info("account removed", zap.String("id", id))
	return acc, nil
}

// logger carries the request id and caller put on ctx by the HTTP layer.
func (s *AccountService) logger(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.log)
}

func (s *AccountService) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
}
