package service

import (
	"context"

	"go-gin-gorm-accounts/internal/domain"
)

// TombstoneAuditor lists tombstoned rows. It is separate from Repository so
// the account service itself has no way to reach tombstoned data.
type TombstoneAuditor interface {
	ListTombstoned(ctx context.Context, skip, take int) ([]domain.Account, int64, error)
}

// Secured runs every caller-facing operation through the guard before it
// reaches the account service.
type Secured struct {
	svc   *AccountService
	guard *Guard
	audit TombstoneAuditor
}

func NewSecured(svc *AccountService, guard *Guard, audit TombstoneAuditor) *Secured {
	return &Secured{svc: svc, guard: guard, audit: audit}
}

func (s *Secured) Register(ctx context.Context, in domain.NewAccountInput) (*domain.AuthResult, error) {
	return s.svc.Register(ctx, in)
}

func (s *Secured) Login(ctx context.Context, email, secret string) (*domain.AuthResult, error) {
	return s.svc.Login(ctx, email, secret)
}

func (s *Secured) Me(ctx context.Context, caller domain.Caller) (*domain.Account, error) {
	return s.GetByID(ctx, caller, caller.ID)
}

func (s *Secured) CreatePrivileged(ctx context.Context, caller domain.Caller, in domain.NewAccountInput) (*domain.Account, error) {
	if err := s.guard.Authorize(caller, OpCreatePrivileged, ""); err != nil {
		return nil, err
	}
	return s.svc.CreatePrivileged(ctx, in)
}

func (s *Secured) ListPage(ctx context.Context, caller domain.Caller, page, pageSize int, f domain.Filter, order domain.Ordering) (*domain.Page, error) {
	if err := s.guard.Authorize(caller, OpList, ""); err != nil {
		return nil, err
	}
	return s.svc.ListPage(ctx, page, pageSize, f, order)
}

func (s *Secured) GetByID(ctx context.Context, caller domain.Caller, id string) (*domain.Account, error) {
	if err := s.guard.Authorize(caller, OpView, id); err != nil {
		return nil, err
	}
	return s.svc.GetByID(ctx, id)
}

func (s *Secured) UpdateProfile(ctx context.Context, caller domain.Caller, id string, f domain.ProfileFields) (*domain.Account, error) {
	if err := s.guard.Authorize(caller, OpUpdateProfile, id); err != nil {
		return nil, err
	}
	return s.svc.UpdateProfile(ctx, id, f)
}

func (s *Secured) UpdateCredential(ctx context.Context, caller domain.Caller, id, current, next string) (*domain.Account, error) {
	if err := s.guard.Authorize(caller, OpUpdateCredential, id); err != nil {
		return nil, err
	}
	return s.svc.UpdateCredential(ctx, id, current, next)
}

func (s *Secured) Remove(ctx context.Context, caller domain.Caller, id string) (*domain.Account, error) {
	if err := s.guard.Authorize(caller, OpRemove, id); err != nil {
		return nil, err
	}
	return s.svc.Remove(ctx, id)
}

// ListTombstoned pages through tombstoned accounts for maintenance.
func (s *Secured) ListTombstoned(ctx context.Context, caller domain.Caller, page, pageSize int) (*domain.Page, error) {
	if err := s.guard.Authorize(caller, OpAuditTombstoned, ""); err != nil {
		return nil, err
	}
	if page < 1 || pageSize < 1 {
		return nil, domain.ErrInvalidInput
	}
	if pageSize > s.svc.opts.MaxPageSize {
		pageSize = s.svc.opts.MaxPageSize
	}
	items, total, err := s.audit.ListTombstoned(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
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
