package repo

import (
	"context"
	"errors"

	"go-gin-gorm-accounts/internal/domain"
	"go-gin-gorm-accounts/internal/feature/account"
)

// AccountRepo is the projection-safe view of the users table. Public methods
// return domain.Account, which has no credential field; only FindOneWithCredential
// and FindByCredentialKey return the hash.
type AccountRepo struct {
	store *TombstoneStore
	newID func() string
}

func NewAccountRepo(store *TombstoneStore, newID func() string) *AccountRepo {
	return &AccountRepo{store: store, newID: newID}
}

func (r *AccountRepo) Create(ctx context.Context, rec domain.NewAccountRecord) (*domain.Account, error) {
	now := r.store.Now()
	row := account.AccountModel{
		ID:           r.newID(),
		Email:        rec.Email,
		PasswordHash: rec.CredentialHash,
		DisplayName:  rec.DisplayName,
		Role:         rec.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.Create(ctx, &row); err != nil {
		return nil, wrap("create", err)
	}
	acc := row.Public()
	return &acc, nil
}

// FindOne returns nil, nil when no live row matches.
func (r *AccountRepo) FindOne(ctx context.Context, c domain.Criteria) (*domain.Account, error) {
	where, err := criteriaWhere(c)
	if err != nil {
		return nil, err
	}
	var acc domain.Account
	ok, err := r.store.FindUnique(ctx, where, &acc)
	if err != nil {
		return nil, wrap("findOne", err)
	}
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

// FindOneWithCredential is FindOne with the credential hash included.
func (r *AccountRepo) FindOneWithCredential(ctx context.Context, c domain.Criteria) (*domain.PrivilegedAccount, error) {
	where, err := criteriaWhere(c)
	if err != nil {
		return nil, err
	}
	var acc domain.PrivilegedAccount
	ok, err := r.store.FindUnique(ctx, where, &acc)
	if err != nil {
		return nil, wrap("findOne", err)
	}
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

// FindByCredentialKey is the authentication lookup.
func (r *AccountRepo) FindByCredentialKey(ctx context.Context, email string) (*domain.PrivilegedAccount, error) {
	return r.FindOneWithCredential(ctx, domain.ByEmail(email))
}

func (r *AccountRepo) FindMany(ctx context.Context, q domain.ListQuery) ([]domain.Account, error) {
	order, err := ordering(q.Order)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, q.Take)
	err = r.store.FindMany(ctx, FindManyArgs{
		Where: filterWhere(q.Filter),
		Skip:  q.Skip,
		Take:  q.Take,
		Order: order,
	}, &out)
	if err != nil {
		return nil, wrap("findMany", err)
	}
	return out, nil
}

func (r *AccountRepo) Count(ctx context.Context, f domain.Filter) (int64, error) {
	n, err := r.store.Count(ctx, filterWhere(f))
	if err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// Update applies a partial change to one live account and returns it as
// stored afterwards. domain.ErrNotFound when no live row matches.
func (r *AccountRepo) Update(ctx context.Context, c domain.Criteria, ch domain.Changes) (*domain.Account, error) {
	where, err := criteriaWhere(c)
	if err != nil {
		return nil, err
	}
	where[account.ColumnDeletedAt] = nil

	data := map[string]any{"updated_at": r.store.Now()}
	if ch.Email != nil {
		data["email"] = *ch.Email
	}
	if ch.DisplayName != nil {
		data["display_name"] = *ch.DisplayName
	}
	if ch.CredentialHash != nil {
		data["password_hash"] = *ch.CredentialHash
	}

	var out domain.Account
	err = r.store.Transaction(ctx, func(tx *TombstoneStore) error {
		if _, err := tx.Update(ctx, where, data); err != nil {
			return err
		}
		// email may have just changed, so re-read by id when we have it
		reread := where
		if c.ID != "" {
			reread = Where{"id": c.ID}
		} else if ch.Email != nil {
			reread = Where{"email": *ch.Email}
		}
		ok, err := tx.FindUnique(ctx, reread, &out)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, wrap("update", err)
	}
	return &out, nil
}

// Delete tombstones one live account and returns it as it was just before.
// Returns nil, nil when no live row matches.
func (r *AccountRepo) Delete(ctx context.Context, c domain.Criteria) (*domain.Account, error) {
	where, err := criteriaWhere(c)
	if err != nil {
		return nil, err
	}
	var before *domain.Account
	err = r.store.Transaction(ctx, func(tx *TombstoneStore) error {
		var acc domain.Account
		ok, err := tx.FindUnique(ctx, where, &acc)
		if err != nil || !ok {
			return err
		}
		n, err := tx.Delete(ctx, Where{"id": acc.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			// lost a race with a concurrent delete
			return nil
		}
		before = &acc
		return nil
	})
	if err != nil {
		return nil, wrap("delete", err)
	}
	return before, nil
}

// ListTombstoned is the audit listing. It constrains deleted_at explicitly,
// which the store leaves untouched.
func (r *AccountRepo) ListTombstoned(ctx context.Context, skip, take int) ([]domain.Account, int64, error) {
	yes := true
	f := domain.Filter{Tombstoned: &yes}
	items, err := r.FindMany(ctx, domain.ListQuery{Skip: skip, Take: take, Filter: f, Order: domain.NewestFirst})
	if err != nil {
		return nil, 0, err
	}
	total, err := r.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func criteriaWhere(c domain.Criteria) (Where, error) {
	switch {
	case c.ID != "":
		return Where{"id": c.ID}, nil
	case c.Email != "":
		return Where{"email": c.Email}, nil
	}
	return nil, domain.ErrInvalidInput
}

func filterWhere(f domain.Filter) Where {
	w := Where{}
	if f.Role != nil {
		w["role"] = string(*f.Role)
	}
	if f.EmailContains != "" {
		w["email"] = Contains(f.EmailContains)
	}
	if f.Tombstoned != nil {
		if *f.Tombstoned {
			w[account.ColumnDeletedAt] = NotNull
		} else {
			w[account.ColumnDeletedAt] = nil
		}
	}
	return w
}

func ordering(o domain.Ordering) ([]Order, error) {
	if o.Field == "" {
		o = domain.NewestFirst
	}
	switch o.Field {
	case domain.SortCreatedAt, domain.SortEmail:
	default:
		return nil, domain.ErrInvalidInput
	}
	// id keeps pages stable when the sort key ties
	return []Order{{Column: string(o.Field), Desc: o.Desc}, {Column: "id", Desc: o.Desc}}, nil
}

func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isDupKey(err):
		return domain.ErrConflict
	case errors.Is(err, domain.ErrNotFound):
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}
