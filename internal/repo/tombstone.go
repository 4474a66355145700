package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-gin-gorm-accounts/internal/feature/account"
)

// Op is the kind of operation issued against the account collection.
type Op int

const (
	OpCreate Op = iota
	OpFindUnique
	OpFindFirst
	OpFindMany
	OpCount
	OpUpdate
	OpUpdateMany
	OpDelete
	OpDeleteMany
)

var opNames = [...]string{"create", "findUnique", "findFirst", "findMany", "count", "update", "updateMany", "delete", "deleteMany"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Where is an AND of per-column predicates. A nil value matches NULL; see
// NotNull and Contains for the other forms.
type Where map[string]any

type notNull struct{}

// NotNull matches a non-NULL column.
var NotNull = notNull{}

// Contains matches a LIKE '%v%' substring.
type Contains string

func (w Where) has(col string) bool {
	_, ok := w[col]
	return ok
}

func (w Where) clone() Where {
	out := make(Where, len(w)+1)
	for k, v := range w {
		out[k] = v
	}
	return out
}

type Order struct {
	Column string
	Desc   bool
}

// Params is one operation before and after rewriting.
type Params struct {
	Op    Op
	Where Where
	Data  map[string]any
	Skip  int
	Take  int
	Order []Order
	// Unscoped is the maintenance path that sees tombstoned rows on find.
	Unscoped bool
}

var (
	ErrTombstoneColumn = errors.New("tombstone column is managed by the store")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrMissingWhere    = errors.New("update and delete require a predicate")
)

// Rewrite applies the tombstone policy to one operation:
//
//	delete/deleteMany       -> update/updateMany setting deleted_at, live rows only
//	findUnique/findFirst    -> findFirst with deleted_at IS NULL (unless Unscoped)
//	findMany/count          -> deleted_at IS NULL unless the caller constrained it
//
// Everything else is returned unchanged.
func Rewrite(p Params, now time.Time) Params {
	switch p.Op {
	case OpDelete, OpDeleteMany:
		out := p
		if p.Op == OpDelete {
			out.Op = OpUpdate
		} else {
			out.Op = OpUpdateMany
		}
		out.Where = p.Where.clone()
		// A row that is already a tombstone keeps its original timestamp.
		out.Where[account.ColumnDeletedAt] = nil
		out.Data = map[string]any{
			account.ColumnDeletedAt: now,
			"updated_at":            now,
		}
		return out
	case OpFindUnique, OpFindFirst:
		out := p
		out.Op = OpFindFirst
		if p.Unscoped {
			return out
		}
		out.Where = p.Where.clone()
		out.Where[account.ColumnDeletedAt] = nil
		return out
	case OpFindMany, OpCount:
		if p.Where.has(account.ColumnDeletedAt) {
			return p
		}
		out := p
		out.Where = p.Where.clone()
		out.Where[account.ColumnDeletedAt] = nil
		return out
	default:
		return p
	}
}

// TombstoneStore is the only handle on the account table that the rest of the
// code ever gets. Every operation goes through Rewrite before it reaches gorm.
type TombstoneStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTombstoneStore(db *gorm.DB, now func() time.Time) *TombstoneStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TombstoneStore{db: db, now: now}
}

func (s *TombstoneStore) Now() time.Time { return s.now() }

// Transaction runs fn against a store bound to a single transaction.
func (s *TombstoneStore) Transaction(ctx context.Context, fn func(tx *TombstoneStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TombstoneStore{db: tx, now: s.now})
	})
}

func (s *TombstoneStore) Create(ctx context.Context, row *account.AccountModel) error {
	if row.DeletedAt != nil {
		return ErrTombstoneColumn
	}
	_, err := s.do(ctx, Params{Op: OpCreate}, row)
	return err
}

// FindUnique loads one live row into dest. dest's struct type decides the
// projection (only its columns are selected).
func (s *TombstoneStore) FindUnique(ctx context.Context, where Where, dest any) (bool, error) {
	n, err := s.do(ctx, Params{Op: OpFindUnique, Where: where}, dest)
	return n > 0, err
}

func (s *TombstoneStore) FindFirst(ctx context.Context, where Where, dest any) (bool, error) {
	n, err := s.do(ctx, Params{Op: OpFindFirst, Where: where}, dest)
	return n > 0, err
}

// FindFirstIncludingTombstoned is for maintenance tooling only.
func (s *TombstoneStore) FindFirstIncludingTombstoned(ctx context.Context, where Where, dest any) (bool, error) {
	n, err := s.do(ctx, Params{Op: OpFindFirst, Where: where, Unscoped: true}, dest)
	return n > 0, err
}

type FindManyArgs struct {
	Where Where
	Skip  int
	Take  int
	Order []Order
}

func (s *TombstoneStore) FindMany(ctx context.Context, args FindManyArgs, dest any) error {
	_, err := s.do(ctx, Params{Op: OpFindMany, Where: args.Where, Skip: args.Skip, Take: args.Take, Order: args.Order}, dest)
	return err
}

func (s *TombstoneStore) Count(ctx context.Context, where Where) (int64, error) {
	var n int64
	_, err := s.do(ctx, Params{Op: OpCount, Where: where}, &n)
	return n, err
}

// Update changes the rows matched by where and reports how many matched.
// Callers cannot touch deleted_at through here.
func (s *TombstoneStore) Update(ctx context.Context, where Where, data map[string]any) (int64, error) {
	if _, ok := data[account.ColumnDeletedAt]; ok {
		return 0, ErrTombstoneColumn
	}
	return s.do(ctx, Params{Op: OpUpdate, Where: where, Data: data}, nil)
}

func (s *TombstoneStore) UpdateMany(ctx context.Context, where Where, data map[string]any) (int64, error) {
	if _, ok := data[account.ColumnDeletedAt]; ok {
		return 0, ErrTombstoneColumn
	}
	return s.do(ctx, Params{Op: OpUpdateMany, Where: where, Data: data}, nil)
}

// Delete tombstones the live rows matched by where.
func (s *TombstoneStore) Delete(ctx context.Context, where Where) (int64, error) {
	return s.do(ctx, Params{Op: OpDelete, Where: where}, nil)
}

func (s *TombstoneStore) DeleteMany(ctx context.Context, where Where) (int64, error) {
	return s.do(ctx, Params{Op: OpDeleteMany, Where: where}, nil)
}

func (s *TombstoneStore) do(ctx context.Context, p Params, dest any) (int64, error) {
	p = Rewrite(p, s.now())
	if err := checkColumns(p); err != nil {
		return 0, err
	}

	q := s.db.WithContext(ctx)
	switch p.Op {
	case OpCreate:
		res := q.Create(dest)
		return res.RowsAffected, res.Error

	case OpFindFirst:
		res := applyWhere(q.Model(&account.AccountModel{}), p.Where).Limit(1).Find(dest)
		return res.RowsAffected, res.Error

	case OpFindMany:
		q = applyWhere(q.Model(&account.AccountModel{}), p.Where)
		for _, o := range p.Order {
			q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
		}
		if p.Skip > 0 {
			q = q.Offset(p.Skip)
		}
		if p.Take > 0 {
			q = q.Limit(p.Take)
		}
		res := q.Find(dest)
		return res.RowsAffected, res.Error

	case OpCount:
		n, ok := dest.(*int64)
		if !ok {
			return 0, fmt.Errorf("count destination must be *int64, got %T", dest)
		}
		err := applyWhere(q.Model(&account.AccountModel{}), p.Where).Count(n).Error
		return *n, err

	case OpUpdate, OpUpdateMany:
		if len(p.Where) == 0 {
			return 0, ErrMissingWhere
		}
		res := applyWhere(q.Model(&account.AccountModel{}), p.Where).Updates(p.Data)
		return res.RowsAffected, res.Error
	}
	return 0, fmt.Errorf("unsupported operation %s", p.Op)
}

func checkColumns(p Params) error {
	for col := range p.Where {
		if _, ok := account.Columns[col]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
	}
	for col := range p.Data {
		if _, ok := account.Columns[col]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
	}
	for _, o := range p.Order {
		if _, ok := account.Columns[o.Column]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, o.Column)
		}
	}
	return nil
}

func applyWhere(q *gorm.DB, w Where) *gorm.DB {
	cols := make([]string, 0, len(w))
	for col := range w {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		c := clause.Column{Name: col}
		switch v := w[col].(type) {
		case nil:
			q = q.Where(clause.Eq{Column: c, Value: nil})
		case notNull:
			q = q.Where(clause.Neq{Column: c, Value: nil})
		case Contains:
			q = q.Where(clause.Expr{
				SQL:  "? LIKE ? ESCAPE '!'",
				Vars: []any{c, "%" + escapeLike(string(v)) + "%"},
			})
		default:
			q = q.Where(clause.Eq{Column: c, Value: v})
		}
	}
	return q
}

// '!' rather than backslash: sqlite has no default LIKE escape and mysql
// treats backslash inside literals specially.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }
