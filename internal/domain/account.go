package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleUser      Role = "USER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// ParseRole accepts any letter case ("admin", "Admin", "ADMIN").
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Account is the public projection. It has no credential field, so nothing
// serialized from it can carry a hash.
type Account struct {
	ID          string     `gorm:"column:id" json:"id"`
	Email       string     `gorm:"column:email" json:"email"`
	DisplayName *string    `gorm:"column:display_name" json:"displayName"`
	Role        Role       `gorm:"column:role" json:"role"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updatedAt"`
	DeletedAt   *time.Time `gorm:"column:deleted_at" json:"deletedAt,omitempty"`
}

func (a *Account) IsTombstoned() bool { return a.DeletedAt != nil }

// PrivilegedAccount carries the credential hash. Only the authentication and
// credential-update paths ever load it.
type PrivilegedAccount struct {
	Account
	CredentialHash string `gorm:"column:password_hash" json:"-"`
}

// Criteria selects one account by a unique key. Exactly one field is set.
type Criteria struct {
	ID    string
	Email string
}

func ByID(id string) Criteria       { return Criteria{ID: id} }
func ByEmail(email string) Criteria { return Criteria{Email: email} }

// Changes is the whitelist of columns a repository update may touch.
// Role and the tombstone column are not representable here.
type Changes struct {
	Email          *string
	DisplayName    *string
	CredentialHash *string
}

func (c Changes) Empty() bool {
	return c.Email == nil && c.DisplayName == nil && c.CredentialHash == nil
}

// NewAccountRecord is what the service hands to the repository on create.
type NewAccountRecord struct {
	Email          string
	CredentialHash string
	DisplayName    *string
	Role           Role
}

// Filter narrows list and count queries.
type Filter struct {
	Role          *Role
	EmailContains string
	// Tombstoned constrains the tombstone column explicitly. nil leaves the
	// store default (live rows only) in place.
	Tombstoned *bool
}

type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortEmail     SortField = "email"
)

type Ordering struct {
	Field SortField
	Desc  bool
}

// NewestFirst is the default ordering of every listing.
var NewestFirst = Ordering{Field: SortCreatedAt, Desc: true}

type ListQuery struct {
	Skip   int
	Take   int
	Filter Filter
	Order  Ordering
}

type Page struct {
	Accounts   []Account `json:"accounts"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

type AuthResult struct {
	Account Account `json:"account"`
	Token   string  `json:"token"`
}

// Caller is the authenticated principal derived from a verified token.
type Caller struct {
	ID    string
	Email string
	Role  Role
}

func (c Caller) Authenticated() bool { return c.ID != "" }
