package account

import (
	"time"

	"go-gin-gorm-accounts/internal/domain"
)

// AccountModel is the physical row. DeletedAt is a plain nullable column, not
// gorm.DeletedAt: tombstoning is owned by repo.TombstoneStore, not gorm.
type AccountModel struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)"`
	Email        string      `gorm:"size:191;not null"`
	PasswordHash string      `gorm:"size:100;not null"`
	DisplayName  *string     `gorm:"size:64"`
	Role         domain.Role `gorm:"size:16;not null;default:USER"`

	CreatedAt time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false"`
	DeletedAt *time.Time `gorm:"index"`
}

func (AccountModel) TableName() string { return "users" }

// Columns lists every column the store accepts in predicates, data maps and
// orderings.
var Columns = map[string]struct{}{
	"id": {}, "email": {}, "password_hash": {}, "display_name": {}, "role": {},
	"created_at": {}, "updated_at": {}, "deleted_at": {},
}

const ColumnDeletedAt = "deleted_at"

func (m *AccountModel) Public() domain.Account {
	return domain.Account{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Role:        m.Role,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		DeletedAt:   m.DeletedAt,
	}
}
