package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/icco/minesduel"
)

// User is a registered account. Handle doubles as the player name in every
// match the user creates or joins.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Handle       string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"handle"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateUser registers handle. A taken handle is a conflict.
func (s *Store) CreateUser(ctx context.Context, handle, passwordHash string) (*User, error) {
	u := &User{Handle: handle, PasswordHash: passwordHash}
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, minesduel.Conflictf("handle %q is already taken", handle)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UserByHandle looks up an account by handle.
func (s *Store) UserByHandle(ctx context.Context, handle string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("handle = ?", handle).First(&u).Error; err != nil {
		return nil, notFound(err, "user %q not found", handle)
	}
	return &u, nil
}

// UserByID looks up an account by id.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "user %d not found", id)
	}
	return &u, nil
}
