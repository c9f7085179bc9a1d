//go:generate go run ../cmd/orm-gen -model . -output ./generated -module github.com/arllen133/usersvc -package models

package models

import (
	"context"
	"time"
)

// User is a registered account.
type User struct {
	ID        int64      `db:"id,primaryKey,autoIncrement,index" json:"id"`
	Name      string     `db:"name,size:50,notNull,index" json:"name"`
	Email     string     `db:"email,size:100,notNull,unique,index" json:"email"`
	Age       *int       `db:"age" json:"age"`
	CreatedAt time.Time  `db:"created_at,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at"`
}

// BeforeCreate stamps CreatedAt.
func (u *User) BeforeCreate(context.Context) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	return nil
}

// BeforeUpdate stamps UpdatedAt.
func (u *User) BeforeUpdate(context.Context) error {
	t := now()
	u.UpdatedAt = &t
	return nil
}

// now is truncated to seconds so the value survives DATETIME columns unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
