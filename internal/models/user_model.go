package models

import "time"

type User struct {
	ID        int64     `db:"id" json:"id"`
	UID       string    `db:"uid" json:"uid"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Image     string    `db:"image" json:"image"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
