package domain

import "time"

// User is owned by the account subsystem; this core only reads it when
// building token claims. SecurityStamp changes whenever the user's
// credentials change, which invalidates every token minted before the
// change.
type User struct {
	ID            string    `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	Name          string    `gorm:"type:text;not null" db:"name" json:"name"`
	Email         string    `gorm:"type:citext;uniqueIndex:ux_users_email" db:"email" json:"email"`
	SecurityStamp string    `gorm:"type:uuid;not null" db:"security_stamp" json:"-"`
	CreatedAt     time.Time `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"not null" db:"updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }
