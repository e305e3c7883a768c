package entity

import "time"

// User is a row of the users table. The id is the identity provider's subject.
type User struct {
	ID              string    `db:"id" json:"id"`
	Email           *string   `db:"email" json:"email"`
	FirstName       *string   `db:"first_name" json:"firstName"`
	LastName        *string   `db:"last_name" json:"lastName"`
	ProfileImageURL *string   `db:"profile_image_url" json:"profileImageUrl"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Upsert is the identity-provider projection written on every login.
type Upsert struct {
	ID              string  `db:"id" validate:"required"`
	Email           *string `db:"email" validate:"omitempty,email"`
	FirstName       *string `db:"first_name"`
	LastName        *string `db:"last_name"`
	ProfileImageURL *string `db:"profile_image_url"`
}
