// Package user handles user registration and lookup. Passwords are hashed
// with bcrypt; the plaintext never leaves the registration path.
package user

import (
	"time"

	id "custodia/pkg/domain"
	str "custodia/pkg/string"
	"custodia/pkg/validation"
)

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID             id.UserID `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Department     string    `json:"department"`
	Jurisdiction   string    `json:"jurisdiction"`
	ClearanceLevel int       `json:"clearanceLevel"`
	PasswordHash   []byte    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RegisterRequest carries the fields for a new account.
type RegisterRequest struct {
	Email          string `validate:"required,email"`
	Name           string
	Password       string `validate:"required,min=8"`
	Role           string `validate:"required,notblank"`
	Department     string
	Jurisdiction   string `validate:"required,notblank"`
	ClearanceLevel int    `validate:"min=0,max=5"`
}

// Validate normalizes and enforces request invariants at the service boundary.
func (r *RegisterRequest) Validate() error {
	str.TrimStrings(&r.Email, &r.Name, &r.Role, &r.Department, &r.Jurisdiction)
	return validation.Validate(r)
}
