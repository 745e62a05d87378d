// Package models defines server-side rows and the hand-written boundary
// projections built from them.
package models

import (
	"time"

	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
)

// User is a row of the users table.
type User struct {
	ID           int64
	Username     string
	Email        *string
	Name         string
	PasswordHash string
	CompanyID    int64
	CreatedAt    time.Time
}

// CreateUserInput is the sign-up request. Password is the raw password; it is
// hashed before the transaction opens and never stored.
type CreateUserInput struct {
	Username  string           `json:"username" validate:"required,max=50,username"`
	Email     *string          `json:"email,omitempty" validate:"omitempty,email"`
	Name      string           `json:"name" validate:"required,max=50"`
	Password  string           `json:"password" validate:"required,min=8"`
	CompanyID int64            `json:"company_id" validate:"gt=0"`
	Role      permissions.Role `json:"role" validate:"required,role"`
}

// SignInInput carries credentials for the sign-in endpoint.
type SignInInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserView is what clients see of a user.
type UserView struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	Name      string  `json:"name"`
	CompanyID int64   `json:"company_id"`
}

func (u *User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		CompanyID: u.CompanyID,
	}
}

// NewUser builds the row to insert from a validated input and a password hash.
func NewUser(in CreateUserInput, passwordHash string) *User {
	return &User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: passwordHash,
		CompanyID:    in.CompanyID,
	}
}
