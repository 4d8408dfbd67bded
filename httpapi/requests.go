package httpapi

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	identity "github.com/goliatone/go-identity"
)

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest payload
type RegisterRequest struct {
	Username    string `form:"username" json:"username"`
	DisplayName string `form:"display_name" json:"display_name"`
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(identity.PasswordMinLen, identity.PasswordMaxLen),
		),
		validation.Field(&r.Username,
			validation.Length(identity.UsernameMinLen, identity.UsernameMaxLen),
			validation.Match(identity.UsernameRegex),
		),
		validation.Field(&r.DisplayName,
			validation.Length(identity.DisplayNameMinLen, identity.DisplayNameMaxLen),
		),
	)
}

// VerifyEmailRequest payload
type VerifyEmailRequest struct {
	Token string `form:"token" json:"token" query:"token"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Token    string `form:"token" json:"token" query:"token"`
	Password string `form:"password" json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(identity.PasswordMinLen, identity.PasswordMaxLen),
		),
	)
}

// UpdateUserRequest is a partial profile update payload.
type UpdateUserRequest struct {
	Username    *string `form:"username" json:"username"`
	DisplayName *string `form:"display_name" json:"display_name"`
	Phone       *string `form:"phone" json:"phone"`
}
