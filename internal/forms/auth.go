package forms

import (
	"net/url"

	"github.com/go-playground/validator/v10"
)

const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgPasswordTooShort = "Password must be at least 8 characters long"
	MsgPasswordMismatch = "Passwords do not match"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgEnterCode        = "Please enter the verification code"
	MsgEmailNotFound    = "Email not found"
)

// passwordMessage covers the rules shared by every password form.
func passwordMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return MsgPasswordTooShort
	case "eqfield":
		return MsgPasswordMismatch
	case "email":
		return MsgInvalidEmail
	default:
		return MsgFillAllFields
	}
}

type Login struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password,raw" validate:"required"`
}

func (Login) message(fe validator.FieldError) string {
	if fe.Tag() == "email" {
		return MsgInvalidEmail
	}
	return "Please enter your email and password"
}

func ParseLogin(values url.Values) (*Login, error) { return parse[Login](values) }

type Signup struct {
	Username        string `form:"username" validate:"required"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password,raw" validate:"required,min=8"`
	ConfirmPassword string `form:"confirmPassword,raw" validate:"required,eqfield=Password"`
}

func (Signup) message(fe validator.FieldError) string { return passwordMessage(fe) }

func ParseSignup(values url.Values) (*Signup, error) { return parse[Signup](values) }

// ChangePassword is the settings form. The current password is required by
// the form but the backend only receives the new one.
type ChangePassword struct {
	CurrentPassword string `form:"currentPassword,raw" validate:"required"`
	NewPassword     string `form:"newPassword,raw" validate:"required,min=8"`
	ConfirmPassword string `form:"confirmPassword,raw" validate:"required,eqfield=NewPassword"`
}

func (ChangePassword) message(fe validator.FieldError) string { return passwordMessage(fe) }

func ParseChangePassword(values url.Values) (*ChangePassword, error) {
	return parse[ChangePassword](values)
}

// ResetPassword is step two of the forgot password flow. The email comes
// from the page URL; a missing email is reported after the password rules.
type ResetPassword struct {
	NewPassword     string `form:"newPassword,raw" validate:"required,min=8"`
	ConfirmPassword string `form:"confirmPassword,raw" validate:"required,eqfield=NewPassword"`
	Email           string `form:"email" validate:"required"`
}

func (ResetPassword) message(fe validator.FieldError) string {
	if fe.StructField() == "Email" {
		return MsgEmailNotFound
	}
	return passwordMessage(fe)
}

func ParseResetPassword(values url.Values) (*ResetPassword, error) {
	return parse[ResetPassword](values)
}

// Code is a one-time verification code submission.
type Code struct {
	Code  string `form:"code" validate:"required"`
	Email string `form:"email"`
}

func (Code) message(validator.FieldError) string { return MsgEnterCode }

func ParseCode(values url.Values) (*Code, error) { return parse[Code](values) }

// Email is a bare email submission, as on the forgot password page.
type Email struct {
	Email string `form:"email" validate:"required,email"`
}

func (Email) message(fe validator.FieldError) string {
	if fe.Tag() == "email" {
		return MsgInvalidEmail
	}
	return "Please enter your email"
}

func ParseEmail(values url.Values) (*Email, error) { return parse[Email](values) }
