package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound     = "USER_NOT_FOUND"
	TextCodeTokenNotFound    = "TOKEN_NOT_FOUND"
	TextCodeEmailInUse       = "EMAIL_IN_USE"
	TextCodeUsernameInUse    = "USERNAME_IN_USE"
	TextCodeExternalAccount  = "EXTERNAL_ACCOUNT"
	TextCodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	TextCodeInvalidPassword  = "INVALID_PASSWORD"
	TextCodeResetPending     = "RESET_ALREADY_REQUESTED"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeTokenRevoked     = "TOKEN_REVOKED"
	TextCodeTokenInvalid     = "TOKEN_INVALID"
	TextCodeTokenMismatch    = "TOKEN_SUBJECT_MISMATCH"
	TextCodeMissingRole      = "MISSING_REQUIRED_ROLE"
	TextCodeEmptyUpdate      = "EMPTY_UPDATE"
	TextCodeNoChanges        = "NO_CHANGES"
	TextCodePictureNotFound  = "PICTURE_NOT_FOUND"
)

// ErrUserNotFound is returned when no account matches the given identifier.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenNotFound is returned when an ephemeral token is absent from the store.
var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrEmailInUse is returned when registering with an email that already exists.
var ErrEmailInUse = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

// ErrUsernameInUse is returned when the chosen username already exists.
var ErrUsernameInUse = goerrors.New("username already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameInUse).
	WithCode(goerrors.CodeConflict)

// ErrExternalAccount is returned when a password operation targets an account
// that authenticates through an OAuth provider.
var ErrExternalAccount = goerrors.New("account uses external authentication", goerrors.CategoryAuth).
	WithTextCode(TextCodeExternalAccount).
	WithCode(goerrors.CodeForbidden)

// ErrEmailNotVerified is returned when an unverified account attempts a flow
// that requires a verified email.
var ErrEmailNotVerified = goerrors.New("email not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidPassword is returned on a password mismatch during login.
var ErrInvalidPassword = goerrors.New("invalid password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(goerrors.CodeForbidden)

// ErrResetAlreadyRequested is returned when a reset request is still
// outstanding; at most one live reset request per account.
var ErrResetAlreadyRequested = goerrors.New("password reset already requested", goerrors.CategoryAuth).
	WithTextCode(TextCodeResetPending).
	WithCode(goerrors.CodeForbidden)

// ErrTokenExpired is returned for signed or ephemeral tokens past expiry.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked is returned when a signed token's jti is blacklisted.
var ErrTokenRevoked = goerrors.New("token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is returned when a signed token fails signature or shape checks.
var ErrTokenInvalid = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSubjectMismatch is returned on logout when the access and refresh
// tokens belong to different subjects.
var ErrTokenSubjectMismatch = goerrors.New("tokens belong to different subjects", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmptyUpdate is returned when a profile update carries no fields.
var ErrEmptyUpdate = goerrors.New("update payload is empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyUpdate).
	WithCode(goerrors.CodeBadRequest)

// ErrNoChanges is returned when a profile update matches the stored record.
var ErrNoChanges = goerrors.New("update contains no changes", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNoChanges).
	WithCode(goerrors.CodeBadRequest)

// ErrPictureNotFound is returned when deleting a picture that does not exist.
var ErrPictureNotFound = goerrors.New("profile picture not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePictureNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the low-level bcrypt mismatch error; login
// maps it onto ErrInvalidPassword.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// asRichError returns err unchanged when it already carries category metadata,
// otherwise wraps it as an internal failure.
func asRichError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
