package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("resource already exists")
	ErrInternal           = errors.New("internal server error")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDatabaseConnection = errors.New("database connection error")

	ErrDuplicateMail      = errors.New("mail already registered")
	ErrDuplicateNickname  = errors.New("nickname already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid mail or password")
	ErrUnknownRecipient   = errors.New("unknown recipient")
	ErrNotMember          = errors.New("not a member of this chat")
)
