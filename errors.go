package adminkit

import "errors"

var (
	// ErrNotStarted is returned by operations that need Start to have run.
	ErrNotStarted = errors.New("client not started")
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("client already started")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMalformedLogin is returned when a login response carries no token or user.
	ErrMalformedLogin = errors.New("malformed login response")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStorageRequired is returned by Build without a storage backend.
	ErrStorageRequired = errors.New("storage backend required")
	// ErrBuilderUsed is returned by a second Build call.
	ErrBuilderUsed = errors.New("builder already used")
)
