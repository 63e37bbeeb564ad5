package domain

import "errors"

var (
	// ErrNotFound is returned when a stored entity does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an insert collides with an existing unique key
	ErrConflict = errors.New("unique key conflict")

	// ErrParse is returned when a raw listing field cannot be converted
	ErrParse = errors.New("listing parse failed")

	// ErrNoSelector is returned when a retailer has no selector configured for a category
	ErrNoSelector = errors.New("no selector configured for category")

	// ErrStorageUnavailable is returned when the storage backend fails; it aborts a run
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrReviewAborted is returned by a Reviewer that can no longer answer prompts
	ErrReviewAborted = errors.New("review aborted")
)
