package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrFolderNotFound signals a missing folder.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrItemNotFound signals a missing item.
	ErrItemNotFound = errors.New("item not found")
	// ErrCriteriaParse signals malformed or empty search criteria.
	ErrCriteriaParse = errors.New("invalid search criteria")
	// ErrIndexUnavailable signals that the backing store cannot host an
	// asynchronous search index. Recoverable: callers fall back to a
	// synchronous filtered listing.
	ErrIndexUnavailable = errors.New("search index unavailable")
	// ErrCriteriaApply signals that setting criteria on an existing index failed.
	ErrCriteriaApply = errors.New("apply search criteria failed")
	// ErrUnknownSchema signals a request for an unregistered view schema.
	ErrUnknownSchema = errors.New("unknown schema")
)

// CriteriaApplyError wraps ErrCriteriaApply with the backend's native error
// code for diagnostics.
type CriteriaApplyError struct {
	BackendCode string
	Err         error
}

func (e *CriteriaApplyError) Error() string {
	return fmt.Sprintf("%s (backend %s): %v", ErrCriteriaApply.Error(), e.BackendCode, e.Err)
}

func (e *CriteriaApplyError) Unwrap() error { return ErrCriteriaApply }

// NewCriteriaApply creates a criteria apply failure carrying the backend code.
func NewCriteriaApply(backendCode string, err error) error {
	return &CriteriaApplyError{BackendCode: backendCode, Err: err}
}
