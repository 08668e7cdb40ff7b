package incsearch

import "github.com/groupmesh/incsearch/internal/domain"

// Sentinel errors, re-exported for errors.Is checks.
var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = domain.ErrNotFound
	// ErrItemNotFound signals a missing item.
	ErrItemNotFound = domain.ErrItemNotFound
	// ErrFolderNotFound signals a missing folder.
	ErrFolderNotFound = domain.ErrFolderNotFound
	// ErrCriteriaParse signals malformed or empty search criteria.
	ErrCriteriaParse = domain.ErrCriteriaParse
	// ErrCriteriaApply signals the store rejected the restriction.
	ErrCriteriaApply = domain.ErrCriteriaApply
	// ErrIndexUnavailable signals the store cannot host async indexes.
	ErrIndexUnavailable = domain.ErrIndexUnavailable
	// ErrUnknownSchema signals a request for an unregistered view schema.
	ErrUnknownSchema = domain.ErrUnknownSchema
)
