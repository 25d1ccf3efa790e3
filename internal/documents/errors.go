package documents

import (
	"errors"
	"fmt"
)

var (
	ErrSiteNotFound         = errors.New("documents: site not found")
	ErrTypeNotFound         = errors.New("documents: document type not found")
	ErrNodeNotFound         = errors.New("documents: node not found")
	ErrCultureNotFound      = errors.New("documents: culture version not found")
	ErrFieldsNotFound       = errors.New("documents: coupled data not found")
	ErrDraftNotFound        = errors.New("documents: draft not found")
	ErrACLNotFound          = errors.New("documents: acl not found")
	ErrCultureNotEnabled    = errors.New("documents: culture is not enabled on the site")
	ErrCultureExists        = errors.New("documents: culture version already exists")
	ErrTypeExists           = errors.New("documents: document type already exists")
	ErrSiteExists           = errors.New("documents: site already exists")
	ErrParentRequired       = errors.New("documents: parent node is required")
	ErrCrossSiteMove        = errors.New("documents: parent belongs to another site")
	ErrMoveUnderDescendant  = errors.New("documents: node cannot be moved under itself")
	ErrNodeHasChildren      = errors.New("documents: node has children, delete recursively")
	ErrRootImmutable        = errors.New("documents: the root node cannot be moved, renamed or deleted")
	ErrInvalidOperation     = errors.New("documents: invalid operation")
	ErrServiceUnavailable   = errors.New("documents: service not configured")
	ErrStoreUnavailable     = errors.New("documents: database not configured")
	ErrInvalidAlias         = errors.New("documents: alias cannot be empty")
	ErrLinkTargetIsLink     = errors.New("documents: a link cannot point to another link")
	ErrNotALink             = errors.New("documents: node is not a link")
	ErrAlreadyALink         = errors.New("documents: node is already a link")
	ErrLinkTargetIsSameNode = errors.New("documents: a node cannot link to itself")
)

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string
	Key      string
	sentinel error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("documents: %s %q not found", e.Resource, e.Key)
}

// Unwrap exposes the resource sentinel so errors.Is works with
// ErrNodeNotFound and friends.
func (e *NotFoundError) Unwrap() error { return e.sentinel }

func notFound(sentinel error, resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key, sentinel: sentinel}
}

// InvalidOperationError reports data that breaks an invariant the
// operation relies on, such as a link whose original has no culture data.
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return "documents: invalid operation: " + e.Reason
}

func (e *InvalidOperationError) Unwrap() error { return ErrInvalidOperation }

// InvalidOperation builds an InvalidOperationError.
func InvalidOperation(format string, args ...any) error {
	return &InvalidOperationError{Reason: fmt.Sprintf(format, args...)}
}
