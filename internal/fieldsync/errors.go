package fieldsync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSelection means no records are in scope; the run aborts before
	// any writes.
	ErrNoSelection = errors.New("no records selected")

	// ErrRunInProgress means another run holds the single-flight slot.
	ErrRunInProgress = errors.New("a sync run is already in progress")

	// ErrNoFieldsSelected means the request carried no checked, enabled
	// fields, so there is nothing to synchronize.
	ErrNoFieldsSelected = errors.New("no fields selected")

	// ErrLookupFailed wraps a failed external lookup; fatal to the run.
	ErrLookupFailed = errors.New("external lookup failed")
)

// LookupError carries the user-visible message for a failed lookup.
type LookupError struct {
	Message string
}

func (e *LookupError) Error() string {
	if e.Message == "" {
		return "external lookup failed"
	}
	return fmt.Sprintf("external lookup failed: %s", e.Message)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrLookupFailed
}

// TooManySelectedWarning is non-fatal: the selection exceeded the cap and
// was truncated.
type TooManySelectedWarning struct {
	Supplied int
	Cap      int
}

func (w *TooManySelectedWarning) String() string {
	return fmt.Sprintf("selection truncated: %d records supplied, cap is %d", w.Supplied, w.Cap)
}
