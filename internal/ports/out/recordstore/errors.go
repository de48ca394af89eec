package recordstore

import "errors"

var (
	// ErrNotFound indicates the storage location does not exist.
	ErrNotFound = errors.New("record store not found")

	// ErrUnreadable indicates the storage exists but access was refused.
	ErrUnreadable = errors.New("record store unreadable")

	// ErrCorrupt indicates any other failure while reading or parsing the register.
	ErrCorrupt = errors.New("record store corrupt")

	// ErrUnwritable indicates the register could not be persisted.
	ErrUnwritable = errors.New("record store unwritable")
)

// Error describes a store failure. Kind is one of the sentinel errors above and is
// matched with errors.Is; Err is the underlying cause, if any.
type Error struct {
	Kind     error
	Location string
	// Permission is set when the cause was an access-control refusal.
	Permission bool
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Location != "" {
		msg += " (" + e.Location + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Cause returns the message of the underlying cause, falling back to the kind.
func (e *Error) Cause() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}
