package distribution

// Error codes. Every failure leaving the service carries one of these.
const (
	CodeMissingInput       = "MISSING_INPUT"
	CodeStoreNotFound      = "STORE_NOT_FOUND"
	CodeStoreUnreadable    = "STORE_UNREADABLE"
	CodeStoreCorrupt       = "STORE_CORRUPT"
	CodeStoreUnwritable    = "STORE_UNWRITABLE"
	CodeTicketNotFound     = "TICKET_NOT_FOUND"
	CodeAlreadyFullyServed = "ALREADY_FULLY_SERVED"
	CodeInternal           = "INTERNAL"
)

// Error is an application-layer error whose Message is suitable for direct display.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Internal wraps an uncategorized failure.
func Internal(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: "Une erreur inattendue s'est produite: " + err.Error(),
		Err:     err,
	}
}
