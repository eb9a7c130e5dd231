package protocol

// Error codes returned by the command router.
const (
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrUnavailable        = "UNAVAILABLE"
	ErrResourceExhausted  = "RESOURCE_EXHAUSTED"
	ErrFailedPrecondition = "FAILED_PRECONDITION"
	ErrStorage            = "STORAGE"
	ErrInternal           = "INTERNAL"
)

// ErrorShape describes a command error.
type ErrorShape struct {
	Code         string      `json:"code"`
	Message      string      `json:"message"`
	Details      interface{} `json:"details,omitempty"`
	Retryable    bool        `json:"retryable,omitempty"`
	RetryAfterMs int         `json:"retryAfterMs,omitempty"`
}

func (e *ErrorShape) Error() string {
	return e.Code + ": " + e.Message
}
