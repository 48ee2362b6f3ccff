package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Document / path errors (-32010 to -32039) ----

var (
	ErrMalformedDocument = &EngineError{Code: -32010, Message: "document is not valid JSON"}
	ErrPathNotFound      = &EngineError{Code: -32011, Message: "document path not found"}
	ErrPathInvalid       = &EngineError{Code: -32012, Message: "document path is invalid"}
	ErrNotAnObject       = &EngineError{Code: -32013, Message: "document node is not an object"}
)

// ---- Content source errors (-32040 to -32069) ----

var (
	ErrSourceUnavailable = &EngineError{Code: -32040, Message: "content source unavailable"}
	ErrProviderUnknown   = &EngineError{Code: -32041, Message: "unknown content source provider"}
)

// ---- Workflow / retry errors (-32070 to -32099) ----

var (
	ErrInvalidTransition = &EngineError{Code: -32070, Message: "invalid section state transition"}
	ErrSectionExhausted  = &EngineError{Code: -32071, Message: "section exhausted its attempt budget"}
	ErrLayoutMismatch    = &EngineError{Code: -32072, Message: "input document does not match the section layout"}
)

// ---- Aggregation errors (-32100 to -32129) ----

var (
	ErrSectionIncomplete = &EngineError{Code: -32100, Message: "accepted section output is missing required keys"}
)

// ---- Store / Config / Input errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &EngineError{Code: -32130, Message: "failed to initialize journal store"}
	ErrStoreQuery      = &EngineError{Code: -32131, Message: "journal query failed"}
	ErrStoreWrite      = &EngineError{Code: -32132, Message: "journal write failed"}
	ErrRunNotFound     = &EngineError{Code: -32133, Message: "run not found"}
	ErrConfigInvalid   = &EngineError{Code: -32134, Message: "invalid configuration"}
	ErrInputInvalid    = &EngineError{Code: -32135, Message: "input document unreadable"}
	ErrScenarioInvalid = &EngineError{Code: -32136, Message: "scenario description missing or invalid"}
)

// ---- CLI / artifact errors (-32160 to -32189) ----

var (
	ErrArtifactWrite = &EngineError{Code: -32160, Message: "failed to write output artifact"}
)
