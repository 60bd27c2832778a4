package internal

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeInternal is returned when an operation has been aborted by an unexpected failure, like a panic inside
	// one of the collaborators
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeIllegalPath is the error that is returned when the client did not send a valid path parameter
	ErrCodeIllegalPath = "ILLEGAL_PATH"
	// ErrCodeRepoError is returned when the request to a repo fails with an error
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeRequiredFieldMissing is returned when at least one required field has not been populated on an incoming
	// request
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeIllegalValue is returned when any field in the transferred data does not validate for some reason
	ErrCodeIllegalValue = "ILLEGAL_VALUE"
	// ErrCodePerformanceNotFound is returned when an operation works on a performance that does not exist
	ErrCodePerformanceNotFound = "PERFORMANCE_NOT_FOUND"
	// ErrCodeLoginFailed is returned when the user fails to login for some reason
	ErrCodeLoginFailed = "LOGIN_FAILED"
	// ErrCodeNotLoggedIn is returned when the user tried to access an API that needs a logged-in user, but the user
	// has no authenticated session
	ErrCodeNotLoggedIn = "NOT_LOGGED_IN"
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message, code, status, data}
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}

// Unwrap returns the error that caused this one, if it has been stored as data
func (e *HTTPError) Unwrap() error {
	if err, ok := e.data.(error); ok {
		return err
	}
	return nil
}

// ErrorKind returns the machine-readable error code of any error. Errors not created by this package are unknown.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*HTTPError); ok {
		return e.code
	}
	return ErrCodeUnknown
}
