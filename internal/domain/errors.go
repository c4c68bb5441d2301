package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrEmptyQuery          = NewDomainError(ErrCodeValidation, "message cannot be empty")
	ErrInvalidFilename     = NewDomainError(ErrCodeValidation, "invalid filename")
	ErrUnsupportedFileType = NewDomainError(ErrCodeValidation, "only PDF files are allowed")
	ErrNoFilesUploaded     = NewDomainError(ErrCodeValidation, "no files uploaded")
)

// Not found errors
var (
	ErrNoDocuments  = NewDomainError(ErrCodeNotFound, "no documents found")
	ErrIndexMissing = NewDomainError(ErrCodeNotFound, "index artifact does not exist")
	ErrIndexEmpty   = NewDomainError(ErrCodeNotFound, "index artifact is empty")
	ErrFileNotFound = NewDomainError(ErrCodeNotFound, "file not found")
)

// Availability errors
var (
	ErrModelUnavailable    = NewDomainError(ErrCodeUnavailable, "no embedding model could be loaded")
	ErrNoReadableDocuments = NewDomainError(ErrCodeUnavailable, "documents found but none could be read")
	ErrProviderUnavailable = NewDomainError(ErrCodeUnavailable, "answer provider unavailable")
)

// Storage errors
var (
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
