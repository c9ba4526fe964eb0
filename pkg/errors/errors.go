package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeNavigationTimeout represents a navigation or wait that hit its deadline
	ErrorTypeNavigationTimeout ErrorType = "navigation_timeout"
	// ErrorTypeSelectorNotFound represents a selector that matched zero elements
	ErrorTypeSelectorNotFound ErrorType = "selector_not_found"
	// ErrorTypeExtractionEmpty represents a full extraction pass that produced no units
	ErrorTypeExtractionEmpty ErrorType = "extraction_empty"
	// ErrorTypeStoreCorruption represents an unreadable template store document
	ErrorTypeStoreCorruption ErrorType = "store_corruption"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents an engine-specific error carrying the domain it
// occurred against. A resolution miss is not an error and has no type here;
// it is a first-class "unknown" outcome.
type ScrapeError struct {
	Type    ErrorType
	Domain  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Domain, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Domain, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is worth retrying on a later run
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeNavigationTimeout:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, domain, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Domain:  domain,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(domain, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, domain, message, err)
}

// NewNavigationTimeout creates a new navigation timeout error
func NewNavigationTimeout(domain, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigationTimeout, domain, message, err)
}

// NewSelectorNotFound creates a new selector-not-found error
func NewSelectorNotFound(domain, selector string) *ScrapeError {
	return New(ErrorTypeSelectorNotFound, domain, fmt.Sprintf("selector %q matched nothing", selector), nil)
}

// NewExtractionEmpty creates a new empty-extraction error
func NewExtractionEmpty(domain string) *ScrapeError {
	return New(ErrorTypeExtractionEmpty, domain, "extraction produced no units", nil)
}

// NewStoreCorruption creates a new store corruption error
func NewStoreCorruption(path, message string, err error) *ScrapeError {
	return New(ErrorTypeStoreCorruption, path, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(domain, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, domain, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, nil)
}

// TypeOf returns the ErrorType of err when it is a ScrapeError, else "".
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type
	}
	return ""
}
