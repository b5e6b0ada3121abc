//nolint:all
package audit

import "fmt"

// ErrorCode - error code enum.
type ErrorCode int

const (
	ErrorPublisherClosed ErrorCode = iota
	ErrorInitializingPubsubClient
	ErrorSerializingEntry
	ErrorPublishingEntry
	ErrorClosingPubsubClient
)

var errorMessages = map[ErrorCode]string{
	ErrorPublisherClosed:          "error Audit Publisher is already closed",
	ErrorInitializingPubsubClient: "error initializing Broker Client",
	ErrorSerializingEntry:         "error serializing ledger entry",
	ErrorPublishingEntry:          "error publishing ledger entry",
	ErrorClosingPubsubClient:      "error closing pubsub client",
}

// Error - audit publishing error.
type Error struct {
	Code    ErrorCode
	message string
	err     error
}

// NewAuditErrorCode - Error constructor given a predefined Error Code.
func NewAuditErrorCode(code ErrorCode, err error) *Error {
	return &Error{Code: code, message: errorMessages[code], err: err}
}

// NewAuditError - Error constructor with a custom message.
func NewAuditError(code ErrorCode, err error, msg string, args ...any) *Error {
	return &Error{Code: code, message: fmt.Sprintf(msg, args...), err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Unwrap() error {
	return e.err
}
