//nolint:all
package errorx

import "fmt"

// ConfigErrorCode - configuration error code enum.
type ConfigErrorCode int

const (
	ErrorNoConnectionProvider ConfigErrorCode = iota
	ErrorLedgerNotAttached
	ErrorPoolNotConfigured
	ErrorInvalidPoolConfig
	ErrorInvalidCall
	ErrorTransactionNotBegun
)

var configErrorMessages = map[ConfigErrorCode]string{
	ErrorNoConnectionProvider: "error no connection provider configured",
	ErrorLedgerNotAttached:    "error transaction ledger not attached",
	ErrorPoolNotConfigured:    "error connection pool never initialized and no DSN configured",
	ErrorInvalidPoolConfig:    "error invalid connection pool configuration",
	ErrorInvalidCall:          "error invalid function call",
	ErrorTransactionNotBegun:  "error transaction not begun",
}

// ConfigurationError - programming/configuration misuse, raised at the point of misuse.
type ConfigurationError struct {
	Code    ConfigErrorCode
	message string
	err     error
}

// NewConfigurationErrorCode - ConfigurationError constructor given a predefined code.
func NewConfigurationErrorCode(code ConfigErrorCode, err error) *ConfigurationError {
	return &ConfigurationError{Code: code, message: configErrorMessages[code], err: err}
}

// NewConfigurationError - ConfigurationError constructor with a custom message.
func NewConfigurationError(code ConfigErrorCode, msg string, args ...any) *ConfigurationError {
	return &ConfigurationError{Code: code, message: fmt.Sprintf(msg, args...)}
}

func (ce *ConfigurationError) Error() string {
	if ce.err != nil {
		return fmt.Sprintf("%s: %v", ce.message, ce.err)
	}

	return ce.message
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.err
}
