package adapter

import (
	"errors"
	"fmt"

	"github.com/yourorg/transbank-api/internal/transaction"
)

var (
	// ErrServiceUnavailable is matched by every ServiceUnavailableError.
	ErrServiceUnavailable = errors.New("transbank service unavailable")
	// ErrInvalidTransaction is matched by every InvalidTransactionError.
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// ServiceUnavailableError reports a type token that no processor handles, or
// that its processor cannot perform.
type ServiceUnavailableError struct {
	Type string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s: no client handles transaction type %q", ErrServiceUnavailable, e.Type)
}

func (e *ServiceUnavailableError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

// InvalidTransactionError wraps an error raised by an upstream client while
// performing an operation for Transaction.
type InvalidTransactionError struct {
	Transaction *transaction.Transaction
	Cause       error
}

func (e *InvalidTransactionError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrInvalidTransaction, e.Transaction, e.Cause)
}

func (e *InvalidTransactionError) Unwrap() error {
	return e.Cause
}

func (e *InvalidTransactionError) Is(target error) bool {
	return target == ErrInvalidTransaction
}
