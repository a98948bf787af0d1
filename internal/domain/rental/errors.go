package rental

import (
	"errors"
	"fmt"

	"carrental/internal/domain/shared/daterange"
)

var (
	ErrInvalidInterval         = daterange.ErrInvalidRange
	ErrCompanyNotFound         = errors.New("rental: company not found")
	ErrCarTypeNotFound         = errors.New("rental: car type not found")
	ErrCarNotFound             = errors.New("rental: car not found")
	ErrReservationNotFound     = errors.New("rental: reservation not found")
	ErrNoAvailability          = errors.New("rental: no car available")
	ErrOverlappingReservation  = errors.New("rental: reservation overlaps an existing one")
	ErrTransactionConflict     = errors.New("rental: company was modified concurrently")
	ErrBatchConfirmationFailed = errors.New("rental: batch confirmation failed")
	ErrInvalidQuote            = errors.New("rental: invalid quote")
	ErrInvalidCarType          = errors.New("rental: invalid car type")
	ErrInvalidCompany          = errors.New("rental: invalid company")
)

// BatchError reports a failed confirmation batch. Err is the failure of the
// first company group that could not be confirmed.
type BatchError struct {
	Quotes               int
	Company              string
	Err                  error
	Compensated          int
	CompensationFailures []error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("rental: batch confirmation failed for company %q: %v", e.Company, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

func (e *BatchError) Is(target error) bool { return target == ErrBatchConfirmationFailed }

// Detail is the human readable cause used in renter notifications.
func (e *BatchError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsRetryable reports whether err is a conflict the caller should retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}
