package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"carrental/internal/app/middleware"
	"carrental/internal/app/policies"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{rental.ErrInvalidInterval, http.StatusBadRequest},
	{rental.ErrInvalidQuote, http.StatusBadRequest},
	{rental.ErrInvalidCompany, http.StatusBadRequest},
	{rental.ErrInvalidCarType, http.StatusBadRequest},
	{uow.ErrCompanyRequired, http.StatusBadRequest},
	{rental.ErrBatchConfirmationFailed, http.StatusConflict},
	{middleware.ErrReplayedFailure, http.StatusConflict},
	{rental.ErrCompanyNotFound, http.StatusNotFound},
	{rental.ErrCarTypeNotFound, http.StatusNotFound},
	{rental.ErrReservationNotFound, http.StatusNotFound},
	{rental.ErrNoAvailability, http.StatusConflict},
	{rental.ErrTransactionConflict, http.StatusConflict},
	{policies.ErrQueueFull, http.StatusServiceUnavailable},
}

// statusFor maps application errors to HTTP status codes. A failed batch is
// reported as a conflict even when its cause is a missing company.
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if be, ok := rental.AsBatchError(err); ok {
		body["company"] = be.Company
		body["detail"] = be.Detail()
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
