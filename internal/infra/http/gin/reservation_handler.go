package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"carrental/internal/app/commands"
	"carrental/internal/app/dto"
	quotesapp "carrental/internal/app/handlers/quotes"
	reservationsapp "carrental/internal/app/handlers/reservations"
	"carrental/internal/app/queries"
)

type QuoteHandler struct {
	Commands commands.Bus
}

type createQuoteRequest struct {
	Renter  string    `json:"renter"`
	Company string    `json:"company"`
	CarType string    `json:"car_type"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func (h QuoteHandler) Create(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := quotesapp.CreateQuoteCommand{
		Renter:  req.Renter,
		Company: req.Company,
		CarType: req.CarType,
		Start:   req.Start,
		End:     req.End,
	}
	quote, err := commands.Dispatch[quotesapp.CreateQuoteCommand, dto.Quote](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type confirmQuotesRequest struct {
	Renter string      `json:"renter"`
	Quotes []dto.Quote `json:"quotes"`
}

// Confirm runs the batch synchronously and answers with the reservations.
func (h ReservationHandler) Confirm(c *gin.Context) {
	var req confirmQuotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	quotes, err := dto.QuotesToDomain(req.Quotes)
	if err != nil {
		writeError(c, err)
		return
	}
	cmd := reservationsapp.ConfirmQuotesCommand{
		TaskID: c.GetHeader("Idempotency-Key"),
		Renter: req.Renter,
		Quotes: quotes,
	}
	result, err := commands.Dispatch[reservationsapp.ConfirmQuotesCommand, *reservationsapp.ConfirmQuotesResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Submit queues the batch and answers before it is confirmed.
func (h ReservationHandler) Submit(c *gin.Context) {
	var req confirmQuotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := reservationsapp.SubmitQuotesCommand{
		Renter:          req.Renter,
		Quotes:          req.Quotes,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[reservationsapp.SubmitQuotesCommand, *reservationsapp.SubmitQuotesResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	cmd := reservationsapp.CancelReservationCommand{
		Company:       c.Param("company"),
		ReservationID: c.Param("id"),
	}
	result, err := commands.Dispatch[reservationsapp.CancelReservationCommand, *reservationsapp.CancelReservationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) ByRenter(c *gin.Context) {
	q := reservationsapp.RenterReservationsQuery{Renter: c.Param("renter")}
	result, err := queries.Ask[reservationsapp.RenterReservationsQuery, dto.RenterReservations](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var (
	_ QuoteHTTP       = QuoteHandler{}
	_ ReservationHTTP = ReservationHandler{}
)
