package reservations

import (
	"context"

	"carrental/internal/app/dto"
	"carrental/internal/app/queries"
	"carrental/internal/domain/rental"
)

const renterReservationsKey = "reservations.by_renter"

type RenterReservationsQuery struct {
	Renter string
}

func (q RenterReservationsQuery) Key() string { return renterReservationsKey }

type RenterReservationsHandler struct {
	Catalog rental.Catalog
}

func (h *RenterReservationsHandler) Handle(ctx context.Context, q RenterReservationsQuery) (dto.RenterReservations, error) {
	rs, err := h.Catalog.ReservationsByRenter(ctx, q.Renter)
	if err != nil {
		return dto.RenterReservations{}, err
	}
	return dto.RenterReservations{
		Renter:          q.Renter,
		Count:           len(rs),
		HasReservations: len(rs) > 0,
		Reservations:    dto.ReservationsFromDomain(rs),
	}, nil
}

var _ queries.Handler[RenterReservationsQuery, dto.RenterReservations] = (*RenterReservationsHandler)(nil)
