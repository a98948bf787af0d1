package policies

import (
	"context"
	"time"

	"carrental/internal/app/dto"
)

type Receipt struct {
	TaskID       string            `json:"task_id"`
	Renter       string            `json:"renter"`
	Reservations []dto.Reservation `json:"reservations"`
	IssuedAt     time.Time         `json:"issued_at"`
}

// ReceiptArchive stores a confirmation receipt and returns where it lives.
type ReceiptArchive interface {
	Archive(ctx context.Context, receipt Receipt) (string, error)
}
