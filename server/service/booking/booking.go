// Package booking isolates the agent from the wire format of the Cal.com API.
package booking

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors returned by Service implementations. The executor's retry
// policy keys off these: only ErrRemoteUnavailable is worth retrying.
var (
	// ErrNotFound indicates the booking id does not belong to an existing,
	// active booking.
	ErrNotFound = errors.New("booking not found")

	// ErrRemoteRejected indicates the API rejected the request for business
	// reasons (validation failure, slot conflict). Retrying will not help.
	ErrRemoteRejected = errors.New("booking rejected by remote")

	// ErrRemoteUnavailable indicates a transport-level failure (network,
	// timeout, server error) that may succeed on retry.
	ErrRemoteUnavailable = errors.New("booking service unavailable")
)

// Record is a booking as reported by the remote API. The agent never mutates
// records directly; all mutation happens through API calls returning a fresh
// record.
type Record struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Attendee  string    `json:"attendee"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
}

// CreateRequest holds the fields needed to create a booking.
type CreateRequest struct {
	StartTime time.Time
	Attendee  string
	Reason    string
	Email     string
	Timezone  string
}

// Service is the typed wrapper around the scheduling API. Each call issues a
// single outbound request; retry policy lives with the caller.
type Service interface {
	// CreateBooking books a new event and returns the created record.
	CreateBooking(ctx context.Context, req *CreateRequest) (*Record, error)

	// ListBookings returns the user's upcoming bookings in chronological
	// order. An empty slice means no bookings exist.
	ListBookings(ctx context.Context, email string) ([]*Record, error)

	// CancelBooking cancels the booking with the given id.
	CancelBooking(ctx context.Context, id int64) error
}
