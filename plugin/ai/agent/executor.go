package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/calchat/plugin/ai/timeout"
	"github.com/hrygo/calchat/server/service/booking"
)

// Executor validates model-produced invocations against the schema and
// dispatches them to the booking service. It is the only component allowed
// to call the booking service on behalf of the model.
type Executor struct {
	svc         booking.Service
	schema      *Schema
	retryDelay  time.Duration
	callTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRetryDelay sets the delay before the single transient-failure retry.
func WithRetryDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.retryDelay = d }
}

// WithCallTimeout sets the timeout for each booking API attempt.
func WithCallTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.callTimeout = d }
}

// NewExecutor creates an Executor backed by the given booking service.
func NewExecutor(svc booking.Service, schema *Schema, opts ...ExecutorOption) *Executor {
	e := &Executor{
		svc:         svc,
		schema:      schema,
		retryDelay:  timeout.RetryDelay,
		callTimeout: timeout.ToolExecutionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute validates the invocation and dispatches it. All failures come back
// as a typed ToolResult, never as an error: the result is data for the model.
func (e *Executor) Execute(ctx context.Context, inv ToolInvocation, session *Session) ToolResult {
	start := time.Now()

	result := e.execute(ctx, inv, session)

	slog.Debug("tool invocation finished",
		"tool", inv.Name,
		"success", result.Success,
		"failure", string(result.Failure),
		"duration", time.Since(start))
	return result
}

func (e *Executor) execute(ctx context.Context, inv ToolInvocation, session *Session) ToolResult {
	spec, ok := e.schema.Spec(inv.Name)
	if !ok {
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("unknown tool: %s", inv.Name))
	}

	switch spec.Name {
	case ToolBookEvent:
		return e.bookEvent(ctx, inv, session)
	case ToolListEvents:
		return e.listEvents(ctx, inv, session)
	case ToolCancelEvent:
		return e.cancelEvent(ctx, inv)
	default:
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("tool %s has no executor", spec.Name))
	}
}

func (e *Executor) bookEvent(ctx context.Context, inv ToolInvocation, session *Session) ToolResult {
	var args struct {
		StartTime    string `json:"start_time"`
		AttendeeName string `json:"attendee_name"`
		Reason       string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(inv.Arguments), &args); err != nil {
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("arguments are not a valid JSON object: %v", err))
	}

	var missing []string
	if args.StartTime == "" {
		missing = append(missing, "start_time")
	}
	if args.AttendeeName == "" {
		missing = append(missing, "attendee_name")
	}
	if args.Reason == "" {
		missing = append(missing, "reason")
	}
	if len(missing) > 0 {
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")))
	}

	start, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("invalid start_time %q: use ISO 8601 format (e.g., 2026-09-15T14:00:00-04:00)", args.StartTime))
	}
	if !start.After(time.Now().In(session.Location)) {
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("start_time %s is in the past; bookings must be in the future", args.StartTime))
	}

	req := &booking.CreateRequest{
		StartTime: start,
		Attendee:  args.AttendeeName,
		Reason:    args.Reason,
		Email:     session.Email,
		Timezone:  session.Timezone,
	}

	var record *booking.Record
	err = e.callRemote(ctx, func(callCtx context.Context) error {
		var callErr error
		record, callErr = e.svc.CreateBooking(callCtx, req)
		return callErr
	})
	if err != nil {
		return e.remoteFailure(inv, err)
	}

	msg := fmt.Sprintf("Booked %q for %s. Booking ID is %d.",
		record.Title, record.StartTime.In(session.Location).Format("2006-01-02 15:04 MST"), record.ID)
	return SuccessResult(inv, record, msg)
}

func (e *Executor) listEvents(ctx context.Context, inv ToolInvocation, session *Session) ToolResult {
	var records []*booking.Record
	err := e.callRemote(ctx, func(callCtx context.Context) error {
		var callErr error
		records, callErr = e.svc.ListBookings(callCtx, session.Email)
		return callErr
	})
	if err != nil {
		return e.remoteFailure(inv, err)
	}

	if len(records) == 0 {
		return SuccessResult(inv, records,
			fmt.Sprintf("No scheduled events found for %s.", session.Email))
	}

	var sb strings.Builder
	sb.Grow(256)
	fmt.Fprintf(&sb, "Found %d scheduled event(s):\n", len(records))
	for i, rec := range records {
		fmt.Fprintf(&sb, "%d. %s (%s), booking ID %d\n",
			i+1, rec.Title, rec.StartTime.In(session.Location).Format("2006-01-02 15:04 MST"), rec.ID)
	}
	return SuccessResult(inv, records, sb.String())
}

func (e *Executor) cancelEvent(ctx context.Context, inv ToolInvocation) ToolResult {
	var args struct {
		BookingID *int64 `json:"booking_id"`
	}
	if err := json.Unmarshal([]byte(inv.Arguments), &args); err != nil {
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("arguments are not a valid JSON object: %v", err))
	}
	if args.BookingID == nil {
		return FailureResult(inv, FailInvalidArguments, "missing required field: booking_id")
	}
	if *args.BookingID <= 0 {
		return FailureResult(inv, FailInvalidArguments,
			fmt.Sprintf("booking_id must be a positive integer, got %d", *args.BookingID))
	}

	id := *args.BookingID
	err := e.callRemote(ctx, func(callCtx context.Context) error {
		return e.svc.CancelBooking(callCtx, id)
	})
	if err != nil {
		return e.remoteFailure(inv, err)
	}
	return SuccessResult(inv, nil, fmt.Sprintf("Booking %d has been cancelled.", id))
}

// callRemote runs one booking API call with a per-attempt timeout, retrying
// exactly once after a short fixed delay when the failure is transient.
// NotFound and business rejections are terminal: the condition will not
// change without new information.
func (e *Executor) callRemote(ctx context.Context, fn func(context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		err := fn(callCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrap(booking.ErrRemoteUnavailable, "booking API call timed out")
		}
		return err
	}

	err := attempt()
	if err == nil || !errors.Is(err, booking.ErrRemoteUnavailable) {
		return err
	}

	slog.Warn("transient booking failure, retrying once",
		"delay", e.retryDelay,
		"error", err)

	select {
	case <-ctx.Done():
		return errors.Wrap(booking.ErrRemoteUnavailable, ctx.Err().Error())
	case <-time.After(e.retryDelay):
	}
	return attempt()
}

// remoteFailure maps a booking service error to a typed failure result.
func (e *Executor) remoteFailure(inv ToolInvocation, err error) ToolResult {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return FailureResult(inv, FailNotFound, err.Error())
	case errors.Is(err, booking.ErrRemoteRejected):
		return FailureResult(inv, FailRemoteRejected, err.Error())
	case errors.Is(err, booking.ErrRemoteUnavailable):
		return FailureResult(inv, FailRemoteUnavailable, err.Error())
	default:
		slog.Warn("unclassified booking error",
			"tool", inv.Name,
			"error", err)
		return FailureResult(inv, FailRemoteUnavailable, err.Error())
	}
}
