package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const calAPIVersion = "2024-08-13"

// Config holds the Cal.com client configuration.
type Config struct {
	// BaseURLV1 serves booking creation and event-type lookup.
	BaseURLV1 string
	// BaseURLV2 serves user details, listing and cancellation.
	BaseURLV2 string
	APIKey    string
	// EventTypeSlug selects the event type used for new bookings.
	EventTypeSlug string
	Timeout       time.Duration
}

// DefaultConfig returns the default Cal.com client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURLV1:     "https://api.cal.com/v1",
		BaseURLV2:     "https://api.cal.com/v2",
		EventTypeSlug: "30min",
		Timeout:       30 * time.Second,
	}
}

// CalClient implements Service against the Cal.com REST API.
type CalClient struct {
	config     *Config
	httpClient *http.Client

	// Organizer and event-type details rarely change; cache them to avoid
	// repeated lookups on every booking.
	mu              sync.Mutex
	cachedUser      *userDetails
	cachedEventType *eventTypeDetails
}

type userDetails struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type eventTypeDetails struct {
	ID     int64  `json:"id"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

// NewCalClient creates a new Cal.com API client.
func NewCalClient(cfg *Config) (*CalClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("Cal.com API key is required")
	}
	if cfg.BaseURLV1 == "" {
		cfg.BaseURLV1 = "https://api.cal.com/v1"
	}
	if cfg.BaseURLV2 == "" {
		cfg.BaseURLV2 = "https://api.cal.com/v2"
	}
	if cfg.EventTypeSlug == "" {
		cfg.EventTypeSlug = "30min"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &CalClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// CreateBooking books a new event via the v1 bookings endpoint.
func (c *CalClient) CreateBooking(ctx context.Context, req *CreateRequest) (*Record, error) {
	organizer, err := c.getUserDetails(ctx)
	if err != nil {
		return nil, err
	}
	eventType, err := c.getEventTypeDetails(ctx)
	if err != nil {
		return nil, err
	}

	organizerName := organizer.Name
	if organizerName == "" {
		organizerName = organizer.Username
	}
	if organizerName == "" {
		organizerName = "Organizer"
	}

	end := req.StartTime.Add(time.Duration(eventType.Length) * time.Minute)
	payload := map[string]any{
		"eventTypeId": eventType.ID,
		"start":       req.StartTime.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"responses": map[string]string{
			"name":  req.Attendee,
			"email": req.Email,
		},
		"timeZone":    req.Timezone,
		"language":    "en",
		"title":       fmt.Sprintf("%s between %s and %s", eventType.Title, organizerName, req.Attendee),
		"description": req.Reason,
		"status":      "ACCEPTED",
		"metadata":    map[string]any{},
	}

	var created struct {
		ID     int64  `json:"id"`
		UID    string `json:"uid"`
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	url := fmt.Sprintf("%s/bookings?apiKey=%s", c.config.BaseURLV1, c.config.APIKey)
	if err := c.doJSON(ctx, http.MethodPost, url, payload, false, &created); err != nil {
		return nil, err
	}
	if created.ID == 0 {
		return nil, errors.Wrap(ErrRemoteRejected, "booking response did not contain an id")
	}

	slog.Info("booking created",
		"booking_id", created.ID,
		"start", req.StartTime,
		"attendee", req.Attendee)

	return &Record{
		ID:        created.ID,
		UID:       created.UID,
		Title:     created.Title,
		StartTime: req.StartTime,
		EndTime:   end,
		Attendee:  req.Attendee,
		Reason:    req.Reason,
		Status:    created.Status,
	}, nil
}

// ListBookings returns the user's upcoming bookings via the v2 endpoint.
func (c *CalClient) ListBookings(ctx context.Context, email string) ([]*Record, error) {
	var resp struct {
		Data []struct {
			ID     int64  `json:"id"`
			UID    string `json:"uid"`
			Title  string `json:"title"`
			Start  string `json:"start"`
			End    string `json:"end"`
			Status string `json:"status"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/bookings?take=100&status=upcoming", c.config.BaseURLV2)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, true, &resp); err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(resp.Data))
	for _, b := range resp.Data {
		rec := &Record{
			ID:     b.ID,
			UID:    b.UID,
			Title:  b.Title,
			Status: b.Status,
		}
		if start, err := time.Parse(time.RFC3339, b.Start); err == nil {
			rec.StartTime = start
		} else {
			slog.Warn("skipping booking with unparseable start time",
				"booking_id", b.ID,
				"start", b.Start)
			continue
		}
		if end, err := time.Parse(time.RFC3339, b.End); err == nil {
			rec.EndTime = end
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
	return records, nil
}

// CancelBooking cancels a booking via the v2 cancel endpoint.
func (c *CalClient) CancelBooking(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/bookings/%d/cancel", c.config.BaseURLV2, id)
	payload := map[string]string{"cancellationReason": "Cancelled by user via chat assistant."}
	if err := c.doJSON(ctx, http.MethodPost, url, payload, true, nil); err != nil {
		return err
	}
	slog.Info("booking cancelled", "booking_id", id)
	return nil
}

// getUserDetails fetches and caches organizer details from /v2/me.
func (c *CalClient) getUserDetails(ctx context.Context) (*userDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedUser != nil {
		return c.cachedUser, nil
	}

	var resp struct {
		Data userDetails `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.config.BaseURLV2+"/me", nil, true, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == 0 {
		return nil, errors.Wrap(ErrRemoteRejected, "could not resolve organizer details")
	}

	slog.Debug("cached organizer details", "username", resp.Data.Username)
	c.cachedUser = &resp.Data
	return c.cachedUser, nil
}

// getEventTypeDetails fetches and caches the configured event type from the
// v1 event-types endpoint.
func (c *CalClient) getEventTypeDetails(ctx context.Context) (*eventTypeDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedEventType != nil {
		return c.cachedEventType, nil
	}

	var resp struct {
		EventTypes []eventTypeDetails `json:"event_types"`
	}
	url := fmt.Sprintf("%s/event-types?apiKey=%s", c.config.BaseURLV1, c.config.APIKey)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, false, &resp); err != nil {
		return nil, err
	}

	for i := range resp.EventTypes {
		if resp.EventTypes[i].Slug == c.config.EventTypeSlug {
			c.cachedEventType = &resp.EventTypes[i]
			slog.Debug("cached event type details",
				"slug", c.cachedEventType.Slug,
				"length", c.cachedEventType.Length)
			return c.cachedEventType, nil
		}
	}
	return nil, errors.Wrapf(ErrRemoteRejected, "event type %q not found", c.config.EventTypeSlug)
}

// doJSON issues one request and decodes the JSON response into out.
// v2Auth selects the v2 header-based authentication.
func (c *CalClient) doJSON(ctx context.Context, method, url string, payload any, v2Auth bool, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to encode request payload")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if v2Auth {
		req.Header.Set("Authorization", c.config.APIKey)
		req.Header.Set("cal-api-version", calAPIVersion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(ErrRemoteUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// classifyStatus maps an HTTP error status to a sentinel error.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "status %d: %s", status, body)
	case status >= 500:
		return errors.Wrapf(ErrRemoteUnavailable, "status %d: %s", status, body)
	default:
		return errors.Wrapf(ErrRemoteRejected, "status %d: %s", status, body)
	}
}
