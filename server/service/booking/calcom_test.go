package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*CalClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewCalClient(&Config{
		BaseURLV1:     srv.URL + "/v1",
		BaseURLV2:     srv.URL + "/v2",
		APIKey:        "cal_test_key",
		EventTypeSlug: "30min",
		Timeout:       2 * time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

// bookingFixtureMux serves the lookup endpoints every create needs.
func bookingFixtureMux(t *testing.T, lookupCount *int32) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(lookupCount, 1)
		assert.Equal(t, "cal_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, calAPIVersion, r.Header.Get("cal-api-version"))
		fmt.Fprint(w, `{"data": {"id": 42, "username": "organizer", "name": "Alex Organizer"}}`)
	})
	mux.HandleFunc("/v1/event-types", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(lookupCount, 1)
		assert.Equal(t, "cal_test_key", r.URL.Query().Get("apiKey"))
		fmt.Fprint(w, `{"event_types": [
			{"id": 7, "slug": "60min", "title": "Hour Meeting", "length": 60},
			{"id": 9, "slug": "30min", "title": "30 Min Meeting", "length": 30}
		]}`)
	})
	return mux
}

func TestCreateBooking(t *testing.T) {
	var lookups int32
	mux := bookingFixtureMux(t, &lookups)
	mux.HandleFunc("/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "cal_test_key", r.URL.Query().Get("apiKey"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.EqualValues(t, 9, payload["eventTypeId"])
		assert.Equal(t, "America/New_York", payload["timeZone"])
		assert.Contains(t, payload["title"], "Alex Organizer")
		assert.Contains(t, payload["title"], "Jordan Lee")

		fmt.Fprint(w, `{"id": 123, "uid": "uid_123", "title": "30 Min Meeting between Alex Organizer and Jordan Lee", "status": "ACCEPTED"}`)
	})

	client, _ := newTestClient(t, mux)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	rec, err := client.CreateBooking(context.Background(), &CreateRequest{
		StartTime: start,
		Attendee:  "Jordan Lee",
		Reason:    "Project kickoff",
		Email:     "jordan@example.com",
		Timezone:  "America/New_York",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 123, rec.ID)
	assert.Equal(t, "uid_123", rec.UID)
	assert.True(t, rec.StartTime.Equal(start))
	assert.True(t, rec.EndTime.Equal(start.Add(30*time.Minute)), "end time comes from the event type length")
	assert.Equal(t, "ACCEPTED", rec.Status)

	// Second booking reuses the cached organizer and event-type details.
	_, err = client.CreateBooking(context.Background(), &CreateRequest{
		StartTime: start.Add(time.Hour),
		Attendee:  "Jordan Lee",
		Reason:    "Follow-up",
		Email:     "jordan@example.com",
		Timezone:  "America/New_York",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&lookups))
}

func TestCreateBookingRejected(t *testing.T) {
	var lookups int32
	mux := bookingFixtureMux(t, &lookups)
	mux.HandleFunc("/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		http.Error(w, `{"message": "no available users found"}`, http.StatusBadRequest)
	})

	client, _ := newTestClient(t, mux)
	_, err := client.CreateBooking(context.Background(), &CreateRequest{
		StartTime: time.Now().Add(time.Hour),
		Attendee:  "A",
		Reason:    "B",
		Email:     "a@b.c",
		Timezone:  "UTC",
	})
	assert.True(t, errors.Is(err, ErrRemoteRejected), "got %v", err)
}

func TestListBookingsChronological(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "cal_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "upcoming", r.URL.Query().Get("status"))
		fmt.Fprint(w, `{"data": [
			{"id": 2, "uid": "b", "title": "Later", "start": "2026-09-02T10:00:00Z", "end": "2026-09-02T10:30:00Z", "status": "accepted"},
			{"id": 1, "uid": "a", "title": "Sooner", "start": "2026-09-01T10:00:00Z", "end": "2026-09-01T10:30:00Z", "status": "accepted"}
		]}`)
	})

	client, _ := newTestClient(t, mux)
	records, err := client.ListBookings(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Sooner", records[0].Title)
	assert.Equal(t, "Later", records[1].Title)
}

func TestListBookingsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"data": []}`)
	})

	client, _ := newTestClient(t, mux)
	records, err := client.ListBookings(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCancelBooking(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/bookings/55/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload["cancellationReason"])
		fmt.Fprint(w, `{"status": "success"}`)
	})

	client, _ := newTestClient(t, mux)
	assert.NoError(t, client.CancelBooking(context.Background(), 55))
}

func TestCancelBookingNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/bookings/999/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		http.Error(w, `{"message": "booking not found"}`, http.StatusNotFound)
	})

	client, _ := newTestClient(t, mux)
	err := client.CancelBooking(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	client, _ := newTestClient(t, mux)
	_, err := client.ListBookings(context.Background(), "user@example.com")
	assert.True(t, errors.Is(err, ErrRemoteUnavailable), "got %v", err)
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	client, srv := newTestClient(t, http.NewServeMux())
	srv.Close()

	_, err := client.ListBookings(context.Background(), "user@example.com")
	assert.True(t, errors.Is(err, ErrRemoteUnavailable), "got %v", err)
}

func TestNewCalClientRequiresAPIKey(t *testing.T) {
	_, err := NewCalClient(&Config{})
	require.Error(t, err)
}
