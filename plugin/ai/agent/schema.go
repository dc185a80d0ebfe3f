package agent

import (
	"encoding/json"
	"log/slog"

	"github.com/hrygo/calchat/plugin/ai"
)

// Tool names supported by the assistant.
const (
	ToolBookEvent   = "book_event"
	ToolListEvents  = "list_events"
	ToolCancelEvent = "cancel_event"
)

// ToolSpec describes one tool: its name, the description used to bias the
// model's tool choice, and a JSON Schema for its arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Schema declares the available tools and their parameter contracts.
// Describe is pure and side-effect-free; the returned order is stable.
type Schema struct {
	specs []ToolSpec
}

// NewSchema creates the booking tool schema.
func NewSchema() *Schema {
	return &Schema{specs: []ToolSpec{
		{
			Name: ToolBookEvent,
			Description: `Books a new event on the user's calendar.
The start_time must be an ISO 8601 date-time in the user's timezone and must be in the future.
Confirm the desired date and time with the user before booking.`,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start_time": map[string]any{
						"type":        "string",
						"description": "ISO 8601 date-time (e.g., 2026-09-15T14:00:00-04:00)",
					},
					"attendee_name": map[string]any{
						"type":        "string",
						"description": "Name of the person the event is booked for",
					},
					"reason": map[string]any{
						"type":        "string",
						"description": "Purpose of the meeting",
					},
				},
				"required": []string{"start_time", "attendee_name", "reason"},
			},
		},
		{
			Name: ToolListEvents,
			Description: `Lists all upcoming bookings for the user.
Always include the booking ID in replies, since it is required for cancellations.`,
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name: ToolCancelEvent,
			Description: `Cancels a booking by its booking ID.
To find the ID, list the scheduled events first.`,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"booking_id": map[string]any{
						"type":        "integer",
						"description": "Positive integer booking ID",
					},
				},
				"required": []string{"booking_id"},
			},
		},
	}}
}

// Describe returns the ordered tool specifications.
func (s *Schema) Describe() []ToolSpec {
	out := make([]ToolSpec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Spec returns the specification for a tool name.
func (s *Schema) Spec(name string) (ToolSpec, bool) {
	for _, spec := range s.specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return ToolSpec{}, false
}

// Descriptors converts the schema to the format consumed by the LLM service.
func (s *Schema) Descriptors() []ai.ToolDescriptor {
	descriptors := make([]ai.ToolDescriptor, len(s.specs))
	for i, spec := range s.specs {
		paramsJSON, err := json.Marshal(spec.Parameters)
		if err != nil {
			slog.Warn("failed to marshal tool parameters, using empty schema",
				"tool", spec.Name,
				"error", err)
			paramsJSON = []byte(`{"type":"object","properties":{}}`)
		}
		descriptors[i] = ai.ToolDescriptor{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  string(paramsJSON),
		}
	}
	return descriptors
}
