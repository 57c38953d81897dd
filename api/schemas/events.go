// File: api/schemas/events.go
package schemas

// EventType discriminates the events produced by a turn. The transport
// maps these onto its wire protocol; the orchestrator only guarantees
// in-order, synchronous emission relative to its own processing.
type EventType string

const (
	EventStatus        EventType = "status"
	EventAgentResponse EventType = "agent_response"
	EventRiskUpdate    EventType = "risk_update"
	EventBrowserUpdate EventType = "browser_update"
	EventVoiceState    EventType = "voice_state"
)

// Event is one entry in a turn's ordered event stream. Every
// state-changing decision made during a turn is observable as an event;
// the orchestrator never silently mutates state.
type Event struct {
	Type      EventType      `json:"type"`
	Text      string         `json:"text,omitempty"`
	RiskLevel RiskLevel      `json:"risk_level,omitempty"`
	URL       string         `json:"url,omitempty"`
	State     string         `json:"state,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StatusEvent builds a status event with optional metadata.
func StatusEvent(text string, metadata map[string]any) Event {
	return Event{Type: EventStatus, Text: text, Metadata: metadata}
}

// ResponseEvent builds a spoken agent response.
func ResponseEvent(text string) Event {
	return Event{Type: EventAgentResponse, Text: text}
}

// RiskEvent builds a risk update carrying the given level.
func RiskEvent(level RiskLevel, metadata map[string]any) Event {
	return Event{Type: EventRiskUpdate, RiskLevel: level, Metadata: metadata}
}

// BrowserEvent builds a browser location update.
func BrowserEvent(url string) Event {
	return Event{Type: EventBrowserUpdate, URL: url}
}

// VoiceEvent builds a voice-state notification, optionally with text to
// be spoken by the transport's synthesizer.
func VoiceEvent(state, text string) Event {
	return Event{Type: EventVoiceState, State: state, Text: text}
}
