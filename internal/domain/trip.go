// Package domain defines the core data types for trip planning sessions.
package domain

// Roles tagging conversation history entries.
const (
	RoleHuman = "human"
	RoleAgent = "agent"
)

// TurnEntry is a single line of the conversation transcript.
type TurnEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TripState holds the full planning state for one session. It is the unit
// of persistence: the engine serializes the whole struct at the end of a
// turn and never writes partial updates.
type TripState struct {
	SessionID          string         `json:"session_id"`
	UserInput          string         `json:"user_input"`
	NeedsClarification bool           `json:"clarification_needed"`
	PendingQuestions   []string       `json:"clarification_questions,omitempty"`
	Preferences        map[string]any `json:"trip_preferences,omitempty"`
	SuccessCriteria    []string       `json:"success_criteria,omitempty"`
	DataQualityNotes   []string       `json:"data_quality_requirements,omitempty"`
	Itinerary          map[string]any `json:"itinerary,omitempty"`
	ResponseText       string         `json:"final_response"`
	History            []TurnEntry    `json:"conversation_history"`
	StageLog           []string       `json:"stage_log,omitempty"`
}

// NewTripState returns an empty state for a session.
func NewTripState(sessionID string) *TripState {
	return &TripState{
		SessionID:   sessionID,
		Preferences: make(map[string]any),
	}
}

// BeginTurn records the incoming user input and its transcript entry.
func (s *TripState) BeginTurn(input string) {
	s.UserInput = input
	s.ResponseText = ""
	s.History = append(s.History, TurnEntry{Role: RoleHuman, Content: input})
}

// EndTurn records the agent's final response in the transcript.
func (s *TripState) EndTurn() {
	s.History = append(s.History, TurnEntry{Role: RoleAgent, Content: s.ResponseText})
}

// LogStage appends one stage outcome line to the stage log.
func (s *TripState) LogStage(line string) {
	s.StageLog = append(s.StageLog, line)
}

// MergePreferences overlays newly derived preferences onto the accumulated
// set, keeping prior values for keys the update does not mention.
func (s *TripState) MergePreferences(update map[string]any) {
	if s.Preferences == nil {
		s.Preferences = make(map[string]any)
	}
	for k, v := range update {
		s.Preferences[k] = v
	}
}

// PreferenceString returns a string preference, or fallback when the key
// is unset, empty or not a string.
func (s *TripState) PreferenceString(key, fallback string) string {
	if v, ok := s.Preferences[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// PreferenceNumber returns a numeric preference, or fallback when the key
// is unset or not numeric. JSON numbers decode as float64; plain ints are
// accepted for values set in code.
func (s *TripState) PreferenceNumber(key string, fallback float64) float64 {
	switch v := s.Preferences[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// RecentHistory returns the last n transcript entries.
func (s *TripState) RecentHistory(n int) []TurnEntry {
	if n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
