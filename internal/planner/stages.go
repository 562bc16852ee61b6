package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/tripflow/internal/domain"
)

// stage is one node of the planning pipeline.
type stage int

const (
	stageClarify stage = iota
	stageValidate
	stageProduce
	stageRespond
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageClarify:
		return "clarify"
	case stageValidate:
		return "validate"
	case stageProduce:
		return "produce"
	case stageRespond:
		return "respond"
	default:
		return "done"
	}
}

// nextStage is the pipeline's transition function. Only the state decides
// the path; stages themselves never jump.
func nextStage(current stage, st *domain.TripState) stage {
	switch current {
	case stageClarify:
		if st.NeedsClarification {
			return stageDone
		}
		return stageValidate
	case stageValidate:
		return stageProduce
	case stageProduce:
		return stageRespond
	default:
		return stageDone
	}
}

// runStage executes one pipeline stage against the state.
func (e *Engine) runStage(ctx context.Context, s stage, st *domain.TripState) error {
	switch s {
	case stageClarify:
		return e.runClarify(ctx, st)
	case stageValidate:
		return e.runValidate(ctx, st)
	case stageProduce:
		return e.runProduce(ctx, st)
	case stageRespond:
		return e.runRespond(ctx, st)
	default:
		return fmt.Errorf("unknown stage %d", s)
	}
}

// clarifyFallbackKeywords drive the heuristic verdict when the generator's
// reply cannot be parsed: any of them in the raw text means the model was
// asking for more input.
var clarifyFallbackKeywords = []string{"need", "missing", "clarify", "more information"}

const (
	clarifyFallbackQuestion = "Could you share more details about your destination and travel dates?"
	clarifyFallbackMessage  = "I need a bit more information to plan your perfect trip."
)

// runClarify decides whether the accumulated input suffices to plan. When
// it does not, the turn exits early carrying the questions to ask.
func (e *Engine) runClarify(ctx context.Context, st *domain.TripState) error {
	text, err := e.gen.Generate(ctx, clarifyPrompt(st))
	if err != nil {
		return err
	}

	var reply clarifyReply
	if extractJSON(text, &reply) {
		if len(reply.Preferences) > 0 {
			st.MergePreferences(reply.Preferences)
		}
		st.NeedsClarification = reply.ClarificationNeeded
		if reply.ClarificationNeeded {
			st.PendingQuestions = reply.Questions
			if len(st.PendingQuestions) == 0 {
				st.PendingQuestions = []string{clarifyFallbackQuestion}
			}
			st.ResponseText = strings.TrimSpace(reply.Message)
			if st.ResponseText == "" {
				st.ResponseText = clarifyFallbackMessage
			}
		} else {
			st.PendingQuestions = nil
		}
	} else {
		st.NeedsClarification = containsAnyFold(text, clarifyFallbackKeywords)
		if st.NeedsClarification {
			st.PendingQuestions = []string{clarifyFallbackQuestion}
			st.ResponseText = clarifyFallbackMessage
		} else {
			st.PendingQuestions = nil
		}
	}

	if st.NeedsClarification {
		st.LogStage(fmt.Sprintf("clarify: waiting on %d question(s)", len(st.PendingQuestions)))
	} else {
		st.LogStage("clarify: enough detail to proceed")
	}
	return nil
}

// runValidate normalizes preferences and fills structural defaults. A
// malformed reply leaves the accumulated preferences standing.
func (e *Engine) runValidate(ctx context.Context, st *domain.TripState) error {
	text, err := e.gen.Generate(ctx, validatePrompt(st))
	if err != nil {
		return err
	}

	var reply validateReply
	if extractJSON(text, &reply) {
		if len(reply.ValidatedPreferences) > 0 {
			st.MergePreferences(reply.ValidatedPreferences)
		}
		st.SuccessCriteria = reply.SuccessCriteria
		st.DataQualityNotes = reply.DataQuality
	}

	applyPreferenceDefaults(st)
	st.LogStage("validate: preferences normalized")
	return nil
}

// applyPreferenceDefaults fills structurally required fields the traveler
// never has to state. Traveler-stated facts (destination, dates, budget,
// origin) are never defaulted.
func applyPreferenceDefaults(st *domain.TripState) {
	defaults := map[string]any{
		"traveler_name":      "Traveler",
		"travelers_count":    float64(1),
		"accommodation_tier": "mid",
		"pace":               "balanced",
	}
	for k, v := range defaults {
		if _, ok := st.Preferences[k]; !ok {
			st.Preferences[k] = v
		}
	}

	if _, ok := st.Preferences["duration_days"]; !ok {
		start := st.PreferenceString("start_date", "")
		end := st.PreferenceString("end_date", "")
		if days, ok := durationFromDates(start, end); ok {
			st.Preferences["duration_days"] = float64(days)
		}
	}
}

// durationFromDates derives an inclusive trip length in days from
// YYYY-MM-DD bounds.
func durationFromDates(start, end string) (int, bool) {
	if start == "" || end == "" {
		return 0, false
	}
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return 0, false
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return 0, false
	}

	days := int(e.Sub(s).Hours()/24) + 1
	if days <= 0 {
		return 0, false
	}
	return days, true
}

// runProduce generates the itinerary. A malformed reply yields the
// deterministic fallback plan instead of failing the turn.
func (e *Engine) runProduce(ctx context.Context, st *domain.TripState) error {
	text, err := e.gen.Generate(ctx, producePrompt(st))
	if err != nil {
		return err
	}

	var itinerary map[string]any
	if extractJSON(text, &itinerary) && len(itinerary) > 0 {
		st.Itinerary = itinerary
		st.LogStage("produce: itinerary drafted")
		return nil
	}

	st.Itinerary = fallbackItinerary(st)
	st.LogStage("produce: fallback itinerary used")
	return nil
}

// fallbackItinerary builds a deterministic plan from the preferences when
// the generator's output is unusable. The result carries a marker so
// consumers can tell it apart from a generated plan.
func fallbackItinerary(st *domain.TripState) map[string]any {
	destination := st.PreferenceString("destination", "your destination")
	duration := int(st.PreferenceNumber("duration_days", 5))
	if duration <= 0 {
		duration = 5
	}
	budget := st.PreferenceNumber("budget", 1500)
	dailyBudget := budget / float64(duration)

	days := make([]any, 0, duration)
	for day := 1; day <= duration; day++ {
		days = append(days, map[string]any{
			"day":          day,
			"theme":        fmt.Sprintf("Day %d exploration", day),
			"morning":      "Explore local highlights",
			"afternoon":    "Visit a major attraction",
			"evening":      "Dinner featuring regional cuisine",
			"daily_budget": dailyBudget,
		})
	}

	return map[string]any{
		"fallback":             true,
		"summary":              fmt.Sprintf("A %d-day trip to %s", duration, destination),
		"total_estimated_cost": budget,
		"daily_itinerary":      days,
		"local_tips": []any{
			"Research local customs before arrival",
			"Keep digital and paper copies of important documents",
			"Learn a few phrases in the local language",
		},
		"packing_list": []any{
			"Comfortable walking shoes",
			"Weather-appropriate clothing",
			"Travel documents and copies",
			"Universal power adapter",
		},
		"budget_breakdown": map[string]any{
			"accommodation":  budget * 0.4,
			"activities":     budget * 0.3,
			"food":           budget * 0.2,
			"transportation": budget * 0.1,
			"total":          budget,
		},
	}
}

// runRespond composes the final reply text. The turn always ends with a
// non-empty response.
func (e *Engine) runRespond(ctx context.Context, st *domain.TripState) error {
	text, err := e.gen.Generate(ctx, respondPrompt(st))
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = templatedResponse(st)
		st.LogStage("respond: templated response used")
	} else {
		st.LogStage("respond: response composed")
	}
	st.ResponseText = text
	return nil
}

// templatedResponse builds a plain summary from the state when the
// generator returns nothing usable.
func templatedResponse(st *domain.TripState) string {
	destination := st.PreferenceString("destination", "your destination")
	duration := int(st.PreferenceNumber("duration_days", 5))

	var b strings.Builder
	fmt.Fprintf(&b, "Your %d-day trip to %s is ready.", duration, destination)
	if cost, ok := st.Itinerary["total_estimated_cost"].(float64); ok && cost > 0 {
		fmt.Fprintf(&b, " The estimated cost is %.0f.", cost)
	}
	b.WriteString(" Let me know if you would like any day adjusted or more detail on activities, food or transport.")
	return b.String()
}
