package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/tripflow/internal/domain"
)

// historyContextEntries bounds how much transcript each prompt carries.
const historyContextEntries = 10

const clarifyPromptTemplate = `You are a travel planning assistant. Decide whether the conversation so far contains enough detail to plan a trip.

Required before planning: destination, travel dates or trip length, and an approximate budget.

Known preferences: %s
Outstanding questions: %s
Recent conversation:
%s
Latest message: %s

Respond with one JSON object:
{"clarification_needed": true|false, "questions": ["..."], "preferences": {...}, "message": "..."}

"preferences" must merge everything learned so far (destination, origin, start_date, end_date, duration_days, budget, interests, travelers_count). "message" is shown to the traveler when clarification is needed.`

const validatePromptTemplate = `You are a travel planning assistant normalizing trip preferences before itinerary generation.

Preferences so far: %s
Latest message: %s

Respond with one JSON object:
{"validated_preferences": {...}, "success_criteria": ["..."], "data_quality_requirements": ["..."]}

Keep every fact the traveler stated. Normalize dates to YYYY-MM-DD and budget to a plain number. Never invent a destination, dates or a budget the traveler did not give.`

const producePromptTemplate = `You are a travel planning assistant. Create a day-by-day itinerary.

Validated preferences: %s
Success criteria: %s

Respond with one JSON object:
{"summary": "...", "total_estimated_cost": 0, "daily_itinerary": [{"day": 1, "theme": "...", "morning": "...", "afternoon": "...", "evening": "...", "daily_budget": 0}], "local_tips": ["..."], "packing_list": ["..."], "budget_breakdown": {"accommodation": 0, "activities": 0, "food": 0, "transportation": 0, "total": 0}}`

const respondPromptTemplate = `You are a travel planning assistant presenting a finished itinerary.

Traveler preferences: %s
Itinerary: %s

Write a warm, concise reply that walks the traveler through the plan, mentions the estimated cost, and invites follow-up questions. Plain text only.`

func clarifyPrompt(st *domain.TripState) string {
	return fmt.Sprintf(clarifyPromptTemplate,
		jsonContext(st.Preferences),
		listContext(st.PendingQuestions),
		historyContext(st),
		st.UserInput)
}

func validatePrompt(st *domain.TripState) string {
	return fmt.Sprintf(validatePromptTemplate, jsonContext(st.Preferences), st.UserInput)
}

func producePrompt(st *domain.TripState) string {
	return fmt.Sprintf(producePromptTemplate, jsonContext(st.Preferences), listContext(st.SuccessCriteria))
}

func respondPrompt(st *domain.TripState) string {
	return fmt.Sprintf(respondPromptTemplate, jsonContext(st.Preferences), jsonContext(st.Itinerary))
}

// jsonContext renders a map for prompt embedding. Encoding failures and
// empty maps render as an empty object.
func jsonContext(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func listContext(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, "; ")
}

func historyContext(st *domain.TripState) string {
	entries := st.RecentHistory(historyContextEntries)
	if len(entries) == 0 {
		return "(no prior conversation)"
	}

	var b strings.Builder
	for _, entry := range entries {
		switch entry.Role {
		case domain.RoleAgent:
			b.WriteString("Agent: ")
		default:
			b.WriteString("Human: ")
		}
		b.WriteString(entry.Content)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
