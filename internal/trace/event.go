// Package trace records and replays the append-only event log of a run.
//
// Each run owns one JSONL file. Every line is a single Event; the sequence of
// lines is the run's authoritative history and is never rewritten.
package trace

import "time"

// Event types. The vocabulary is fixed.
const (
	TypeMissionStart      = "mission.start"
	TypePlanRequest       = "plan.request"
	TypePlanResponse      = "plan.response"
	TypeWorkOrderStart    = "work_order.start"
	TypeWorkOrderSkip     = "work_order.skip"
	TypeSkillExecRequest  = "skill.exec.request"
	TypeSkillExecResponse = "skill.exec.response"
	TypeSkillExecParseErr = "skill.exec.parse_error"
	TypeWorkOrderDone     = "work_order.done"
	TypeMissionDone       = "mission.done"
)

var knownTypes = map[string]struct{}{
	TypeMissionStart:      {},
	TypePlanRequest:       {},
	TypePlanResponse:      {},
	TypeWorkOrderStart:    {},
	TypeWorkOrderSkip:     {},
	TypeSkillExecRequest:  {},
	TypeSkillExecResponse: {},
	TypeSkillExecParseErr: {},
	TypeWorkOrderDone:     {},
	TypeMissionDone:       {},
}

// IsKnownType reports whether t belongs to the event vocabulary.
func IsKnownType(t string) bool {
	_, ok := knownTypes[t]
	return ok
}

// Payload is the structured body of an event.
type Payload map[string]any

// Event is one line of a trace log.
type Event struct {
	TS      string  `json:"ts"`
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Time parses the event timestamp.
func (e Event) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.TS)
}

// Indexed pairs an event with its zero-based line number in the log.
type Indexed struct {
	Index int   `json:"index"`
	Event Event `json:"event"`
}
