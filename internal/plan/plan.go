// Package plan holds the typed shapes exchanged with completion providers
// and the single step that turns an untyped provider object into them.
package plan

// PlannedFile is an output the planner expects a work order to produce.
type PlannedFile struct {
	Path    string  `json:"path"`
	Purpose *string `json:"purpose"`
}

// WorkOrder is one unit of planned work, bound to a skill by name.
type WorkOrder struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Skill   string        `json:"skill"`
	Outputs []PlannedFile `json:"outputs"`
	Notes   *string       `json:"notes"`
}

// Plan is the planner's decomposition of a mission. Mode is free-form.
type Plan struct {
	Mode        string      `json:"mode"`
	WorkOrders  []WorkOrder `json:"work_orders"`
	Assumptions []string    `json:"assumptions"`
}

// GeneratedFile is a file produced by executing a work order.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ExecutionResult is the outcome of executing one work order.
type ExecutionResult struct {
	Files    []GeneratedFile `json:"files"`
	Summary  string          `json:"summary"`
	Warnings []string        `json:"warnings"`
}
