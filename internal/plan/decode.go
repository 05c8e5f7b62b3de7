package plan

import (
	"encoding/json"
	"fmt"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

// Wire shapes use pointers so missing required fields can be told apart
// from zero values.
type rawPlannedFile struct {
	Path    *string `json:"path"`
	Purpose *string `json:"purpose"`
}

type rawWorkOrder struct {
	ID      *string          `json:"id"`
	Title   *string          `json:"title"`
	Skill   *string          `json:"skill"`
	Outputs []rawPlannedFile `json:"outputs"`
	Notes   *string          `json:"notes"`
}

type rawPlan struct {
	Mode        *string         `json:"mode"`
	WorkOrders  *[]rawWorkOrder `json:"work_orders"`
	Assumptions []string        `json:"assumptions"`
}

type rawGeneratedFile struct {
	Path    *string `json:"path"`
	Content *string `json:"content"`
}

type rawResult struct {
	Files    []rawGeneratedFile `json:"files"`
	Summary  *string            `json:"summary"`
	Warnings []string           `json:"warnings"`
}

func remarshal(obj map[string]any, into any) error {
	if obj == nil {
		return fmt.Errorf("empty object")
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, into)
}

// DecodePlan validates a provider object into a Plan. mode and work_orders
// are required, as are id, title and skill on every work order and path on
// every output. assumptions defaults to empty.
func DecodePlan(obj map[string]any) (*Plan, error) {
	var raw rawPlan
	if err := remarshal(obj, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrInvalidPlan, err)
	}
	if raw.Mode == nil {
		return nil, fmt.Errorf("%w: missing field mode", perrors.ErrInvalidPlan)
	}
	if raw.WorkOrders == nil {
		return nil, fmt.Errorf("%w: missing field work_orders", perrors.ErrInvalidPlan)
	}

	p := &Plan{
		Mode:        *raw.Mode,
		WorkOrders:  make([]WorkOrder, 0, len(*raw.WorkOrders)),
		Assumptions: raw.Assumptions,
	}
	if p.Assumptions == nil {
		p.Assumptions = []string{}
	}
	for i, rw := range *raw.WorkOrders {
		switch {
		case rw.ID == nil:
			return nil, fmt.Errorf("%w: work_orders[%d]: missing field id", perrors.ErrInvalidPlan, i)
		case rw.Title == nil:
			return nil, fmt.Errorf("%w: work_orders[%d]: missing field title", perrors.ErrInvalidPlan, i)
		case rw.Skill == nil:
			return nil, fmt.Errorf("%w: work_orders[%d]: missing field skill", perrors.ErrInvalidPlan, i)
		}
		wo := WorkOrder{
			ID:      *rw.ID,
			Title:   *rw.Title,
			Skill:   *rw.Skill,
			Outputs: make([]PlannedFile, 0, len(rw.Outputs)),
			Notes:   rw.Notes,
		}
		for j, ro := range rw.Outputs {
			if ro.Path == nil {
				return nil, fmt.Errorf("%w: work_orders[%d].outputs[%d]: missing field path", perrors.ErrInvalidPlan, i, j)
			}
			wo.Outputs = append(wo.Outputs, PlannedFile{Path: *ro.Path, Purpose: ro.Purpose})
		}
		p.WorkOrders = append(p.WorkOrders, wo)
	}
	return p, nil
}

// DecodeExecutionResult validates a provider object into an ExecutionResult.
// Every field has a default; each file needs both path and content.
func DecodeExecutionResult(obj map[string]any) (*ExecutionResult, error) {
	var raw rawResult
	if err := remarshal(obj, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrInvalidResult, err)
	}

	r := &ExecutionResult{
		Files:    make([]GeneratedFile, 0, len(raw.Files)),
		Warnings: raw.Warnings,
	}
	if raw.Summary != nil {
		r.Summary = *raw.Summary
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	for i, f := range raw.Files {
		if f.Path == nil || f.Content == nil {
			return nil, fmt.Errorf("%w: files[%d]: path and content are required", perrors.ErrInvalidResult, i)
		}
		r.Files = append(r.Files, GeneratedFile{Path: *f.Path, Content: *f.Content})
	}
	return r, nil
}
