package orchestrator

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/skillforge/internal/plan"
	"github.com/p-blackswan/skillforge/internal/skill"
)

// Schema hints double as dispatch keys for the mock provider.
const (
	PlanSchemaHint = "Plan(mode, work_orders[{id,title,skill,outputs[{path,purpose}]}], assumptions[])"
	ExecSchemaHint = "SkillExecutionResult(files[{path,content}], summary, warnings[])"

	planSystemPrompt = "You are a planner that produces strict JSON."
	execSystemPrompt = "You are a reliable executor. Output JSON only."

	planTemperature = 0.2
	planMaxTokens   = 1800
	execTemperature = 0.2
	execMaxTokens   = 2500
)

func renderSkillList(skills []skill.Summary) string {
	lines := make([]string, 0, len(skills))
	for _, s := range skills {
		lines = append(lines, fmt.Sprintf("- %s: %s", s.Name, s.Description))
	}
	return strings.Join(lines, "\n")
}

func planPrompt(mission string, skills []skill.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MISSION: %s\n\n", mission)
	b.WriteString("You are the Supervisor of a small agent company.\n")
	b.WriteString("Based on the mission and the available skills, output a plan in JSON.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use ONLY skills from the available list.\n")
	b.WriteString("- 4-8 work_orders is ideal.\n")
	b.WriteString("- Each work_order should list expected output file paths.\n\n")
	b.WriteString("AVAILABLE_SKILLS:\n")
	b.WriteString(renderSkillList(skills))
	return b.String()
}

func execPrompt(mission string, wo plan.WorkOrder, ref *skill.Ref, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MISSION: %s\n", mission)
	fmt.Fprintf(&b, "WORK_ORDER: %s - %s\n", wo.ID, wo.Title)
	fmt.Fprintf(&b, "SKILL: %s\n", wo.Skill)
	fmt.Fprintf(&b, "SKILL_DESCRIPTION: %s\n\n", ref.Description())
	b.WriteString("Follow the SKILL instructions carefully.\n")
	b.WriteString("You MUST generate files as requested by the work order outputs.\n")
	b.WriteString("Return ONLY JSON matching the schema hint.\n\n")
	b.WriteString("WORK_ORDER_OUTPUTS:\n")
	outs := make([]string, 0, len(wo.Outputs))
	for _, o := range wo.Outputs {
		purpose := ""
		if o.Purpose != nil {
			purpose = *o.Purpose
		}
		outs = append(outs, fmt.Sprintf("- %s: %s", o.Path, purpose))
	}
	b.WriteString(strings.Join(outs, "\n"))
	b.WriteString("\n\nSKILL_INSTRUCTIONS:\n")
	b.WriteString(body)
	return b.String()
}
