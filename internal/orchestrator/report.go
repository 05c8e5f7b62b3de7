package orchestrator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/p-blackswan/skillforge/internal/plan"
)

// MarshalPlan renders a plan as indented JSON without HTML escaping.
func MarshalPlan(p *plan.Plan) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// renderReport builds RUN.md. files are workspace-relative, slash separated.
func renderReport(mission string, planJSON []byte, files, warnings []string) string {
	var b strings.Builder
	b.WriteString("# Run Report\n\nMission: " + mission + "\n\n")
	b.WriteString("## Plan\n\n")
	b.WriteString("```json\n")
	b.Write(planJSON)
	b.WriteString("\n```\n")
	b.WriteString("## Files written\n\n")
	for _, f := range files {
		b.WriteString("- " + f + "\n")
	}
	if len(warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}
