// Package skill discovers, parses and validates skill declarations.
//
// A skill is a folder containing a SKILL.md file that starts with a YAML
// frontmatter block delimited by "---" lines, followed by free-form Markdown
// instructions:
//
//	---
//	name: pm-prd
//	description: Write a concise PRD with acceptance criteria.
//	---
//
//	# Instructions
//	...
//
// Roots are scanned in order and the first skill found with a given name wins.
package skill

// FileName is the declaration file every skill folder must contain.
const FileName = "SKILL.md"

// DefaultRoots are scanned when no roots are configured.
var DefaultRoots = []string{
	".agents/skills",
	".github/skills",
	".claude/skills",
	"skills",
	"~/.claude/skills",
	"~/.codex/skills",
}

// Declaration is the YAML frontmatter of a SKILL.md file.
type Declaration struct {
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description"`
	License       string         `yaml:"license,omitempty" json:"license,omitempty"`
	Compatibility string         `yaml:"compatibility,omitempty" json:"compatibility,omitempty"`
	AllowedTools  string         `yaml:"allowed-tools,omitempty" json:"allowed_tools,omitempty"`
	Metadata      map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Ref is a discovered skill on disk. The body is not held in memory; use
// Index.LoadBody to read it.
type Ref struct {
	Folder      string
	Path        string
	Declaration Declaration
}

// Name returns the declared skill name.
func (r *Ref) Name() string { return r.Declaration.Name }

// Description returns the declared description.
func (r *Ref) Description() string { return r.Declaration.Description }
