package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Report is the outcome of one discovery pass.
type Report struct {
	RootsScanned []string
	Skills       []*Ref
	Errors       []string
}

// Index builds an Index over the valid skills in the report.
func (r *Report) Index() *Index {
	return NewIndex(r.Skills)
}

// Discover scans roots in order. Each root's immediate subdirectories that
// contain a SKILL.md are parsed and validated; failures are recorded in
// Report.Errors and the skill is left out. Missing roots are skipped.
func Discover(roots []string) *Report {
	rep := &Report{}
	seen := make(map[string]string)

	for _, rootStr := range roots {
		root, err := ExpandRoot(rootStr)
		if err != nil {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		rep.RootsScanned = append(rep.RootsScanned, root)

		entries, err := os.ReadDir(root)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("read skill root %s: %v", root, err))
			continue
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

		for _, entry := range entries {
			folder := filepath.Join(root, entry.Name())
			if !isDir(folder) {
				continue
			}
			declPath := filepath.Join(folder, FileName)
			if !isFile(declPath) {
				continue
			}

			decl, err := ParseDeclaration(declPath)
			if err != nil {
				rep.Errors = append(rep.Errors, err.Error())
				continue
			}
			if _, dup := seen[decl.Name]; dup {
				rep.Errors = append(rep.Errors,
					fmt.Sprintf("Duplicate skill name '%s' found at %s (already loaded)", decl.Name, declPath))
				continue
			}
			seen[decl.Name] = declPath
			rep.Skills = append(rep.Skills, &Ref{Folder: folder, Path: declPath, Declaration: decl})
		}
	}
	return rep
}

// Validate runs discovery for its diagnostics. Discovery already validates.
func Validate(roots []string) *Report {
	return Discover(roots)
}

// ExpandRoot expands "~" and environment variables and returns an absolute path.
func ExpandRoot(p string) (string, error) {
	p = os.ExpandEnv(strings.TrimSpace(p))
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

// isDir follows symlinks.
func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
