package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/skillforge/internal/skill"
)

func newSkillsCmd(a *app) *cobra.Command {
	var skillDirs []string
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Manage local Agent Skills (SKILL.md folders)",
	}
	cmd.PersistentFlags().StringArrayVar(&skillDirs, "skill-dir", nil, "additional skill root to scan (repeatable)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List discovered skills",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.listSkills(skillDirs)
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate skill frontmatter and naming",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.validateSkills(skillDirs)
		},
	}

	var head int
	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one skill's frontmatter and a body preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.showSkill(args[0], skillDirs, head)
		},
	}
	show.Flags().IntVar(&head, "head", 80, "print the first N lines of the body")

	cmd.AddCommand(list, validate, show)
	return cmd
}

func (a *app) listSkills(skillDirs []string) error {
	report := skill.Discover(a.cfg.SkillRoots(skillDirs...))
	summaries := report.Index().Compact()

	fmt.Fprintf(a.out, "Discovered Skills (%d)\n\n", len(summaries))
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(a.out)
		printList(a.out, "Validation issues:", report.Errors)
	}
	return nil
}

func (a *app) validateSkills(skillDirs []string) error {
	report := skill.Validate(a.cfg.SkillRoots(skillDirs...))
	if len(report.Errors) > 0 {
		printList(a.errOut, fmt.Sprintf("Skill validation failed. Found %d issue(s):", len(report.Errors)), report.Errors)
		return &exitError{code: 1}
	}
	fmt.Fprintf(a.out, "OK. Valid skills: %d\nRoots scanned: %s\n",
		len(report.Skills), strings.Join(report.RootsScanned, ", "))
	return nil
}

func (a *app) showSkill(name string, skillDirs []string, head int) error {
	index := skill.Discover(a.cfg.SkillRoots(skillDirs...)).Index()
	ref, ok := index.Get(name)
	if !ok {
		fmt.Fprintf(a.errOut, "Skill not found: %s\n", name)
		return &exitError{code: 2}
	}

	body, err := index.LoadBody(name)
	if err != nil {
		return err
	}

	var fm strings.Builder
	enc := json.NewEncoder(&fm)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ref.Declaration); err != nil {
		return fmt.Errorf("encode frontmatter: %w", err)
	}

	lines := strings.Split(body, "\n")
	if head >= 0 && len(lines) > head {
		lines = lines[:head]
	}

	fmt.Fprintf(a.out, "== frontmatter ==\n%s\n== body (preview) ==\n%s\n", fm.String(), strings.Join(lines, "\n"))
	return nil
}
