package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

// resolveInWorkspace maps a generated relative path onto the workspace.
// Absolute paths and paths that climb out of the workspace are rejected.
func resolveInWorkspace(workspace, rel string) (string, string, error) {
	if rel == "" {
		return "", "", fmt.Errorf("empty path: %w", perrors.ErrInvalidInput)
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", "", fmt.Errorf("absolute path %q: %w", rel, perrors.ErrInvalidInput)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %q escapes workspace: %w", rel, perrors.ErrInvalidInput)
	}
	return filepath.Join(workspace, clean), filepath.ToSlash(clean), nil
}

// writeFile creates parent directories and overwrites any existing file.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
