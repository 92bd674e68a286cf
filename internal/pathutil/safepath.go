// Package pathutil resolves user-supplied data file locations and keeps them
// inside the liferpg data directory.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath   = errors.New("path is empty or whitespace-only")
	ErrNullByte    = errors.New("path contains null byte")
	ErrEscapesBase = errors.New("path escapes data directory")
)

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ResolveSafePath resolves userPath against baseDir and returns the absolute,
// symlink-free location. Relative paths are joined to baseDir; absolute ones
// are accepted only if they already point inside it. Neither the file nor
// baseDir has to exist yet.
func ResolveSafePath(baseDir, userPath string) (string, error) {
	if strings.TrimSpace(userPath) == "" {
		return "", ErrEmptyPath
	}
	if strings.ContainsRune(userPath, 0) || strings.ContainsRune(baseDir, 0) {
		return "", ErrNullByte
	}

	userPath, err := ExpandHome(userPath)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(userPath) {
		userPath = filepath.Join(baseDir, userPath)
	}

	resolved, err := resolveExisting(userPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", userPath, err)
	}
	base, err := resolveExisting(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesBase, userPath)
	}
	return resolved, nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and re-attaches the missing tail unchanged.
func resolveExisting(path string) (string, error) {
	current, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing parent directory for %s", path)
		}
		tail = append(tail, filepath.Base(current))
		current = parent
	}
}
