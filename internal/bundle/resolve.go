package bundle

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

var (
	// ErrUnresolvedImport is returned when a hidden import cannot be found
	// in any search path.
	ErrUnresolvedImport = errors.New("unable to resolve hidden import")
	// ErrUnresolvedHook is returned when a runtime hook cannot be found in
	// any hook or search path.
	ErrUnresolvedHook = errors.New("unable to resolve runtime hook")
)

const (
	// importPrefix is the payload directory for resolved hidden imports.
	importPrefix = "modules"
	// hookPrefix is the payload directory for resolved runtime hooks.
	hookPrefix = "hooks"
)

// ResolveImports locates each hidden import in the search paths, first match
// wins. The result maps payload paths to source paths.
func ResolveImports(imports, searchPaths []string) (map[string]string, error) {
	resolved := make(map[string]string, len(imports))

	for _, name := range imports {
		source, found := probe(name, searchPaths)
		if !found {
			return nil, fmt.Errorf("%s: %w", name, ErrUnresolvedImport)
		}

		resolved[path.Join(importPrefix, filepath.ToSlash(name))] = source
	}

	return resolved, nil
}

// ResolveHooks locates each runtime hook, probing hook paths before search
// paths. The returned payload paths preserve the declared hook order.
func ResolveHooks(hooks, hookPaths, searchPaths []string) ([]string, map[string]string, error) {
	ordered := make([]string, 0, len(hooks))
	resolved := make(map[string]string, len(hooks))

	for _, name := range hooks {
		source, found := probe(name, append(append([]string(nil), hookPaths...), searchPaths...))
		if !found {
			return nil, nil, fmt.Errorf("%s: %w", name, ErrUnresolvedHook)
		}

		payloadPath := path.Join(hookPrefix, filepath.ToSlash(name))
		ordered = append(ordered, payloadPath)
		resolved[payloadPath] = source
	}

	return ordered, resolved, nil
}

// ApplyExcludes removes entries whose payload path or base name matches any
// of the glob patterns. Invalid patterns are reported as errors.
func ApplyExcludes(files map[string]string, patterns []string) (map[string]string, error) {
	if len(patterns) == 0 {
		return files, nil
	}

	kept := make(map[string]string, len(files))

	for payloadPath, source := range files {
		excluded, err := matchesAny(payloadPath, patterns)
		if err != nil {
			return nil, err
		}

		if !excluded {
			kept[payloadPath] = source
		}
	}

	return kept, nil
}

// matchesAny reports whether the payload path or its base matches a pattern.
func matchesAny(payloadPath string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		full, err := path.Match(pattern, payloadPath)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}

		base, err := path.Match(pattern, path.Base(payloadPath))
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}

		if full || base {
			return true, nil
		}
	}

	return false, nil
}

// probe returns the first directory in dirs containing name as a regular file.
func probe(name string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, filepath.FromSlash(name))

		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}

		return candidate, true
	}

	return "", false
}
