package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	ScanPaths   []string
	DBPath      string
	OutputRoot  string
}

// ResolvePaths makes every configured path absolute. The project root is
// paths.project_root when set, otherwise the nearest ancestor of the first
// scan path that holds a project marker.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		candidates := make([]string, 0, len(cfg.ScanPaths)+1)
		for _, p := range cfg.ScanPaths {
			candidates = append(candidates, ResolveRelative(cwd, p))
		}
		root, err := DetectProjectRoot(append(candidates, cwd))
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	scan := make([]string, 0, len(cfg.ScanPaths))
	for _, p := range cfg.ScanPaths {
		scan = append(scan, ResolveRelative(cwd, p))
	}

	outputRoot := strings.TrimSpace(cfg.Output.Paths.Root)
	if outputRoot == "" {
		outputRoot = projectRoot
	} else {
		outputRoot = ResolveRelative(projectRoot, outputRoot)
	}

	return ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		ScanPaths:   scan,
		DBPath:      ResolveRelative(projectRoot, cfg.DB.Path),
		OutputRoot:  filepath.Clean(outputRoot),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

var projectMarkers = []string{
	DefaultFile,
	"pyproject.toml",
	"setup.py",
	"setup.cfg",
	".git",
}

// DetectProjectRoot walks up from each candidate until a directory holding a
// project marker is found. It falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range projectMarkers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
