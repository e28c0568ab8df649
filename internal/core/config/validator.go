package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

const currentVersion = 1

// Validate reports every problem found in cfg; nil means valid.
func Validate(cfg *Config) []error {
	var errs []error

	if err := validateVersion(cfg); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateExclude(cfg)...)
	if err := validateLanguages(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateBatch(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateDatabase(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutput(cfg); err != nil {
		errs = append(errs, err)
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce))
	}
	errs = append(errs, validatePaths(cfg)...)
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 || cfg.Version > currentVersion {
		return fmt.Errorf("unsupported config version %d (supported: 1)", cfg.Version)
	}
	return nil
}

func validateExclude(cfg *Config) []error {
	var errs []error
	check := func(section string, patterns []string) {
		for i, pattern := range patterns {
			if strings.TrimSpace(pattern) == "" {
				errs = append(errs, fmt.Errorf("exclude.%s[%d] must not be empty", section, i))
				continue
			}
			if _, err := glob.Compile(pattern); err != nil {
				errs = append(errs, fmt.Errorf("exclude.%s[%d] %q is not a valid glob: %v", section, i, pattern, err))
			}
		}
	}
	check("dirs", cfg.Exclude.Dirs)
	check("files", cfg.Exclude.Files)
	return errs
}

func validateLanguages(cfg *Config) error {
	for i, ext := range cfg.Languages.Python.Extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("languages.python.extensions[%d] %q is not a file extension", i, ext)
		}
	}
	return nil
}

func validateBatch(cfg *Config) error {
	if cfg.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1, got %d", cfg.Batch.Workers)
	}
	if cfg.Batch.MaxFilesPerSecond < 0 {
		return fmt.Errorf("batch.max_files_per_second must be >= 0, got %g", cfg.Batch.MaxFilesPerSecond)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.IsEnabled() {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path is required when db is enabled")
	}
	return nil
}

func validateOutput(cfg *Config) error {
	seen := make(map[string]string)
	targets := []struct{ key, value string }{
		{"output.json", cfg.Output.JSON},
		{"output.tsv", cfg.Output.TSV},
		{"output.mermaid", cfg.Output.Mermaid},
		{"output.plantuml", cfg.Output.PlantUML},
		{"output.dot", cfg.Output.DOT},
	}
	for _, target := range targets {
		path := strings.TrimSpace(target.value)
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		if prev, ok := seen[clean]; ok {
			return fmt.Errorf("output conflict: %s and %s share the same path %q", prev, target.key, path)
		}
		seen[clean] = target.key
	}
	return nil
}

func validatePaths(cfg *Config) []error {
	var errs []error
	for i, path := range cfg.ScanPaths {
		if strings.TrimSpace(path) == "" {
			errs = append(errs, fmt.Errorf("scan_paths[%d] must not be empty", i))
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("scan_paths[%d] %q does not exist", i, path))
		}
	}
	return errs
}
