package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies SYMTREE_[SECTION]_[KEY] environment variables,
// e.g. SYMTREE_BATCH_WORKERS=4.
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Paths.ProjectRoot, "SYMTREE_PATHS_PROJECT_ROOT")

	setEnvBool(&cfg.Parser.LenientEscapes, "SYMTREE_PARSER_LENIENT_ESCAPES")
	setEnvBool(&cfg.Parser.VerifyTreeSitter, "SYMTREE_PARSER_VERIFY_TREE_SITTER")

	setEnvInt(&cfg.Batch.Workers, "SYMTREE_BATCH_WORKERS")
	setEnvBool(&cfg.Batch.FailFast, "SYMTREE_BATCH_FAIL_FAST")
	setEnvFloat64(&cfg.Batch.MaxFilesPerSecond, "SYMTREE_BATCH_MAX_FILES_PER_SECOND")

	if val, ok := os.LookupEnv("SYMTREE_DB_ENABLED"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			logOverride("SYMTREE_DB_ENABLED", val)
			cfg.DB.Enabled = &b
		}
	}
	setEnvString(&cfg.DB.Path, "SYMTREE_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "SYMTREE_DB_BUSY_TIMEOUT")

	setEnvDuration(&cfg.Watch.Debounce, "SYMTREE_WATCH_DEBOUNCE")

	setEnvString(&cfg.Observability.MetricsAddr, "SYMTREE_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "SYMTREE_OBSERVABILITY_OTLP_ENDPOINT")
}

func logOverride(key, val string) {
	slog.Debug("applying env override", "key", key, "value", val)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		logOverride(key, val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			logOverride(key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			logOverride(key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			logOverride(key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			logOverride(key, val)
			*target = d
		}
	}
}
