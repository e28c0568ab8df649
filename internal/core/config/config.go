package config

import (
	"time"
)

const (
	DefaultFile        = "symtree.toml"
	DefaultExampleFile = "symtree.example.toml"
)

type Config struct {
	Version       int           `toml:"version"`
	ScanPaths     []string      `toml:"scan_paths"`
	Paths         Paths         `toml:"paths"`
	Exclude       Exclude       `toml:"exclude"`
	Languages     Languages     `toml:"languages"`
	Parser        Parser        `toml:"parser"`
	Batch         Batch         `toml:"batch"`
	DB            Database      `toml:"db"`
	Output        Output        `toml:"output"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
}

// Exclude patterns are gobwas globs matched against base names.
type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Languages struct {
	Python Python `toml:"python"`
}

type Python struct {
	Extensions   []string `toml:"extensions"`
	IncludeTests bool     `toml:"include_tests"`
}

type Parser struct {
	LenientEscapes   bool `toml:"lenient_escapes"`
	VerifyTreeSitter bool `toml:"verify_tree_sitter"`
}

type Batch struct {
	Workers           int     `toml:"workers"`
	FailFast          bool    `toml:"fail_fast"`
	MaxFilesPerSecond float64 `toml:"max_files_per_second"`
}

type Database struct {
	Enabled     *bool         `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

func (d Database) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Output names the report files; an empty name disables that report.
type Output struct {
	JSON     string      `toml:"json"`
	TSV      string      `toml:"tsv"`
	Mermaid  string      `toml:"mermaid"`
	PlantUML string      `toml:"plantuml"`
	DOT      string      `toml:"dot"`
	Paths    OutputPaths `toml:"paths"`
}

type OutputPaths struct {
	Root string `toml:"root"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}
