// Package config defines the configuration model for a conversion run:
// where the exports come from, how they are read, where the tables go and
// which metrics backend records the run.
//
// Files are JSON or YAML (chosen by extension) with the same field names:
//
//	job: nightly
//	source:
//	  kind: file
//	  dir: /data/ffi
//	ingest:
//	  strict: false
//	storage:
//	  kind: postgres
//	  dsn: postgres://ffi@localhost/ffi
//	  schema: public
//	  preserve_dependencies: true
//	metrics:
//	  backend: pushgateway
//	  pushgateway_url: http://pushgateway:9091
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvDSN overrides storage.dsn when set, so credentials can stay out of
// config files.
const EnvDSN = "FFIETL_DSN"

// Pipeline is the top-level configuration object.
type Pipeline struct {
	// Job labels logs and metrics for the run.
	Job     string  `json:"job" yaml:"job"`
	Source  Source  `json:"source" yaml:"source"`
	Ingest  Ingest  `json:"ingest" yaml:"ingest"`
	Storage Storage `json:"storage" yaml:"storage"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Debug   Debug   `json:"debug" yaml:"debug"`
}

// Source locates the XML exports.
type Source struct {
	// Kind selects the source implementation. Current value: "file".
	Kind string `json:"kind" yaml:"kind"`
	// Dir is scanned (non-recursively) for files matching Pattern.
	Dir string `json:"dir" yaml:"dir"`
	// Pattern is a filepath.Match pattern applied to base names.
	Pattern string `json:"pattern" yaml:"pattern"`
	// Files lists exports explicitly, in addition to Dir.
	Files []string `json:"files" yaml:"files"`
}

// Ingest controls document reading.
type Ingest struct {
	// Strict rejects documents lacking any required record type.
	Strict bool `json:"strict" yaml:"strict"`
	// Force re-ingests documents already recorded in file_info.
	Force bool `json:"force" yaml:"force"`
}

// Storage selects and configures the destination database.
type Storage struct {
	// Kind is one of postgres, sqlite, mssql, mysql.
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
	// Schema qualifies table names. Ignored by sqlite.
	Schema string `json:"schema" yaml:"schema"`
	// PreserveDependencies detaches and restores dependent views while a
	// table is rebuilt with new columns. Postgres only.
	PreserveDependencies bool `json:"preserve_dependencies" yaml:"preserve_dependencies"`
	// BootstrapDependencies installs the dependency functions before the
	// run. Postgres only.
	BootstrapDependencies bool `json:"bootstrap_dependencies" yaml:"bootstrap_dependencies"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is one of none, pushgateway, datadog.
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
	// Namespace prefixes Datadog metric names.
	Namespace string `json:"namespace" yaml:"namespace"`
}

// Debug holds troubleshooting switches.
type Debug struct {
	// DumpDir, when set, receives a CSV dump of every record and staging
	// table of each document.
	DumpDir string `json:"dump_dir" yaml:"dump_dir"`
}

// Load reads a JSON or YAML pipeline file, applies the FFIETL_DSN override
// and fills defaults. It does not validate.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &p)
	default:
		err = json.Unmarshal(raw, &p)
	}
	if err != nil {
		return p, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		p.Storage.DSN = dsn
	}
	p.Defaults()
	return p, nil
}

// Defaults fills zero values.
func (p *Pipeline) Defaults() {
	if p.Job == "" {
		p.Job = "ffietl"
	}
	if p.Source.Kind == "" {
		p.Source.Kind = "file"
	}
	if p.Source.Pattern == "" {
		p.Source.Pattern = "*.xml"
	}
	if p.Storage.Schema == "" {
		switch strings.ToLower(p.Storage.Kind) {
		case "postgres":
			p.Storage.Schema = "public"
		case "mssql":
			p.Storage.Schema = "dbo"
		}
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
}
