package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes one validation finding. Path is a dotted path into the
// config, e.g. "storage.dsn".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static checks over p and returns every finding.
// It does not mutate p.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job", "job must not be empty; it labels logs and metrics"})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if s.Kind != "" && s.Kind != "file" {
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q", s.Kind)})
		return issues
	}
	if strings.TrimSpace(s.Dir) == "" && len(s.Files) == 0 {
		issues = append(issues, Issue{SeverityError, "source", "set source.dir or source.files"})
	}
	if s.Pattern != "" {
		if _, err := filepath.Match(s.Pattern, "x.xml"); err != nil {
			issues = append(issues, Issue{SeverityError, "source.pattern", fmt.Sprintf("bad pattern: %v", err)})
		}
	}
	for i, f := range s.Files {
		if strings.TrimSpace(f) == "" {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("source.files[%d]", i), "empty path"})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	switch kind {
	case "":
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	case "postgres", "sqlite", "mssql", "mysql":
	default:
		issues = append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unsupported storage kind %q", s.Kind)})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "storage.dsn must not be empty (or set " + EnvDSN + ")"})
	}
	if kind != "postgres" {
		if s.PreserveDependencies {
			issues = append(issues, Issue{SeverityWarning, "storage.preserve_dependencies", "only postgres can preserve dependent views; ignored"})
		}
		if s.BootstrapDependencies {
			issues = append(issues, Issue{SeverityWarning, "storage.bootstrap_dependencies", "only postgres has dependency functions; ignored"})
		}
	}
	if kind == "sqlite" && s.Schema != "" {
		issues = append(issues, Issue{SeverityWarning, "storage.schema", "sqlite has no schemas; ignored"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires pushgateway_url"})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr"})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend", fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend)})
	}
	return issues
}
