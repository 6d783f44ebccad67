// Package nagios caches a per-run health report for consumption by an
// external monitoring poller, and renders cached reports as standard
// monitoring-plugin output.
package nagios

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Monitoring-plugin exit codes.
const (
	ExitOK       = 0
	ExitWarning  = 1
	ExitCritical = 2
	ExitUnknown  = 3
)

var statusText = map[int]string{
	ExitOK:       "OK",
	ExitWarning:  "WARNING",
	ExitCritical: "CRITICAL",
	ExitUnknown:  "UNKNOWN",
}

// StatusText returns the plugin status label for an exit code.
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "UNKNOWN"
}

// Metric is a single perfdata value with optional warning and critical
// thresholds.
type Metric struct {
	Value int `json:"value"`
	Warn  int `json:"warn,omitempty"`
	Crit  int `json:"crit,omitempty"`
}

// Result is the structured outcome of a run: a human-readable message plus
// perfdata metrics.
type Result struct {
	Message string            `json:"message"`
	Metrics map[string]Metric `json:"metrics,omitempty"`
}

// SetMetric records a plain metric without thresholds.
func (r *Result) SetMetric(name string, value int) {
	r.setMetric(name, Metric{Value: value})
}

// SetThresholdMetric records a metric with warning and critical thresholds.
func (r *Result) SetThresholdMetric(name string, value, warn, crit int) {
	r.setMetric(name, Metric{Value: value, Warn: warn, Crit: crit})
}

func (r *Result) setMetric(name string, m Metric) {
	if r.Metrics == nil {
		r.Metrics = make(map[string]Metric)
	}
	r.Metrics[name] = m
}

// renderPerfdata renders the metrics in deterministic order.
func (r *Result) renderPerfdata() string {
	if len(r.Metrics) == 0 {
		return ""
	}
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		m := r.Metrics[name]
		if m.Warn == 0 && m.Crit == 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", name, m.Value))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%d;%d;%d", name, m.Value, m.Warn, m.Crit))
		}
	}
	return strings.Join(parts, " ")
}

// WritePluginLine writes the single-line plugin output for a report:
// "HEADER STATUS - message | perfdata".
func WritePluginLine(w io.Writer, header string, code int, result Result) {
	line := fmt.Sprintf("%s %s - %s", header, StatusText(code), result.Message)
	if perfdata := result.renderPerfdata(); perfdata != "" {
		line += " | " + perfdata
	}
	fmt.Fprintln(w, line)
}
