package nagios

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// cachedReport is the on-disk representation of a run's health report.
type cachedReport struct {
	ReportedAt time.Time `json:"reported_at"`
	ExitCode   int       `json:"exit_code"`
	Result     Result    `json:"result"`
}

// Reporter caches exactly one health report per run as a gzip-compressed
// JSON file, and renders the cached report on the monitoring read path.
type Reporter struct {
	header    string
	path      string
	threshold time.Duration

	now func() time.Time
}

// NewReporter creates a reporter writing to path. A cached report older
// than threshold is considered stale on the read path.
func NewReporter(header, path string, threshold time.Duration) *Reporter {
	return &Reporter{
		header:    header,
		path:      path,
		threshold: threshold,
		now:       time.Now,
	}
}

// Cache writes the report atomically, replacing any previous report.
func (r *Reporter) Cache(code int, result Result) error {
	report := cachedReport{
		ReportedAt: r.now().UTC(),
		ExitCode:   code,
		Result:     result,
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return fmt.Errorf("failed to create report cache directory: %w", err)
	}

	tempPath := r.path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}

	zw := gzip.NewWriter(f)
	encodeErr := json.NewEncoder(zw).Encode(&report)
	if err := zw.Close(); err != nil && encodeErr == nil {
		encodeErr = err
	}
	if err := f.Close(); err != nil && encodeErr == nil {
		encodeErr = err
	}
	if encodeErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write report: %w", encodeErr)
	}

	if err := os.Rename(tempPath, r.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}
	return nil
}

// Report writes the cached report as a plugin line and returns the exit
// code the monitoring check should use. A missing, unreadable or stale
// cache degrades to UNKNOWN.
func (r *Reporter) Report(w io.Writer) int {
	report, err := r.load()
	if err != nil {
		WritePluginLine(w, r.header, ExitUnknown, Result{
			Message: fmt.Sprintf("cannot read cached report: %v", err),
		})
		return ExitUnknown
	}

	if age := r.now().Sub(report.ReportedAt); age > r.threshold {
		WritePluginLine(w, r.header, ExitUnknown, Result{
			Message: fmt.Sprintf("cached report is too old (%s, threshold %s)",
				age.Truncate(time.Second), r.threshold),
		})
		return ExitUnknown
	}

	WritePluginLine(w, r.header, report.ExitCode, report.Result)
	return report.ExitCode
}

func (r *Reporter) load() (*cachedReport, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("corrupt report cache: %w", err)
	}
	defer zr.Close()

	var report cachedReport
	if err := json.NewDecoder(zr).Decode(&report); err != nil {
		return nil, fmt.Errorf("corrupt report cache: %w", err)
	}
	return &report, nil
}
