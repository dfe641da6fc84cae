// Package capture loads waveform captures from CSV and serializes analysis
// results for downstream tools. The two-column capture format and the output
// schemas here are what other bench tooling parses — treat them as stable.
package capture

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// Header is the expected first line of a capture CSV.
const Header = "Time (s),Voltage (V)"

// SummaryFileName is the fixed name of the run summary CSV.
const SummaryFileName = "relay_response_summary.csv"

// Load reads a two-column capture CSV (header then one `time,voltage` row
// per sample, decimal text). Malformed rows are an error naming the line.
func Load(r io.Reader) (waveform.Capture, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("capture: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("capture: read header: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(header[0]), "Time") {
		return nil, fmt.Errorf("capture: unexpected header %q, want %q", strings.Join(header, ","), Header)
	}

	var c waveform.Capture
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("capture: line %d: %w", line, err)
		}

		t, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("capture: line %d: bad time %q", line, rec[0])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("capture: line %d: bad voltage %q", line, rec[1])
		}
		c = append(c, waveform.Sample{T: t, V: v})
	}

	if len(c) == 0 {
		return nil, fmt.Errorf("capture: no samples")
	}
	return c, nil
}

// LoadFile reads a capture CSV from disk.
func LoadFile(path string) (waveform.Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// Save writes a capture in the same two-column format Load reads.
func Save(w io.Writer, c waveform.Capture) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time (s)", "Voltage (V)"}); err != nil {
		return fmt.Errorf("capture: write header: %w", err)
	}
	for _, s := range c {
		rec := []string{
			strconv.FormatFloat(s.T, 'g', -1, 64),
			strconv.FormatFloat(s.V, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("capture: write sample: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AnalysisFileName derives the per-capture analysis CSV name from the source
// capture name: `relay_rising.csv` becomes `relay_rising_analysis.csv`.
// Names are fixed (no timestamps) so downstream ingestion can rely on them.
func AnalysisFileName(source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_analysis.csv"
}
