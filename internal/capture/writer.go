package capture

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// notComputed is written where a truncated capture left the transition time
// undefined. Distinguishable from a measured zero on purpose.
const notComputed = "not computed"

// WriteAnalysisCSV writes the per-capture Parameter,Value report, followed by
// a bounce-region table when any bounce was detected.
func WriteAnalysisCSV(w io.Writer, source string, analyzedAt time.Time, res waveform.Result) error {
	cw := csv.NewWriter(w)

	transitionTime := notComputed
	if res.TransitionTimeValid {
		transitionTime = formatMs(res.TransitionTime)
	}

	rows := [][]string{
		{"Parameter", "Value"},
		{"Source File", source},
		{"Analysis Time", analyzedAt.UTC().Format(time.RFC3339)},
		{"Transition Type", string(res.Type)},
		{"Transition Time (ms)", transitionTime},
		{"Bounce Count", strconv.Itoa(res.BounceCount)},
		{"Bounce Duration (ms)", formatMs(res.BounceDuration)},
		{"Start Voltage (V)", formatV(res.StartVoltage)},
		{"End Voltage (V)", formatV(res.EndVoltage)},
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("analysis csv: %w", err)
		}
	}

	if len(res.Regions) > 0 {
		extra := [][]string{
			{},
			{"Bounce Regions"},
			{"Start (s)", "End (s)", "Crossings", "Duration (ms)"},
		}
		for _, r := range res.Regions {
			extra = append(extra, []string{
				strconv.FormatFloat(r.Start, 'g', -1, 64),
				strconv.FormatFloat(r.End, 'g', -1, 64),
				strconv.Itoa(r.Crossings),
				formatMs(r.Duration()),
			})
		}
		for _, row := range extra {
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("analysis csv: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// SummaryWriter accumulates one row per analyzed capture and writes the run
// summary CSV consumed by the test platform.
type SummaryWriter struct {
	rows [][]string
}

// NewSummaryWriter creates an empty SummaryWriter.
func NewSummaryWriter() *SummaryWriter {
	return &SummaryWriter{}
}

// Add records one analyzed capture. A result without a valid transition time
// gets an empty transition_time_ms cell.
func (s *SummaryWriter) Add(source string, res waveform.Result) {
	transitionTime := ""
	if res.TransitionTimeValid {
		transitionTime = formatMs(res.TransitionTime)
	}
	s.rows = append(s.rows, []string{
		source,
		string(res.Type),
		transitionTime,
		strconv.Itoa(res.BounceCount),
		formatMs(res.BounceDuration),
	})
}

// Len returns the number of recorded rows.
func (s *SummaryWriter) Len() int {
	return len(s.rows)
}

// Write emits the summary with its header row.
func (s *SummaryWriter) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"filename", "type", "transition_time_ms", "bounce_count", "bounce_duration_ms"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("summary csv: %w", err)
	}
	for _, row := range s.rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("summary csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatMs(seconds float64) string {
	return strconv.FormatFloat(seconds*1000, 'f', 6, 64)
}

func formatV(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
