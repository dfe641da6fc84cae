// Package scope provides waveform acquisition with hardware abstraction.
// The real implementation talks SCPI to a Rigol oscilloscope over TCP.
// The fake implementation allows testing without an instrument.
package scope

import (
	"context"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// Source acquires transition captures from an oscilloscope.
type Source interface {
	// Arm prepares a single-shot acquisition. Call before switching the
	// relay under test so the transition lands inside the capture.
	Arm(ctx context.Context) error

	// Acquire waits for the armed acquisition to trigger and returns the
	// full capture. The capture is materialized before return; there is no
	// streaming contract.
	Acquire(ctx context.Context) (waveform.Capture, error)

	// Close releases the connection to the instrument.
	Close() error
}

// DefaultPort is the SCPI port Rigol scopes listen on.
const DefaultPort = 5555
