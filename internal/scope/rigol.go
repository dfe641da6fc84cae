package scope

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// triggerPoll is how often Acquire checks the trigger status.
const triggerPoll = 50 * time.Millisecond

// RigolSource acquires waveforms from a Rigol DS1000-series oscilloscope
// over its SCPI TCP port.
type RigolSource struct {
	conn    net.Conn
	r       *bufio.Reader
	addr    string
	channel int
	timeout time.Duration
}

// DialRigol connects to the oscilloscope and verifies it identifies as a
// Rigol instrument. channel selects the probe channel to read (1-4).
func DialRigol(addr string, channel int, timeout time.Duration) (*RigolSource, error) {
	if channel < 1 || channel > 4 {
		return nil, fmt.Errorf("scope: channel %d out of range 1-4", channel)
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("scope: dial %s: %w", addr, err)
	}

	s := &RigolSource{
		conn:    conn,
		r:       bufio.NewReader(conn),
		addr:    addr,
		channel: channel,
		timeout: timeout,
	}

	idn, err := s.query("*IDN?")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("scope: identify %s: %w", addr, err)
	}
	if !strings.Contains(strings.ToUpper(idn), "RIGOL") {
		conn.Close()
		return nil, fmt.Errorf("scope: device at %s is not a Rigol oscilloscope: %q", addr, idn)
	}

	return s, nil
}

// Arm configures the waveform readout and starts a single-shot acquisition.
func (s *RigolSource) Arm(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmds := []string{
		fmt.Sprintf(":WAV:SOUR CHAN%d", s.channel),
		":WAV:MODE NORM",
		":WAV:FORM ASC",
		":SINGle",
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("scope: arm: %w", err)
		}
	}
	return nil
}

// Acquire waits for the scope to trigger and stop, then reads the captured
// waveform and converts it to time/voltage samples.
func (s *RigolSource) Acquire(ctx context.Context) (waveform.Capture, error) {
	if err := s.waitForStop(ctx); err != nil {
		return nil, err
	}

	pre, err := s.query(":WAV:PRE?")
	if err != nil {
		return nil, fmt.Errorf("scope: read preamble: %w", err)
	}
	xinc, xorigin, err := parsePreamble(pre)
	if err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}

	data, err := s.query(":WAV:DATA?")
	if err != nil {
		return nil, fmt.Errorf("scope: read waveform: %w", err)
	}
	volts, err := parseASCIIBlock(data)
	if err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}

	c := make(waveform.Capture, len(volts))
	for i, v := range volts {
		c[i] = waveform.Sample{T: xorigin + float64(i)*xinc, V: v}
	}
	return c, nil
}

// Close releases the TCP connection.
func (s *RigolSource) Close() error {
	return s.conn.Close()
}

// waitForStop polls the trigger status until the acquisition completed.
func (s *RigolSource) waitForStop(ctx context.Context) error {
	deadline := time.Now().Add(s.timeout)
	for {
		status, err := s.query(":TRIGger:STATus?")
		if err != nil {
			return fmt.Errorf("scope: trigger status: %w", err)
		}
		if strings.EqualFold(strings.TrimSpace(status), "STOP") {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("scope: acquisition did not trigger within %v (status %q)", s.timeout, status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(triggerPoll):
		}
	}
}

func (s *RigolSource) send(cmd string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	return nil
}

func (s *RigolSource) query(cmd string) (string, error) {
	if err := s.send(cmd); err != nil {
		return "", err
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", err
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply to %q: %w", cmd, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parsePreamble extracts the x-increment and x-origin from the ten-field
// :WAV:PRE? reply (format,type,points,count,xinc,xorig,xref,yinc,yorig,yref).
func parsePreamble(pre string) (xinc, xorigin float64, err error) {
	fields := strings.Split(strings.TrimSpace(pre), ",")
	if len(fields) < 7 {
		return 0, 0, fmt.Errorf("preamble has %d fields, want 10: %q", len(fields), pre)
	}
	xinc, err = strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("preamble x-increment %q: %w", fields[4], err)
	}
	if xinc <= 0 {
		return 0, 0, fmt.Errorf("preamble x-increment %v must be positive", xinc)
	}
	xorigin, err = strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("preamble x-origin %q: %w", fields[5], err)
	}
	return xinc, xorigin, nil
}

// parseASCIIBlock parses a :WAV:DATA? ASCII reply. The payload is prefixed
// with a TMC block header (`#` + length digit + payload length) followed by
// comma-separated voltages.
func parseASCIIBlock(data string) ([]float64, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("empty waveform data")
	}
	if strings.HasPrefix(data, "#") {
		if len(data) < 2 {
			return nil, fmt.Errorf("truncated TMC header %q", data)
		}
		n := int(data[1] - '0')
		if n < 0 || n > 9 || len(data) < 2+n {
			return nil, fmt.Errorf("bad TMC header %q", data[:2])
		}
		data = data[2+n:]
	}

	parts := strings.Split(data, ",")
	volts := make([]float64, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("waveform value %d %q: %w", i, p, err)
		}
		volts = append(volts, v)
	}
	if len(volts) == 0 {
		return nil, fmt.Errorf("waveform data contained no values")
	}
	return volts, nil
}
