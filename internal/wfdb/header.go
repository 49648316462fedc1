// Package wfdb reads PhysioNet WFDB records (a .hea header plus one or more
// sample files) into a record.Matrix.
package wfdb

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	defaultFrequency = 250.0
	defaultGain      = 200.0
	defaultUnits     = "mV"
)

// Header is a parsed single-segment record header.
type Header struct {
	Name       string
	NumSignals int
	Frequency  float64
	NumSamples int // 0 when the header omits it
	BaseTime   string
	BaseDate   string
	Signals    []SignalSpec
	Comments   []string
}

// SignalSpec is one signal line of a header.
type SignalSpec struct {
	File        string
	Format      int
	Offset      int64
	Gain        float64
	Baseline    int
	Units       string
	ADCRes      int
	ADCZero     int
	InitValue   int
	Description string
}

// ParseHeader reads a header. Multi-segment headers are rejected.
func ParseHeader(r io.Reader) (*Header, error) {
	sc := bufio.NewScanner(r)
	h := &Header{}
	gotRecord := false

	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			h.Comments = append(h.Comments, strings.TrimSpace(strings.TrimPrefix(line, "#")))
			continue
		}
		// Trailing comments on data lines are allowed.
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		if !gotRecord {
			if err := parseRecordLine(line, h); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			gotRecord = true
			continue
		}

		if len(h.Signals) == h.NumSignals {
			// Info lines after the signal block carry nothing we read.
			continue
		}
		spec, err := parseSignalLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		h.Signals = append(h.Signals, spec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !gotRecord {
		return nil, fmt.Errorf("header has no record line")
	}
	if len(h.Signals) != h.NumSignals {
		return nil, fmt.Errorf("header declares %d signals but describes %d", h.NumSignals, len(h.Signals))
	}
	return h, nil
}

func parseRecordLine(line string, h *Header) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("record line needs a name and a signal count: %q", line)
	}

	h.Name = fields[0]
	if strings.Contains(h.Name, "/") {
		return fmt.Errorf("multi-segment record '%s' is not supported", h.Name)
	}

	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return fmt.Errorf("invalid signal count %q", fields[1])
	}
	if n == 0 {
		return fmt.Errorf("record '%s' has no signals", h.Name)
	}
	h.NumSignals = n

	h.Frequency = defaultFrequency
	if len(fields) > 2 {
		fs, err := leadingFloat(fields[2])
		if err != nil || fs <= 0 {
			return fmt.Errorf("invalid sampling frequency %q", fields[2])
		}
		h.Frequency = fs
	}
	if len(fields) > 3 {
		ns, err := strconv.Atoi(fields[3])
		if err != nil || ns < 0 {
			return fmt.Errorf("invalid sample count %q", fields[3])
		}
		h.NumSamples = ns
	}
	if len(fields) > 4 {
		h.BaseTime = fields[4]
	}
	if len(fields) > 5 {
		h.BaseDate = fields[5]
	}
	return nil
}

func parseSignalLine(line string) (SignalSpec, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return SignalSpec{}, fmt.Errorf("signal line needs a file name and a format: %q", line)
	}

	spec := SignalSpec{
		File:  fields[0],
		Gain:  defaultGain,
		Units: defaultUnits,
	}

	format, offset, err := parseFormat(fields[1])
	if err != nil {
		return SignalSpec{}, err
	}
	spec.Format = format
	spec.Offset = offset

	baselineSet := false
	if len(fields) > 2 {
		gain, baseline, hasBaseline, units, err := parseGain(fields[2])
		if err != nil {
			return SignalSpec{}, err
		}
		if gain != 0 {
			spec.Gain = gain
		}
		if units != "" {
			spec.Units = units
		}
		spec.Baseline = baseline
		baselineSet = hasBaseline
	}

	ints := []*int{&spec.ADCRes, &spec.ADCZero, &spec.InitValue}
	for i, target := range ints {
		if len(fields) <= 3+i {
			break
		}
		v, err := strconv.Atoi(fields[3+i])
		if err != nil {
			return SignalSpec{}, fmt.Errorf("invalid integer field %q", fields[3+i])
		}
		*target = v
	}
	if !baselineSet {
		spec.Baseline = spec.ADCZero
	}

	// Fields 6 and 7 are checksum and block size; the rest is the description.
	if len(fields) > 8 {
		spec.Description = strings.Join(fields[8:], " ")
	}
	return spec, nil
}

// parseFormat handles "212", "16+512", "16:3" and rejects "16x2".
func parseFormat(s string) (format int, offset int64, err error) {
	body := s
	if i := strings.Index(body, "+"); i >= 0 {
		offset, err = strconv.ParseInt(body[i+1:], 10, 64)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid byte offset in %q", s)
		}
		body = body[:i]
	}
	if i := strings.Index(body, ":"); i >= 0 {
		body = body[:i]
	}
	if strings.Contains(body, "x") {
		return 0, 0, fmt.Errorf("multi-frequency signals are not supported: %q", s)
	}
	format, err = strconv.Atoi(body)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid format %q", s)
	}
	if _, ok := codecs[format]; !ok {
		return 0, 0, fmt.Errorf("unsupported storage format %d", format)
	}
	return format, offset, nil
}

// parseGain handles "200", "200/mV", "200(0)/mV" and "200(-12)".
func parseGain(s string) (gain float64, baseline int, hasBaseline bool, units string, err error) {
	body := s
	if i := strings.Index(body, "/"); i >= 0 {
		units = body[i+1:]
		body = body[:i]
	}
	if i := strings.Index(body, "("); i >= 0 {
		j := strings.Index(body, ")")
		if j < i {
			return 0, 0, false, "", fmt.Errorf("invalid baseline in %q", s)
		}
		baseline, err = strconv.Atoi(body[i+1 : j])
		if err != nil {
			return 0, 0, false, "", fmt.Errorf("invalid baseline in %q", s)
		}
		hasBaseline = true
		body = body[:i]
	}
	gain, err = strconv.ParseFloat(body, 64)
	if err != nil {
		return 0, 0, false, "", fmt.Errorf("invalid gain %q", s)
	}
	return gain, baseline, hasBaseline, units, nil
}

func leadingFloat(s string) (float64, error) {
	end := len(s)
	for i, r := range s {
		if r == '/' || r == '(' {
			end = i
			break
		}
	}
	return strconv.ParseFloat(s[:end], 64)
}
