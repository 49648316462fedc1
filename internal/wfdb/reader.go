package wfdb

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/audiolibrelab/headat/internal/record"
)

// ReadError wraps any failure to turn a record stem into samples.
type ReadError struct {
	Stem string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read record '%s': %v", e.Stem, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Reader implements record.Reader for WFDB records on local disk.
type Reader struct {
	logger *slog.Logger
}

func NewReader() *Reader {
	return &Reader{logger: slog.Default().With("component", "wfdb.reader")}
}

var _ record.Reader = (*Reader)(nil)

// Read loads <stem>.hea and the sample files it names. Sample files are
// resolved relative to the header's directory. Values are converted to
// physical units; invalid samples become NaN.
func (r *Reader) Read(stem string) (*record.Matrix, *record.Metadata, error) {
	m, md, err := r.read(stem)
	if err != nil {
		return nil, nil, &ReadError{Stem: stem, Err: err}
	}
	return m, md, nil
}

func (r *Reader) read(stem string) (*record.Matrix, *record.Metadata, error) {
	f, err := os.Open(stem + ".hea")
	if err != nil {
		return nil, nil, err
	}
	h, err := ParseHeader(f)
	f.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid header: %w", err)
	}

	dir := filepath.Dir(stem)
	groups, order, err := groupByFile(h.Signals)
	if err != nil {
		return nil, nil, err
	}

	streams := make(map[string][]int, len(order))
	nsamp := h.NumSamples
	derived := false
	for _, file := range order {
		idx := groups[file]
		spec := h.Signals[idx[0]]
		stream, err := loadStream(filepath.Join(dir, file), spec)
		if err != nil {
			return nil, nil, err
		}
		frames := len(stream) / len(idx)
		if h.NumSamples == 0 {
			if frames == 0 {
				return nil, nil, fmt.Errorf("sample file %s holds no frames", file)
			}
			if !derived || frames < nsamp {
				nsamp = frames
				derived = true
			}
		} else if frames < h.NumSamples {
			return nil, nil, fmt.Errorf("sample file %s holds %d frames, header declares %d", file, frames, h.NumSamples)
		}
		streams[file] = stream
	}

	for _, file := range order {
		if need := nsamp * len(groups[file]); len(streams[file]) < need {
			return nil, nil, fmt.Errorf("sample file %s holds %d values, need %d", file, len(streams[file]), need)
		}
	}

	raw := make([]string, len(h.Signals))
	units := make([]string, len(h.Signals))
	files := make([]string, len(h.Signals))
	for i, s := range h.Signals {
		raw[i] = s.Description
		units[i] = s.Units
		files[i] = s.File
	}
	channels := record.NormalizeChannelNames(raw)

	m, err := record.NewMatrix(channels, nsamp)
	if err != nil {
		return nil, nil, err
	}
	for _, file := range order {
		idx := groups[file]
		stream := streams[file]
		width := len(idx)
		for pos, sig := range idx {
			spec := h.Signals[sig]
			invalid := codecs[spec.Format].invalid
			for row := 0; row < nsamp; row++ {
				adc := stream[row*width+pos]
				v := math.NaN()
				if adc != invalid {
					v = float64(adc-spec.Baseline) / spec.Gain
				}
				m.Set(row, sig, v)
			}
		}
	}

	md := &record.Metadata{
		RecordName: h.Name,
		Frequency:  h.Frequency,
		NumSamples: nsamp,
		Channels:   channels,
		Units:      units,
		Comments:   h.Comments,
		BaseTime:   h.BaseTime,
		BaseDate:   h.BaseDate,
		Files:      files,
	}
	r.logger.Debug("Record read", "record", h.Name, "signals", len(channels), "samples", nsamp)
	return m, md, nil
}

// groupByFile maps each sample file to the signal indexes stored in it, in
// header order. Signals sharing a file must share format and offset.
func groupByFile(signals []SignalSpec) (map[string][]int, []string, error) {
	groups := make(map[string][]int)
	var order []string
	for i, s := range signals {
		if s.File == "-" {
			return nil, nil, fmt.Errorf("signal %d reads from standard input, which is not supported", i)
		}
		if prev, ok := groups[s.File]; ok {
			first := signals[prev[0]]
			if first.Format != s.Format || first.Offset != s.Offset {
				return nil, nil, fmt.Errorf("signals in %s use mixed formats", s.File)
			}
		} else {
			order = append(order, s.File)
		}
		groups[s.File] = append(groups[s.File], i)
	}
	return groups, order, nil
}

func loadStream(path string, spec SignalSpec) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if spec.Offset > int64(len(data)) {
		return nil, fmt.Errorf("byte offset %d beyond end of %s", spec.Offset, filepath.Base(path))
	}
	return codecs[spec.Format].decode(data[spec.Offset:]), nil
}
