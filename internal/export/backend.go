package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Backend writes a table to path. It owns the file it creates: on failure
// it removes whatever it wrote.
type Backend interface {
	Write(t *Table, path string, opts Options) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(t *Table, path string, opts Options) error

func (f BackendFunc) Write(t *Table, path string, opts Options) error {
	return f(t, path, opts)
}

// DefaultBackends returns the concrete writers shipped with the tool, keyed
// by canonical format key. Formats missing here are reported as not
// implemented.
func DefaultBackends() map[string]Backend {
	return map[string]Backend{
		"txt":      BackendFunc(writeDelimited),
		"out":      BackendFunc(writeDelimited),
		"dat":      BackendFunc(writeDelimited),
		"csv":      BackendFunc(writeCSV),
		"json":     BackendFunc(writeJSON),
		"xml":      BackendFunc(writeXML),
		"markdown": BackendFunc(writeMarkdown),
		"latex":    BackendFunc(writeLaTeX),
		"html":     BackendFunc(writeHTML),
		"yaml":     BackendFunc(writeYAML),
		"xlsx":     BackendFunc(writeXLSX),
		"parquet":  BackendFunc(writeParquet),
		"feather":  BackendFunc(writeFeather),
		"pickle":   BackendFunc(writePickle),
		"stata":    BackendFunc(writeStata),
		"sql":      BackendFunc(writeSQLite),
		"matlab":   BackendFunc(writeMATLAB),
	}
}

// createOutput creates path exclusively, hands fn a buffered writer and
// removes the file if anything fails.
func createOutput(path string, fn func(w *bufio.Writer) error) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(path)
		}
	}()

	w := bufio.NewWriterSize(f, 1<<16)
	if err = fn(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// errWriter remembers the first write error so rendering code can write
// freely and check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}
