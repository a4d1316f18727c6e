// Package trace implements the memory trace file format: newline
// delimited `0x<hex-address> <type-char>\n` records, type ∈ {R, W, P}.
// Writer implements append-only emission; Reader implements ingestion as
// the external collaborator that feeds synthetic requests into the cache
// pipeline (trace ingestion proper is out of scope; only the format is
// shared between them).
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/maemo32/memsim/internal/simerr"
)

// Kind is the trace record's access type.
type Kind byte

const (
	Read    Kind = 'R'
	Write   Kind = 'W'
	Prefetch Kind = 'P'
)

// Record is one decoded trace line.
type Record struct {
	Address uint64
	Kind    Kind
}

// Writer appends Records to an underlying io.Writer in the mandated
// format.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(r Record) error {
	_, err := fmt.Fprintf(w.w, "0x%x %c\n", r.Address, byte(r.Kind))
	return err
}

// Close flushes buffered output.
func (w *Writer) Close() error { return w.w.Flush() }

// Reader ingests Records line by line.
type Reader struct {
	sc *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	return &Reader{sc: bufio.NewScanner(r)}
}

// Next returns the next Record, or ok=false at end of file.
func (r *Reader) Next() (Record, bool, error) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return Record{}, false, simerr.New(simerr.KindConfigInvalid, "trace: malformed line "+line)
		}
		hex := strings.TrimPrefix(fields[0], "0x")
		addr, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return Record{}, false, simerr.Wrap(simerr.KindConfigInvalid, "trace: bad address", err)
		}
		if len(fields[1]) != 1 {
			return Record{}, false, simerr.New(simerr.KindConfigInvalid, "trace: bad type char")
		}
		return Record{Address: addr, Kind: Kind(fields[1][0])}, true, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, false, err
	}
	return Record{}, false, nil
}
