package ingest

import (
	"bufio"
	"encoding/json"
	"io"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

// Writer encodes outcomes as one JSON object per line.
type Writer struct {
	bw  *bufio.Writer
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{bw: bw, enc: json.NewEncoder(bw)}
}

func (w *Writer) Write(o types.LoadOutcome) error {
	return w.enc.Encode(NewOutcomeRecord(o))
}

func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// WriteAll writes every outcome and flushes.
func WriteAll(w io.Writer, outs []types.LoadOutcome) error {
	ow := NewWriter(w)
	for _, o := range outs {
		if err := ow.Write(o); err != nil {
			return err
		}
	}
	return ow.Flush()
}
