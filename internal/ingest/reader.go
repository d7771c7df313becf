package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

import (
	"github.com/rs/zerolog"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

// ParseError reports a malformed input line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reader decodes line-delimited JSON load requests. Blank lines are skipped.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{sc: sc}
}

// Next returns the next request, io.EOF at the end of input, or a
// *ParseError for a malformed line. Reading may continue after a ParseError.
func (r *Reader) Next() (types.LoadRequest, error) {
	for r.sc.Scan() {
		r.line++
		data := bytes.TrimSpace(r.sc.Bytes())
		if len(data) == 0 {
			continue
		}
		req, err := DecodeLoad(data)
		if err != nil {
			return types.LoadRequest{}, &ParseError{Line: r.line, Err: err}
		}
		return req, nil
	}
	if err := r.sc.Err(); err != nil {
		return types.LoadRequest{}, err
	}
	return types.LoadRequest{}, io.EOF
}

// ReadAll drains r. With skipMalformed set, bad lines are logged and
// dropped; otherwise the first one aborts the read.
func ReadAll(r io.Reader, skipMalformed bool, logger zerolog.Logger) ([]types.LoadRequest, error) {
	var (
		out []types.LoadRequest
		pe  *ParseError
	)
	rd := NewReader(r)
	for {
		req, err := rd.Next()
		switch {
		case err == nil:
			out = append(out, req)
		case errors.Is(err, io.EOF):
			return out, nil
		case skipMalformed && errors.As(err, &pe):
			logger.Warn().Int("line", pe.Line).Err(pe.Err).Msg("skipping malformed load")
		default:
			return nil, err
		}
	}
}
