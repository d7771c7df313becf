package ingest

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

func TestDecodeLoad(t *testing.T) {
	req, err := DecodeLoad([]byte(`{"id":"15887","customer_id":"528","load_amount":"$3318.47","time":"2000-01-01T00:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, "15887", req.ID)
	assert.Equal(t, "528", req.CustomerID)
	assert.True(t, decimal.RequireFromString("3318.47").Equal(req.Amount))
	assert.True(t, req.Time.Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, req.Time.Location())
}

func TestDecodeLoadNumericIdentifiers(t *testing.T) {
	req, err := DecodeLoad([]byte(`{"id":15887,"customer_id":528,"load_amount":"$1","time":"2000-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "15887", req.ID)
	assert.Equal(t, "528", req.CustomerID)
}

func TestDecodeLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"missing id", `{"customer_id":"1","load_amount":"$1","time":"2000-01-01T00:00:00Z"}`, ErrMissingField},
		{"null customer", `{"id":"1","customer_id":null,"load_amount":"$1","time":"2000-01-01T00:00:00Z"}`, ErrMissingField},
		{"missing amount", `{"id":"1","customer_id":"1","time":"2000-01-01T00:00:00Z"}`, ErrMissingField},
		{"bad amount", `{"id":"1","customer_id":"1","load_amount":"$abc","time":"2000-01-01T00:00:00Z"}`, ErrInvalidAmount},
		{"zero amount", `{"id":"1","customer_id":"1","load_amount":"$0.00","time":"2000-01-01T00:00:00Z"}`, ErrInvalidAmount},
		{"bad time", `{"id":"1","customer_id":"1","load_amount":"$1","time":"2000-01-01 00:00:00"}`, ErrInvalidTime},
		{"object id", `{"id":{},"customer_id":"1","load_amount":"$1","time":"2000-01-01T00:00:00Z"}`, ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLoad([]byte(tt.line))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$3318.47", "3318.47"},
		{"$0.01", "0.01"},
		{"5000", "5000"},
		{" $ 12.5 ", "12.5"},
		{"€7.00", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"$-5", "$0", "abc12", "USD 12", "$$12", "", "$"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, "ParseAmount(%q)", bad)
	}
}

func TestDecodeLoadNormalizesNumericIdentifiers(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`1`, "1"},
		{`1.0`, "1"},
		{`1e0`, "1"},
		{`12345678901234567890`, "12345678901234567890"},
		{`"1.0"`, "1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			line := `{"id":` + tt.raw + `,"customer_id":` + tt.raw + `,"load_amount":"$1","time":"2000-01-01T00:00:00Z"}`
			req, err := DecodeLoad([]byte(line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.ID)
			assert.Equal(t, tt.want, req.CustomerID)
		})
	}
}

func TestReaderSkipsBlankLinesAndReportsLineNumbers(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"1","customer_id":"1","load_amount":"$1","time":"2000-01-01T00:00:00Z"}`,
		``,
		`not json`,
		`{"id":"2","customer_id":"1","load_amount":"$2","time":"2000-01-01T00:00:01Z"}`,
	}, "\n")
	r := NewReader(strings.NewReader(input))

	req, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)

	_, err = r.Next()
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Line)

	req, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "2", req.ID)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadAll(t *testing.T) {
	input := `{"id":"1","customer_id":"1","load_amount":"$1","time":"2000-01-01T00:00:00Z"}
{"id":"2","customer_id":"1","load_amount":"$x","time":"2000-01-01T00:00:00Z"}
{"id":"3","customer_id":"1","load_amount":"$3","time":"2000-01-01T00:00:00Z"}
`
	reqs, err := ReadAll(strings.NewReader(input), true, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "3", reqs[1].ID)

	_, err = ReadAll(strings.NewReader(input), false, zerolog.Nop())
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWriteAll(t *testing.T) {
	var buf bytes.Buffer
	err := WriteAll(&buf, []types.LoadOutcome{
		{ID: "15887", CustomerID: "528", Accepted: true},
		{ID: "30081", CustomerID: "154", Accepted: false},
	})
	require.NoError(t, err)

	want := `{"id":"15887","customer_id":"528","accepted":true}
{"id":"30081","customer_id":"154","accepted":false}
`
	assert.Equal(t, want, buf.String())
}

func BenchmarkDecodeLoad(b *testing.B) {
	line := []byte(`{"id":"15887","customer_id":"528","load_amount":"$3318.47","time":"2000-01-01T00:00:00Z"}`)
	for i := 0; i < b.N; i++ {
		_, _ = DecodeLoad(line)
	}
}
