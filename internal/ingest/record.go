package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

import (
	"github.com/shopspring/decimal"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

// TimeLayout is the wire format of load timestamps (UTC, second precision).
const TimeLayout = "2006-01-02T15:04:05Z"

var (
	ErrMissingField  = errors.New("missing field")
	ErrInvalidID     = errors.New("invalid identifier")
	ErrInvalidAmount = errors.New("invalid load amount")
	ErrInvalidTime   = errors.New("invalid time")
)

// Identifier accepts either a JSON string or a JSON number.
type Identifier string

func (id *Identifier) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ErrInvalidID
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		*id = Identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, b)
	}
	// 1, 1.0 and 1e0 name the same id
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, b)
	}
	*id = Identifier(d.String())
	return nil
}

// LoadRecord is the external shape of a load request.
type LoadRecord struct {
	ID         *Identifier `json:"id"`
	CustomerID *Identifier `json:"customer_id"`
	LoadAmount string      `json:"load_amount"`
	Time       string      `json:"time"`
}

// Request validates the record and converts it.
func (r LoadRecord) Request() (types.LoadRequest, error) {
	switch {
	case r.ID == nil || *r.ID == "":
		return types.LoadRequest{}, fmt.Errorf("%w: id", ErrMissingField)
	case r.CustomerID == nil || *r.CustomerID == "":
		return types.LoadRequest{}, fmt.Errorf("%w: customer_id", ErrMissingField)
	case r.LoadAmount == "":
		return types.LoadRequest{}, fmt.Errorf("%w: load_amount", ErrMissingField)
	case r.Time == "":
		return types.LoadRequest{}, fmt.Errorf("%w: time", ErrMissingField)
	}

	amount, err := ParseAmount(r.LoadAmount)
	if err != nil {
		return types.LoadRequest{}, err
	}
	at, err := time.Parse(TimeLayout, r.Time)
	if err != nil {
		return types.LoadRequest{}, fmt.Errorf("%w: %q", ErrInvalidTime, r.Time)
	}

	return types.LoadRequest{
		ID:         string(*r.ID),
		CustomerID: string(*r.CustomerID),
		Amount:     amount,
		Time:       at.UTC(),
	}, nil
}

// DecodeLoad parses one JSON load object.
func DecodeLoad(data []byte) (types.LoadRequest, error) {
	var rec LoadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.LoadRequest{}, err
	}
	return rec.Request()
}

// ParseAmount strips at most one leading currency symbol ("$123.45") and
// parses the remainder. Only strictly positive amounts are valid.
func ParseAmount(s string) (decimal.Decimal, error) {
	num := strings.TrimSpace(s)
	if r, size := utf8.DecodeRuneInString(num); unicode.IsSymbol(r) {
		num = strings.TrimSpace(num[size:])
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}
	return d, nil
}

// OutcomeRecord is the external shape of a load outcome.
type OutcomeRecord struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Accepted   bool   `json:"accepted"`
}

func NewOutcomeRecord(o types.LoadOutcome) OutcomeRecord {
	return OutcomeRecord{ID: o.ID, CustomerID: o.CustomerID, Accepted: o.Accepted}
}
