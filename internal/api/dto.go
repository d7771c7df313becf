package api

import (
	"github.com/simplyvikram/koho-account-load-up/internal/ingest"
)

// LoadsResponse answers POST /v1/loads with a JSON body.
type LoadsResponse struct {
	BatchID  string                 `json:"batch_id"`
	Outcomes []ingest.OutcomeRecord `json:"outcomes"`
	Ignored  int                    `json:"ignored"`
}

type HistoryEntry struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount string `json:"amount,omitempty"`
	Time   string `json:"time,omitempty"`
}

type HistoryResponse struct {
	CustomerID string         `json:"customer_id"`
	Entries    []HistoryEntry `json:"entries"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}
