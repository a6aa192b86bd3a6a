package domain

import "time"

type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// DispatchRequest is the validated input of one batch: deduplicated
// normalized numbers in first-seen order and a non-empty body.
type DispatchRequest struct {
	Recipients   []string `json:"recipients"`
	RecipientIDs []string `json:"recipient_ids"`
	Body         string   `json:"body"`
}

// LedgerEntry is the outcome of one recipient.
type LedgerEntry struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Phone       string    `json:"phone"`
	Outcome     Outcome   `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// DispatchResult is immutable once returned by the dispatcher.
type DispatchResult struct {
	BatchID          string          `json:"batch_id"`
	Request          DispatchRequest `json:"request"`
	Entries          []LedgerEntry   `json:"entries"`
	Sent             int             `json:"sent"`
	Failed           int             `json:"failed"`
	DroppedInvalid   int             `json:"dropped_invalid"`
	DroppedDuplicate int             `json:"dropped_duplicate"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}

// MessageLog is one persisted ledger row used by the message report.
type MessageLog struct {
	ID          string    `json:"id"`
	BatchID     string    `json:"batch_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Phone       string    `json:"phone"`
	Content     string    `json:"content"`
	Status      Outcome   `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
