package campaign

import "time"

// Lifecycle statuses. Terminal campaigns are never mutated again.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

func IsTerminal(status string) bool {
	switch status {
	case StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type Campaign struct {
	ID              int64      `json:"id"`
	SellerID        int64      `json:"seller_id"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	Category        string     `json:"category,omitempty"`
	ProductRef      *string    `json:"product_ref,omitempty"`
	Status          string     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	TotalRecipients int        `json:"total_recipients"`
	SentCount       int        `json:"sent_count"`
	DeliveredCount  int        `json:"delivered_count"`
	FailedCount     int        `json:"failed_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SendError is one recorded per-recipient delivery failure.
type SendError struct {
	Contact   string    `json:"contact"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// DispatchJob is the queue message that triggers one dispatch run.
type DispatchJob struct {
	CampaignID int64 `json:"campaign_id"`
	SellerID   int64 `json:"seller_id"`
}

type CreateCampaignReq struct {
	Title      string   `json:"title"      binding:"required"`
	Body       string   `json:"body"       binding:"required"`
	Category   string   `json:"category"`
	ProductRef *string  `json:"product_ref"`
	Audience   []string `json:"audience"`
}

type CreateCampaignResp struct {
	ID int64 `json:"id"`
}

type UpdateCampaignReq struct {
	Title      string  `json:"title"    binding:"required"`
	Body       string  `json:"body"     binding:"required"`
	Category   string  `json:"category"`
	ProductRef *string `json:"product_ref"`
}

type ScheduleReq struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}
