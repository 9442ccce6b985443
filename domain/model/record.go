package model

import "time"

const (
	DistributionStatusPending   = "pending"
	DistributionStatusScheduled = "scheduled"
	DistributionStatusSuccess   = "success"
	DistributionStatusFailed    = "failed"
	DistributionStatusDeleted   = "deleted"
	DistributionStatusCancelled = "cancelled"
)

// DistributionRecord is the latest state of one publish per (creator, platform, external post).
type DistributionRecord struct {
	ID           int64     `json:"id"`
	CreatorID    string    `json:"creator_id"`
	Platform     string    `json:"platform"`
	Status       string    `json:"status"` // pending | scheduled | success | failed | deleted | cancelled
	ExternalID   *string   `json:"external_id,omitempty"`
	Permalink    *string   `json:"permalink,omitempty"`
	ScheduleID   *string   `json:"schedule_id,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DistributionAudit is an append-only log of distribution attempts
type DistributionAudit struct {
	ID           int64     `json:"id"`
	RecordID     int64     `json:"record_id"`
	CreatorID    string    `json:"creator_id"`
	Platform     string    `json:"platform"`
	Operation    string    `json:"operation"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// OAuthToken stores platform OAuth credentials per creator
type OAuthToken struct {
	ID                int64      `json:"id"`
	CreatorID         string     `json:"creator_id"`
	Platform          string     `json:"platform"`
	AccessToken       string     `json:"access_token"`
	RefreshToken      string     `json:"refresh_token"`
	AccessTokenSecret string     `json:"-"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Scopes            string     `json:"scopes"`
	ExternalUserID    *string    `json:"external_user_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DistributionEvent is broadcast (SSE, Pub/Sub) whenever a record changes state.
type DistributionEvent struct {
	Type       string  `json:"type"`
	CreatorID  string  `json:"creator_id"`
	Platform   string  `json:"platform"`
	Status     string  `json:"status"`
	ExternalID *string `json:"external_id,omitempty"`
	Permalink  *string `json:"permalink,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// NewDistributionEvent builds the status event for a record.
func NewDistributionEvent(rec *DistributionRecord) DistributionEvent {
	return DistributionEvent{
		Type:       "distribution_status",
		CreatorID:  rec.CreatorID,
		Platform:   rec.Platform,
		Status:     rec.Status,
		ExternalID: rec.ExternalID,
		Permalink:  rec.Permalink,
		Error:      rec.ErrorMessage,
	}
}
