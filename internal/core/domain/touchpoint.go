package domain

import "time"

// Touchpoint is one recorded instance of a visitor following a tracked link.
// Rows are written once by the redirect service and never mutated.
type Touchpoint struct {
	ID                string    `json:"id" db:"id"`
	ShortID           string    `json:"short_id" db:"short_id"`
	LinkID            string    `json:"link_id" db:"link_id"`
	CampaignName      string    `json:"campaign_name" db:"campaign_name"`
	UTMSource         string    `json:"utm_source" db:"utm_source"`
	UTMMedium         string    `json:"utm_medium" db:"utm_medium"`
	UTMCampaign       string    `json:"utm_campaign" db:"utm_campaign"`
	DeviceFingerprint *string   `json:"device_fingerprint,omitempty" db:"device_fingerprint"`
	UserID            *string   `json:"user_id,omitempty" db:"user_id"`
	ClickedAt         time.Time `json:"clicked_at" db:"clicked_at"`
}

// Identity maps a known contact email to its historical clicks,
// most recent first.
type Identity struct {
	Email  string       `json:"email"`
	Clicks []Touchpoint `json:"clicks"`
}
