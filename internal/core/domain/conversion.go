package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type MembershipType string

const (
	MembershipFree MembershipType = "free"
	MembershipPaid MembershipType = "paid"
)

var (
	// ErrNotFound signals an expected miss on a store lookup. Matchers may
	// swallow it; every other store error aborts resolution.
	ErrNotFound = errors.New("record not found")

	ErrEmailRequired = errors.New("email is required")

	ErrLookupKeyRequired = errors.New("email or username is required")
)

// CampaignCredit is one campaign's share of a conversion. Weights across a
// conversion's attribution map sum to 1.0.
type CampaignCredit struct {
	Source    string    `json:"source"`
	Medium    string    `json:"medium"`
	Campaign  string    `json:"campaign"`
	ClickedAt time.Time `json:"clicked_at"`
	Weight    float64   `json:"attribution_weight"`
}

// Conversion is a membership event on the external platform, persisted once
// with the attribution decision baked in.
type Conversion struct {
	ID                string                    `json:"id" db:"id"`
	SkoolEmail        string                    `json:"skool_email" db:"skool_email"`
	SkoolName         string                    `json:"skool_name,omitempty" db:"skool_name"`
	SkoolUsername     string                    `json:"skool_username,omitempty" db:"skool_username"`
	JoinedAt          time.Time                 `json:"joined_at" db:"joined_at"`
	MembershipType    MembershipType            `json:"membership_type" db:"membership_type"`
	PricePaid         float64                   `json:"price_paid" db:"price_paid"`
	AllumiID          *string                   `json:"allumi_id,omitempty" db:"allumi_id"`
	DeviceFingerprint *string                   `json:"device_fingerprint,omitempty" db:"device_fingerprint"`
	AttributedLinkID  *string                   `json:"attributed_link_id,omitempty" db:"attributed_link_id"`
	AttributionData   map[string]CampaignCredit `json:"attribution_data,omitempty" db:"attribution_data"`
	ConfidenceScore   int                       `json:"confidence_score" db:"confidence_score"`
	RevenueTracked    float64                   `json:"revenue_tracked" db:"revenue_tracked"`
	CreatedAt         time.Time                 `json:"created_at" db:"created_at"`
}

func (c Conversion) Attributed() bool { return c.AttributedLinkID != nil }

// ConversionRequest is the raw tracking payload before defaults are applied.
type ConversionRequest struct {
	SkoolEmail        string
	SkoolName         string
	SkoolUsername     string
	JoinedAt          *time.Time
	MembershipType    MembershipType
	PricePaid         float64
	AllumiID          *string
	DeviceFingerprint *string
}

// MatchResult is what a matcher strategy hands back to the resolver.
type MatchResult struct {
	AttributedLinkID string
	Attribution      map[string]CampaignCredit
	Confidence       int
}

const weightTolerance = 1e-9

// Validate rejects malformed attribution maps before they are persisted:
// empty campaign names, negative weights, or weights that do not sum to 1.0.
func (m *MatchResult) Validate() error {
	if m.AttributedLinkID == "" {
		return errors.New("match result missing link id")
	}
	if len(m.Attribution) == 0 {
		return errors.New("match result has no attribution entries")
	}
	if m.Confidence < 0 || m.Confidence > 100 {
		return fmt.Errorf("confidence %d out of range", m.Confidence)
	}
	total := 0.0
	for name, credit := range m.Attribution {
		if name == "" {
			return errors.New("attribution entry has empty campaign name")
		}
		if credit.Weight < 0 {
			return fmt.Errorf("campaign %q has negative weight %g", name, credit.Weight)
		}
		total += credit.Weight
	}
	if math.Abs(total-1.0) > weightTolerance {
		return fmt.Errorf("attribution weights sum to %g, want 1.0", total)
	}
	return nil
}
