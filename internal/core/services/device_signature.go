package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/allumi/attribution-api/internal/core/domain"
	"github.com/allumi/attribution-api/internal/core/ports"
)

const (
	deviceWindow          = 30 * 24 * time.Hour
	decayTimeConstantDays = 7.0
	deviceBaseConfidence  = 50
	devicePerTouchBonus   = 10
	deviceMaxConfidence   = 80
)

// DeviceSignatureMatcher reconstructs the touchpoints seen from the same
// device fingerprint within a 30-day trailing window and splits credit across
// them with exponential time decay (weight = exp(-daysSince/7)), normalized so
// the map sums to 1.0. The link on record is always the most recent touch,
// even when an older campaign accumulates more decayed weight. Confidence
// grows with the number of touches but is capped below the direct token's.
type DeviceSignatureMatcher struct {
	Touchpoints ports.TouchpointRepository
	Now         func() time.Time
}

func NewDeviceSignatureMatcher(touchpoints ports.TouchpointRepository) *DeviceSignatureMatcher {
	return &DeviceSignatureMatcher{Touchpoints: touchpoints, Now: time.Now}
}

func (m *DeviceSignatureMatcher) Name() string { return "device_signature" }

func (m *DeviceSignatureMatcher) Match(ctx context.Context, conversion domain.Conversion) (*domain.MatchResult, error) {
	if conversion.DeviceFingerprint == nil || *conversion.DeviceFingerprint == "" {
		return nil, nil
	}

	now := m.Now()
	touchpoints, err := m.Touchpoints.FindByFingerprintSince(ctx, *conversion.DeviceFingerprint, now.Add(-deviceWindow))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(touchpoints) == 0 {
		return nil, nil
	}

	// touchpoints arrive most recent first; the first seen per campaign keeps
	// its clickedAt as the campaign's latest touch
	credits := make(map[string]domain.CampaignCredit, len(touchpoints))
	total := 0.0
	for _, tp := range touchpoints {
		daysSince := now.Sub(tp.ClickedAt).Hours() / 24
		weight := math.Exp(-daysSince / decayTimeConstantDays)
		total += weight

		credit, ok := credits[tp.CampaignName]
		if !ok {
			credit = domain.CampaignCredit{
				Source:    tp.UTMSource,
				Medium:    tp.UTMMedium,
				Campaign:  tp.UTMCampaign,
				ClickedAt: tp.ClickedAt,
			}
		}
		credit.Weight += weight
		credits[tp.CampaignName] = credit
	}
	for name, credit := range credits {
		credit.Weight /= total
		credits[name] = credit
	}

	confidence := deviceBaseConfidence + devicePerTouchBonus*len(touchpoints)
	if confidence > deviceMaxConfidence {
		confidence = deviceMaxConfidence
	}

	return &domain.MatchResult{
		AttributedLinkID: touchpoints[0].LinkID,
		Attribution:      credits,
		Confidence:       confidence,
	}, nil
}
