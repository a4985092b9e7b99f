package services

import (
	"context"
	"errors"

	"github.com/allumi/attribution-api/internal/core/domain"
	"github.com/allumi/attribution-api/internal/core/ports"
)

const directTokenConfidence = 95

// DirectTokenMatcher resolves a conversion against the tracking token carried
// through checkout. The token equals the shortId of the clicked link, so a hit
// means the same browser session that clicked the link completed the
// conversion. An unknown token falls through to the next strategy.
type DirectTokenMatcher struct {
	Touchpoints ports.TouchpointRepository
}

func NewDirectTokenMatcher(touchpoints ports.TouchpointRepository) *DirectTokenMatcher {
	return &DirectTokenMatcher{Touchpoints: touchpoints}
}

func (m *DirectTokenMatcher) Name() string { return "direct_token" }

func (m *DirectTokenMatcher) Match(ctx context.Context, conversion domain.Conversion) (*domain.MatchResult, error) {
	if conversion.AllumiID == nil || *conversion.AllumiID == "" {
		return nil, nil
	}

	touchpoints, err := m.Touchpoints.FindByShortID(ctx, *conversion.AllumiID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(touchpoints) == 0 {
		return nil, nil
	}

	latest := touchpoints[0]
	return &domain.MatchResult{
		AttributedLinkID: latest.LinkID,
		Attribution: map[string]domain.CampaignCredit{
			latest.CampaignName: {
				Source:    latest.UTMSource,
				Medium:    latest.UTMMedium,
				Campaign:  latest.UTMCampaign,
				ClickedAt: latest.ClickedAt,
				Weight:    1.0,
			},
		},
		Confidence: directTokenConfidence,
	}, nil
}
