package services

import (
	"context"
	"errors"
	"strings"

	"github.com/allumi/attribution-api/internal/core/domain"
	"github.com/allumi/attribution-api/internal/core/ports"
)

const emailIdentityConfidence = 70

// EmailIdentityMatcher is the last-resort strategy: it only proves the
// converting email once clicked something, not that the converting session
// did, so its confidence sits below the device matcher's ceiling. Credit goes
// entirely to the identity's most recent click.
type EmailIdentityMatcher struct {
	Identities ports.IdentityRepository
}

func NewEmailIdentityMatcher(identities ports.IdentityRepository) *EmailIdentityMatcher {
	return &EmailIdentityMatcher{Identities: identities}
}

func (m *EmailIdentityMatcher) Name() string { return "email_identity" }

func (m *EmailIdentityMatcher) Match(ctx context.Context, conversion domain.Conversion) (*domain.MatchResult, error) {
	email := strings.ToLower(strings.TrimSpace(conversion.SkoolEmail))
	if email == "" {
		return nil, nil
	}

	identity, err := m.Identities.FindIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(identity.Clicks) == 0 {
		return nil, nil
	}

	latest := identity.Clicks[0]
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
		Confidence: emailIdentityConfidence,
	}, nil
}
