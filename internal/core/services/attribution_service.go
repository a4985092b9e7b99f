package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allumi/attribution-api/internal/core/domain"
	"github.com/allumi/attribution-api/internal/core/ports"
)

// DefaultAttributionService runs the matcher strategies in priority order,
// persists the resulting conversion, and fires the side effects. The first
// matcher to return a result terminates the search; results are never
// combined across strategies.
type DefaultAttributionService struct {
	Matchers         []ports.Matcher
	Touchpoints      ports.TouchpointRepository
	Conversions      ports.ConversionRepository
	Cache            ports.CacheRepository
	Notifier         ports.Notifier
	DefaultPaidPrice float64
	Now              func() time.Time
}

func NewAttributionService(
	matchers []ports.Matcher,
	touchpoints ports.TouchpointRepository,
	conversions ports.ConversionRepository,
	cache ports.CacheRepository,
	notifier ports.Notifier,
	defaultPaidPrice float64,
) ports.AttributionService {
	return &DefaultAttributionService{
		Matchers:         matchers,
		Touchpoints:      touchpoints,
		Conversions:      conversions,
		Cache:            cache,
		Notifier:         notifier,
		DefaultPaidPrice: defaultPaidPrice,
		Now:              time.Now,
	}
}

func (s *DefaultAttributionService) RecordConversion(ctx context.Context, req domain.ConversionRequest) (domain.Conversion, error) {
	email := strings.ToLower(strings.TrimSpace(req.SkoolEmail))
	if email == "" {
		return domain.Conversion{}, domain.ErrEmailRequired
	}

	joinedAt := s.Now()
	if req.JoinedAt != nil {
		joinedAt = *req.JoinedAt
	}
	membership := req.MembershipType
	if membership == "" {
		membership = domain.MembershipPaid
	}

	revenue := 0.0
	if membership == domain.MembershipPaid {
		revenue = req.PricePaid
		if revenue == 0 {
			revenue = s.DefaultPaidPrice
		}
	}

	conversion := domain.Conversion{
		ID:                uuid.New().String(),
		SkoolEmail:        email,
		SkoolName:         req.SkoolName,
		SkoolUsername:     req.SkoolUsername,
		JoinedAt:          joinedAt,
		MembershipType:    membership,
		PricePaid:         req.PricePaid,
		AllumiID:          req.AllumiID,
		DeviceFingerprint: req.DeviceFingerprint,
		RevenueTracked:    revenue,
	}

	for _, matcher := range s.Matchers {
		result, err := matcher.Match(ctx, conversion)
		if err != nil {
			return domain.Conversion{}, fmt.Errorf("%s matcher: %w", matcher.Name(), err)
		}
		if result == nil {
			continue
		}
		if err := result.Validate(); err != nil {
			return domain.Conversion{}, fmt.Errorf("%s matcher: %w", matcher.Name(), err)
		}
		linkID := result.AttributedLinkID
		conversion.AttributedLinkID = &linkID
		conversion.AttributionData = result.Attribution
		conversion.ConfidenceScore = result.Confidence
		break
	}

	conversion, err := s.Conversions.InsertConversion(ctx, conversion)
	if err != nil {
		return domain.Conversion{}, err
	}

	if conversion.Attributed() {
		s.trackAttribution(*conversion.AttributedLinkID)
		if s.Notifier != nil {
			go s.Notifier.NotifyConversion(context.Background(), conversion)
		}
	}

	return conversion, nil
}

// trackAttribution bumps the winning link's conversion counter. Failures are
// logged only: the conversion row is already durable at this point.
func (s *DefaultAttributionService) trackAttribution(linkID string) {
	ctx := context.Background()
	if s.Cache != nil {
		if err := s.Cache.IncrementCounter(ctx, "conversions:"+linkID); err != nil {
			log.Printf("failed to bump cached conversion counter for link %s: %v", linkID, err)
		}
	}
	if err := s.Touchpoints.IncrementConversionCount(ctx, linkID); err != nil {
		log.Printf("failed to increment conversion count for link %s: %v", linkID, err)
	}
}

func (s *DefaultAttributionService) LookupConversion(ctx context.Context, email, username string) (domain.Conversion, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	var (
		conversion domain.Conversion
		err        error
	)
	switch {
	case email != "":
		cacheKey := "conversion:email:" + email
		if s.Cache != nil {
			if cached, cerr := s.Cache.Get(ctx, cacheKey); cerr == nil && cached != "" {
				var cc domain.Conversion
				if json.Unmarshal([]byte(cached), &cc) == nil {
					return cc, true, nil
				}
			}
		}
		conversion, err = s.Conversions.FindConversionByEmail(ctx, email)
		if err == nil && s.Cache != nil {
			go func(c domain.Conversion) {
				if b, merr := json.Marshal(c); merr == nil {
					_ = s.Cache.Set(context.Background(), cacheKey, string(b), 60)
				}
			}(conversion)
		}
	case username != "":
		conversion, err = s.Conversions.FindConversionByUsername(ctx, username)
	default:
		return domain.Conversion{}, false, domain.ErrLookupKeyRequired
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Conversion{}, false, nil
		}
		return domain.Conversion{}, false, err
	}
	return conversion, true, nil
}
