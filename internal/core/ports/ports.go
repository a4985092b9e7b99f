package ports

import (
	"context"
	"time"

	"github.com/allumi/attribution-api/internal/core/domain"
)

type TouchpointRepository interface {
	FindByShortID(ctx context.Context, shortID string) ([]domain.Touchpoint, error)
	FindByFingerprintSince(ctx context.Context, fingerprint string, since time.Time) ([]domain.Touchpoint, error)
	IncrementConversionCount(ctx context.Context, linkID string) error
}

type IdentityRepository interface {
	FindIdentityByEmail(ctx context.Context, email string) (domain.Identity, error)
}

type ConversionRepository interface {
	InsertConversion(ctx context.Context, conversion domain.Conversion) (domain.Conversion, error)
	FindConversionByEmail(ctx context.Context, email string) (domain.Conversion, error)
	FindConversionByUsername(ctx context.Context, username string) (domain.Conversion, error)
}

type CacheRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttlSeconds int) error
	IncrementCounter(ctx context.Context, key string) error
}

// Notifier delivers conversion events to an external endpoint. Delivery is
// best effort; implementations log failures and never return them.
type Notifier interface {
	NotifyConversion(ctx context.Context, conversion domain.Conversion)
}

// Matcher is one identity-resolution strategy. A nil result means "no match,
// try the next strategy"; an error aborts resolution.
type Matcher interface {
	Name() string
	Match(ctx context.Context, conversion domain.Conversion) (*domain.MatchResult, error)
}

type AttributionService interface {
	RecordConversion(ctx context.Context, req domain.ConversionRequest) (domain.Conversion, error)
	LookupConversion(ctx context.Context, email string, username string) (domain.Conversion, bool, error)
}
