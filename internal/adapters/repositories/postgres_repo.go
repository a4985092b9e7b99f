package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/allumi/attribution-api/internal/core/domain"
)

const touchpointColumns = `id, "shortId", link_id, campaign_name, utm_source, utm_medium, utm_campaign, device_fingerprint, "userId", "clickedAt"`

const conversionColumns = `id, skool_email, skool_name, skool_username, joined_at, membership_type, price_paid, allumi_id, device_fingerprint, attributed_link_id, attribution_data, confidence_score, revenue_tracked, "createdAt"`

// PostgresRepo is the durable gateway: touchpoints and identities are read
// only, conversions are insert only, and the link counter is the single
// write-through side effect.
type PostgresRepo struct {
	DB *sql.DB

	byShortIDStmt            *sql.Stmt
	byFingerprintStmt        *sql.Stmt
	identityClicksStmt       *sql.Stmt
	insertConversionStmt     *sql.Stmt
	conversionByEmailStmt    *sql.Stmt
	conversionByUsernameStmt *sql.Stmt
	incrementConversionsStmt *sql.Stmt
	initOnce                 sync.Once
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	repo := &PostgresRepo{DB: db}
	repo.initOnce.Do(repo.initStatements)
	return repo
}

func (r *PostgresRepo) initStatements() {
	var err error

	r.byShortIDStmt, err = r.DB.Prepare(`
		SELECT ` + touchpointColumns + `
		FROM clicks
		WHERE "shortId" = $1
		ORDER BY "clickedAt" DESC`)
	if err != nil {
		panic("failed to prepare byShortID statement: " + err.Error())
	}

	r.byFingerprintStmt, err = r.DB.Prepare(`
		SELECT ` + touchpointColumns + `
		FROM clicks
		WHERE device_fingerprint = $1 AND "clickedAt" >= $2
		ORDER BY "clickedAt" DESC`)
	if err != nil {
		panic("failed to prepare byFingerprint statement: " + err.Error())
	}

	r.identityClicksStmt, err = r.DB.Prepare(`
		SELECT c.id, c."shortId", c.link_id, c.campaign_name, c.utm_source, c.utm_medium, c.utm_campaign, c.device_fingerprint, c."userId", c."clickedAt"
		FROM identities i
		JOIN identity_clicks ic ON ic.identity_email = i.email
		JOIN clicks c ON c.id = ic.click_id
		WHERE i.email = $1
		ORDER BY c."clickedAt" DESC`)
	if err != nil {
		panic("failed to prepare identityClicks statement: " + err.Error())
	}

	r.insertConversionStmt, err = r.DB.Prepare(`
		INSERT INTO conversions (` + conversionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING "createdAt"`)
	if err != nil {
		panic("failed to prepare insertConversion statement: " + err.Error())
	}

	r.conversionByEmailStmt, err = r.DB.Prepare(`
		SELECT ` + conversionColumns + `
		FROM conversions
		WHERE skool_email = $1
		ORDER BY "createdAt" DESC
		LIMIT 1`)
	if err != nil {
		panic("failed to prepare conversionByEmail statement: " + err.Error())
	}

	r.conversionByUsernameStmt, err = r.DB.Prepare(`
		SELECT ` + conversionColumns + `
		FROM conversions
		WHERE skool_username = $1
		ORDER BY "createdAt" DESC
		LIMIT 1`)
	if err != nil {
		panic("failed to prepare conversionByUsername statement: " + err.Error())
	}

	r.incrementConversionsStmt, err = r.DB.Prepare(`
		UPDATE links
		SET conversion_count = conversion_count + 1
		WHERE id = $1`)
	if err != nil {
		panic("failed to prepare incrementConversions statement: " + err.Error())
	}
}

func (r *PostgresRepo) FindByShortID(ctx context.Context, shortID string) ([]domain.Touchpoint, error) {
	rows, err := r.byShortIDStmt.QueryContext(ctx, shortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTouchpoints(rows)
}

func (r *PostgresRepo) FindByFingerprintSince(ctx context.Context, fingerprint string, since time.Time) ([]domain.Touchpoint, error) {
	rows, err := r.byFingerprintStmt.QueryContext(ctx, fingerprint, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTouchpoints(rows)
}

func (r *PostgresRepo) FindIdentityByEmail(ctx context.Context, email string) (domain.Identity, error) {
	rows, err := r.identityClicksStmt.QueryContext(ctx, email)
	if err != nil {
		return domain.Identity{}, err
	}
	defer rows.Close()

	clicks, err := scanTouchpoints(rows)
	if err != nil {
		return domain.Identity{}, err
	}
	if len(clicks) == 0 {
		return domain.Identity{}, domain.ErrNotFound
	}
	return domain.Identity{Email: email, Clicks: clicks}, nil
}

func (r *PostgresRepo) InsertConversion(ctx context.Context, conversion domain.Conversion) (domain.Conversion, error) {
	var attributionJSON any
	if conversion.AttributionData != nil {
		b, err := json.Marshal(conversion.AttributionData)
		if err != nil {
			return domain.Conversion{}, err
		}
		attributionJSON = b
	}

	err := r.insertConversionStmt.QueryRowContext(ctx,
		conversion.ID,
		conversion.SkoolEmail,
		conversion.SkoolName,
		conversion.SkoolUsername,
		conversion.JoinedAt,
		conversion.MembershipType,
		conversion.PricePaid,
		conversion.AllumiID,
		conversion.DeviceFingerprint,
		conversion.AttributedLinkID,
		attributionJSON,
		conversion.ConfidenceScore,
		conversion.RevenueTracked,
	).Scan(&conversion.CreatedAt)
	return conversion, err
}

func (r *PostgresRepo) FindConversionByEmail(ctx context.Context, email string) (domain.Conversion, error) {
	return r.scanConversion(r.conversionByEmailStmt.QueryRowContext(ctx, email))
}

func (r *PostgresRepo) FindConversionByUsername(ctx context.Context, username string) (domain.Conversion, error) {
	return r.scanConversion(r.conversionByUsernameStmt.QueryRowContext(ctx, username))
}

func (r *PostgresRepo) IncrementConversionCount(ctx context.Context, linkID string) error {
	_, err := r.incrementConversionsStmt.ExecContext(ctx, linkID)
	return err
}

func (r *PostgresRepo) scanConversion(row *sql.Row) (domain.Conversion, error) {
	var (
		conversion      domain.Conversion
		attributionJSON []byte
	)
	err := row.Scan(
		&conversion.ID,
		&conversion.SkoolEmail,
		&conversion.SkoolName,
		&conversion.SkoolUsername,
		&conversion.JoinedAt,
		&conversion.MembershipType,
		&conversion.PricePaid,
		&conversion.AllumiID,
		&conversion.DeviceFingerprint,
		&conversion.AttributedLinkID,
		&attributionJSON,
		&conversion.ConfidenceScore,
		&conversion.RevenueTracked,
		&conversion.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Conversion{}, domain.ErrNotFound
		}
		return domain.Conversion{}, err
	}
	if len(attributionJSON) > 0 {
		if err := json.Unmarshal(attributionJSON, &conversion.AttributionData); err != nil {
			return domain.Conversion{}, err
		}
	}
	return conversion, nil
}

func scanTouchpoints(rows *sql.Rows) ([]domain.Touchpoint, error) {
	var touchpoints []domain.Touchpoint
	for rows.Next() {
		var tp domain.Touchpoint
		if err := rows.Scan(
			&tp.ID,
			&tp.ShortID,
			&tp.LinkID,
			&tp.CampaignName,
			&tp.UTMSource,
			&tp.UTMMedium,
			&tp.UTMCampaign,
			&tp.DeviceFingerprint,
			&tp.UserID,
			&tp.ClickedAt,
		); err != nil {
			return nil, err
		}
		touchpoints = append(touchpoints, tp)
	}
	return touchpoints, rows.Err()
}
