// Package database provides the PostgreSQL persistence for the ETL pipeline:
// expiry sweep, natural-key upsert, image observation replacement and the
// append-only raw snapshot trail.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bundlefeed/bundlefeed/internal/constants"
	"github.com/bundlefeed/bundlefeed/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunInProgress is returned when another run holds the advisory run lock
// on the same store. Runs are never interleaved; the caller fails fast.
var ErrRunInProgress = errors.New("another pipeline run is in progress")

// Config holds the configuration for connecting to the PostgreSQL database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Manager manages the PostgreSQL database connection pool. One Manager
// serves one pipeline run; the pool is released unconditionally on Close.
type Manager struct {
	dbpool dbPool
}

type options struct {
	newPool func(ctx context.Context, dsn string) (dbPool, error)
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// Connect establishes a connection to the PostgreSQL database using the provided configuration.
func Connect(ctx context.Context, cfg Config, args ...Options) (*Manager, error) {
	opts := options{
		newPool: func(ctx context.Context, dsn string) (dbPool, error) {
			return pgxpool.New(ctx, dsn)
		},
	}

	for _, opt := range args {
		opt(&opts)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	dbpool, err := opts.newPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	slog.Info("Connected to PostgreSQL database", "host", cfg.Host, "port", cfg.Port)
	return &Manager{dbpool: dbpool}, nil
}

// AcquireRunLock takes the advisory lock fencing pipeline runs against this
// store. It does not block: a held lock returns ErrRunInProgress.
func (db *Manager) AcquireRunLock(ctx context.Context) error {
	if db.dbpool == nil {
		return errors.New("database not initialized")
	}

	var acquired bool
	row := db.dbpool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, constants.RunLockKey)
	if err := row.Scan(&acquired); err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return ErrRunInProgress
	}
	return nil
}

// ReleaseRunLock releases the advisory run lock.
func (db *Manager) ReleaseRunLock(ctx context.Context) error {
	if db.dbpool == nil {
		return nil
	}
	if _, err := db.dbpool.Exec(ctx, `SELECT pg_advisory_unlock($1)`, constants.RunLockKey); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// SweepExpired deletes every bundle whose active window closed before now.
// It runs before the upsert of a run, so a closed bundle cannot be expired
// and re-inserted in the same pass. Returns the number of rows removed.
func (db *Manager) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if db.dbpool == nil {
		return 0, errors.New("database not initialized")
	}

	tag, err := db.dbpool.Exec(ctx, `DELETE FROM bundle WHERE end_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired bundles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StoreBundles upserts the records by machine_name and replaces each
// bundle's image observations, all inside one transaction: a bundle row is
// never committed with a half-replaced observation set.
func (db *Manager) StoreBundles(ctx context.Context, bundles []models.ScrapedBundle, now time.Time) error {
	if db.dbpool == nil {
		return errors.New("database not initialized")
	}
	if len(bundles) == 0 {
		return nil
	}

	tx, err := db.dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, bundle := range bundles {
		bundleID, err := upsertBundle(ctx, tx, bundle.Record)
		if err != nil {
			return fmt.Errorf("failed to upsert bundle %q: %w", bundle.Record.MachineName, err)
		}
		if err := replaceImageObservations(ctx, tx, bundleID, bundle.Observations, now); err != nil {
			return fmt.Errorf("failed to replace image observations for %q: %w", bundle.Record.MachineName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bundle transaction: %w", err)
	}
	return nil
}

const upsertBundleSQL = `INSERT INTO bundle (
	id, machine_name,
	high_res_tile_image, disable_hero_tile, marketing_blurb, hover_title,
	product_url, tile_image, category, hero_highlights, hover_highlights,
	author, supports_partners, detailed_marketing_blurb, tile_logo,
	tile_short_name, tile_stamp, tile_name, short_marketing_blurb, _type,
	highlights,
	tile_logo_image_type, tile_logo_gcs, tile_logo_master_image_type,
	high_res_tile_image_type, high_res_tile_gcs, high_res_tile_master_image_type,
	tile_image_image_type, tile_image_gcs, tile_image_master_image_type,
	start_date, end_date, bundles_sold, duration_days, is_active,
	price_tiers, book_list, featured_image, msrp_total, raw_html,
	verification_date
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
	$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
	$31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
	$41
)
ON CONFLICT (machine_name) DO UPDATE SET
	high_res_tile_image = EXCLUDED.high_res_tile_image,
	disable_hero_tile = EXCLUDED.disable_hero_tile,
	marketing_blurb = EXCLUDED.marketing_blurb,
	hover_title = EXCLUDED.hover_title,
	product_url = EXCLUDED.product_url,
	tile_image = EXCLUDED.tile_image,
	category = EXCLUDED.category,
	hero_highlights = EXCLUDED.hero_highlights,
	hover_highlights = EXCLUDED.hover_highlights,
	author = EXCLUDED.author,
	supports_partners = EXCLUDED.supports_partners,
	detailed_marketing_blurb = EXCLUDED.detailed_marketing_blurb,
	tile_logo = EXCLUDED.tile_logo,
	tile_short_name = EXCLUDED.tile_short_name,
	tile_stamp = EXCLUDED.tile_stamp,
	tile_name = EXCLUDED.tile_name,
	short_marketing_blurb = EXCLUDED.short_marketing_blurb,
	_type = EXCLUDED._type,
	highlights = EXCLUDED.highlights,
	tile_logo_image_type = EXCLUDED.tile_logo_image_type,
	tile_logo_gcs = EXCLUDED.tile_logo_gcs,
	tile_logo_master_image_type = EXCLUDED.tile_logo_master_image_type,
	high_res_tile_image_type = EXCLUDED.high_res_tile_image_type,
	high_res_tile_gcs = EXCLUDED.high_res_tile_gcs,
	high_res_tile_master_image_type = EXCLUDED.high_res_tile_master_image_type,
	tile_image_image_type = EXCLUDED.tile_image_image_type,
	tile_image_gcs = EXCLUDED.tile_image_gcs,
	tile_image_master_image_type = EXCLUDED.tile_image_master_image_type,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	bundles_sold = EXCLUDED.bundles_sold,
	duration_days = EXCLUDED.duration_days,
	is_active = EXCLUDED.is_active,
	price_tiers = EXCLUDED.price_tiers,
	book_list = EXCLUDED.book_list,
	featured_image = EXCLUDED.featured_image,
	msrp_total = EXCLUDED.msrp_total,
	raw_html = EXCLUDED.raw_html,
	verification_date = EXCLUDED.verification_date
RETURNING id`

func upsertBundle(ctx context.Context, tx pgx.Tx, record *models.BundleRecord) (uuid.UUID, error) {
	priceTiers, err := jsonbOrNull(record.PriceTiers, len(record.PriceTiers) > 0)
	if err != nil {
		return uuid.Nil, err
	}
	bookList, err := jsonbOrNull(record.BookList, len(record.BookList) > 0)
	if err != nil {
		return uuid.Nil, err
	}

	var bundleID uuid.UUID
	row := tx.QueryRow(ctx, upsertBundleSQL,
		record.ID, record.MachineName,
		record.HighResTileImage, record.DisableHeroTile, record.MarketingBlurb, record.HoverTitle,
		record.ProductURL, record.TileImage, record.Category, record.HeroHighlights, record.HoverHighlights,
		record.Author, record.SupportsPartners, record.DetailedMarketingBlurb, record.TileLogo,
		record.TileShortName, record.TileStamp, record.TileName, record.ShortMarketingBlurb, record.TypeValue,
		record.Highlights,
		record.TileLogoImageType, record.TileLogoGCS, record.TileLogoMasterImageType,
		record.HighResTileImageType, record.HighResTileGCS, record.HighResTileMasterType,
		record.TileImageImageType, record.TileImageGCS, record.TileImageMasterImageType,
		record.StartDate, record.EndDate, record.BundlesSold, record.DurationDays, record.IsActive,
		priceTiers, bookList, record.FeaturedImage, record.MsrpTotal, record.RawHTML,
		record.VerificationDate,
	)
	if err := row.Scan(&bundleID); err != nil {
		return uuid.Nil, err
	}
	return bundleID, nil
}

// replaceImageObservations fully replaces the observation set of a bundle:
// delete then insert, never merged.
func replaceImageObservations(ctx context.Context, tx pgx.Tx, bundleID uuid.UUID, observations []models.ImageObservation, now time.Time) error {
	if _, err := tx.Exec(ctx, `DELETE FROM scraped_image_url WHERE bundle_id = $1`, bundleID); err != nil {
		return err
	}

	for _, obs := range observations {
		_, err := tx.Exec(ctx,
			`INSERT INTO scraped_image_url (id, bundle_id, url, source, attribute, scraped_date)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), bundleID, obs.URL, nullableString(obs.Source), nullableString(obs.Attribute), now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// AppendSnapshot inserts one raw snapshot row. The trail is append-only:
// snapshots are never updated or deleted.
func (db *Manager) AppendSnapshot(ctx context.Context, snap models.RawSnapshot) error {
	if db.dbpool == nil {
		return errors.New("database not initialized")
	}

	_, err := db.dbpool.Exec(ctx,
		`INSERT INTO landing_page_raw_data (id, json_data, scraped_date, source_url, json_hash, json_version)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.JSONData, snap.ScrapedDate, snap.SourceURL, snap.JSONHash, snap.JSONVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

// Close closes the database connection.
//
// If the connection is already closed, it does nothing.
// If the connection does not close within 10 seconds, it returns an error.
func (db *Manager) Close() error {
	if db.dbpool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		db.dbpool.Close()
	}()

	select {
	case <-done:
		db.dbpool = nil
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout while closing database, connection may still be open")
	}
}

func jsonbOrNull(value any, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize value: %w", err)
	}
	return b, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
