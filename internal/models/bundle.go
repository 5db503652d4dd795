// Package models provides the data structures for bundles handled by the ETL pipeline.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Money is a monetary amount as found in the storefront payloads.
type Money struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// PriceTier is one price point of a bundle. It unlocks the items listed in
// Items; Header and Items are empty when the storefront carries no display
// entry for the tier.
type PriceTier struct {
	Identifier           string   `json:"identifier"`
	Price                *Money   `json:"price"`
	AveragePurchasePrice *Money   `json:"average_purchase_price"`
	IsInitial            *bool    `json:"is_initial"`
	Header               *string  `json:"header"`
	Items                []string `json:"items"`
}

// BookItem is one item of a bundle, together with the tiers that unlock it.
type BookItem struct {
	MachineName string          `json:"machine_name"`
	Title       *string         `json:"title"`
	Msrp        *float64        `json:"msrp"`
	Preview     json.RawMessage `json:"preview,omitempty"`
	Image       *string         `json:"image"`
	ContentType *string         `json:"content_type"`
	Tiers       []string        `json:"tiers"`
}

// BundleRecord is the validated, canonical unit persisted by the pipeline.
// machine_name is the natural key; it is globally unique and stable across
// runs, and persistence upserts on it.
//
// The mapstructure tags mirror the flattened landing page keys, including the
// source's pipe-suffixed and dotted column names.
type BundleRecord struct {
	ID          uuid.UUID `mapstructure:"-"`
	MachineName string    `mapstructure:"machine_name"`

	HighResTileImage       *string `mapstructure:"high_res_tile_image"`
	DisableHeroTile        *bool   `mapstructure:"disable_hero_tile"`
	MarketingBlurb         *string `mapstructure:"marketing_blurb"`
	HoverTitle             *string `mapstructure:"hover_title"`
	ProductURL             *string `mapstructure:"product_url"`
	TileImage              *string `mapstructure:"tile_image"`
	Category               *string `mapstructure:"category"`
	HeroHighlights         *string `mapstructure:"hero_highlights"`
	HoverHighlights        *string `mapstructure:"hover_highlights"`
	Author                 *string `mapstructure:"author"`
	SupportsPartners       *bool   `mapstructure:"supports_partners"`
	DetailedMarketingBlurb *string `mapstructure:"detailed_marketing_blurb"`
	TileLogo               *string `mapstructure:"tile_logo"`
	TileShortName          *string `mapstructure:"tile_short_name"`
	TileStamp              *string `mapstructure:"tile_stamp"`
	TileName               *string `mapstructure:"tile_name"`
	ShortMarketingBlurb    *string `mapstructure:"short_marketing_blurb"`
	TypeValue              *string `mapstructure:"type"`
	Highlights             *string `mapstructure:"highlights"`

	TileLogoImageType        *string `mapstructure:"tile_logo_information.config.image_type"`
	TileLogoGCS              *string `mapstructure:"tile_logo_information.config.gcs"`
	TileLogoMasterImageType  *string `mapstructure:"tile_logo_information.config.imgix.master_image.image_type"`
	HighResTileImageType     *string `mapstructure:"high_res_tile_image_information.config.image_type"`
	HighResTileGCS           *string `mapstructure:"high_res_tile_image_information.config.gcs"`
	HighResTileMasterType    *string `mapstructure:"high_res_tile_image_information.config.imgix.master_image.image_type"`
	TileImageImageType       *string `mapstructure:"tile_image_information.config.image_type"`
	TileImageGCS             *string `mapstructure:"tile_image_information.config.gcs"`
	TileImageMasterImageType *string `mapstructure:"tile_image_information.config.imgix.master_image.image_type"`

	StartDate time.Time `mapstructure:"start_date|datetime"`
	EndDate   time.Time `mapstructure:"end_date|datetime"`

	BundlesSold  *float64 `mapstructure:"bundles_sold|decimal"`
	DurationDays *float64 `mapstructure:"duration_days"`
	IsActive     bool     `mapstructure:"is_active"`

	PriceTiers    []PriceTier `mapstructure:"-"`
	BookList      []BookItem  `mapstructure:"-"`
	FeaturedImage *string     `mapstructure:"-"`
	MsrpTotal     *float64    `mapstructure:"-"`
	RawHTML       *string     `mapstructure:"-"`

	VerificationDate time.Time `mapstructure:"-"`
}

// ImageObservation is one image URL found while scanning a bundle detail
// page: the absolute URL, the channel that discovered it, and the attribute
// it came from when the channel is attribute based.
type ImageObservation struct {
	URL       string
	Source    string
	Attribute string
}

// ScrapedBundle pairs a validated record with the image observations scanned
// from its detail page. The pair is explicit so the record type stays closed;
// observations are never attached to a record after validation.
type ScrapedBundle struct {
	Record       *BundleRecord
	Observations []ImageObservation
}

// BundleDetail carries everything the detail enricher extracts from one
// bundle page. Observations is the full candidate set scanned from the page,
// persisted alongside the record rather than attached to it afterwards.
type BundleDetail struct {
	PriceTiers    []PriceTier
	BookList      []BookItem
	FeaturedImage *string
	MsrpTotal     *float64
	RawHTML       string
	Observations  []ImageObservation
}
