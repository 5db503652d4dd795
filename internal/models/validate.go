package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var (
	// ErrMissingMachineName is returned when a row has no usable natural key.
	ErrMissingMachineName = errors.New("row has no machine_name")
	// ErrMissingDates is returned when a row lacks one of its date bounds.
	ErrMissingDates = errors.New("row is missing a required date bound")
	// ErrFieldTooLong is returned when a field exceeds its length ceiling.
	ErrFieldTooLong = errors.New("field exceeds length ceiling")
	// ErrInvalidURL is returned when product_url is present but malformed.
	ErrInvalidURL = errors.New("product_url is not a well-formed URL")
)

// fieldCeilings are the per-field length ceilings enforced on a decoded
// record. A violation discards the row; it is never truncated silently.
var fieldCeilings = []struct {
	name string
	max  int
}{
	{"machine_name", 255},
	{"high_res_tile_image", 2048},
	{"marketing_blurb", 1024},
	{"hover_title", 255},
	{"category", 128},
	{"author", 255},
	{"detailed_marketing_blurb", 2048},
	{"tile_logo", 2048},
	{"tile_image", 2048},
	{"tile_short_name", 255},
	{"tile_stamp", 64},
	{"tile_name", 255},
	{"short_marketing_blurb", 512},
}

// featuredImageCeiling bounds the detail-sourced featured image URL. It is
// enforced separately because enrichment attaches the field after the row
// decode.
const featuredImageCeiling = 2048

// ValidateRow decodes one normalized row into a typed BundleRecord and
// enforces its field constraints.
//
// Both date bounds are required; a row missing either is rejected. Length
// ceiling and URL violations reject the row too. Questionable numeric fields
// are coerced to nil instead: they never reject a row and are never negative
// on the returned record.
func ValidateRow(row map[string]any, now time.Time) (*BundleRecord, error) {
	name, _ := row["machine_name"].(string)
	if name == "" {
		return nil, ErrMissingMachineName
	}

	if _, ok := row["start_date|datetime"].(time.Time); !ok {
		return nil, fmt.Errorf("%w: start_date", ErrMissingDates)
	}
	if _, ok := row["end_date|datetime"].(time.Time); !ok {
		return nil, fmt.Errorf("%w: end_date", ErrMissingDates)
	}

	record := &BundleRecord{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           record,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %v", err)
	}
	if err := decoder.Decode(row); err != nil {
		return nil, fmt.Errorf("row does not match the record structure: %w", err)
	}

	record.BundlesSold = nonNegative(record.BundlesSold)
	record.DurationDays = nonNegative(record.DurationDays)

	if err := checkCeilings(record); err != nil {
		return nil, err
	}

	if record.ProductURL != nil {
		u, err := url.Parse(*record.ProductURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidURL, *record.ProductURL)
		}
	}

	record.VerificationDate = now
	return record, nil
}

func checkCeilings(record *BundleRecord) error {
	values := map[string]*string{
		"machine_name":             &record.MachineName,
		"high_res_tile_image":      record.HighResTileImage,
		"marketing_blurb":          record.MarketingBlurb,
		"hover_title":              record.HoverTitle,
		"category":                 record.Category,
		"author":                   record.Author,
		"detailed_marketing_blurb": record.DetailedMarketingBlurb,
		"tile_logo":                record.TileLogo,
		"tile_image":               record.TileImage,
		"tile_short_name":          record.TileShortName,
		"tile_stamp":               record.TileStamp,
		"tile_name":                record.TileName,
		"short_marketing_blurb":    record.ShortMarketingBlurb,
	}

	for _, ceiling := range fieldCeilings {
		v := values[ceiling.name]
		if v == nil {
			continue
		}
		if len(*v) > ceiling.max {
			return fmt.Errorf("%w: %s is %d characters, ceiling %d", ErrFieldTooLong, ceiling.name, len(*v), ceiling.max)
		}
	}
	return nil
}

// CheckDetailCeilings enforces the length ceilings of fields that only
// enrichment provides, so it must run after the detail fields are attached.
// Like the row ceilings, a violation discards the record rather than
// truncating it.
func (r *BundleRecord) CheckDetailCeilings() error {
	if r.FeaturedImage != nil && len(*r.FeaturedImage) > featuredImageCeiling {
		return fmt.Errorf("%w: featured_image is %d characters, ceiling %d", ErrFieldTooLong, len(*r.FeaturedImage), featuredImageCeiling)
	}
	return nil
}

func nonNegative(v *float64) *float64 {
	if v != nil && *v < 0 {
		return nil
	}
	return v
}
