// Package scraper retrieves the storefront bundle catalog and turns it into
// validated records.
//
// It covers the landing page fetch, the navigation to the embedded product
// list, the tabular normalization of each product, and the per-bundle detail
// enrichment including image URL resolution.
package scraper

import "errors"

// The failure taxonomy of a fetch. All are fatal for the landing page;
// for per-bundle detail pages they are logged and the bundle proceeds without
// detail.
var (
	// ErrUnreachable is returned on transport failures, timeouts and
	// non-2xx statuses.
	ErrUnreachable = errors.New("source unreachable")

	// ErrMissingPayload is returned when the expected script element is
	// absent or empty.
	ErrMissingPayload = errors.New("payload script element missing or empty")

	// ErrCorruptPayload is returned when the embedded payload is not valid JSON.
	ErrCorruptPayload = errors.New("payload is not valid JSON")

	// ErrUnexpectedStructure is returned when a fixed JSON path is absent.
	// It signals an upstream schema change rather than a network problem.
	ErrUnexpectedStructure = errors.New("unexpected payload structure")
)
