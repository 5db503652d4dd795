// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"log/slog"
	"time"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "bundlefeed"

	// Version is the version of the application.
	Version = "Dev"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// BaseURL is the origin of the storefront. Relative URLs found in
	// payloads and markup are resolved against it.
	BaseURL = "https://www.humblebundle.com"

	// LandingURL is the landing page carrying the bundle catalog payload.
	LandingURL = BaseURL + "/books"

	// LandingScriptID is the id of the script element embedding the landing page JSON payload.
	LandingScriptID = "landingPage-json-data"

	// DetailScriptID is the id of the script element embedding the per-bundle detail JSON payload.
	DetailScriptID = "webpack-bundle-page-data"

	// FetchTimeout bounds every storefront GET. There is no retry; a timeout
	// surfaces as a fetch failure.
	FetchTimeout = 30 * time.Second

	// RunLockKey is the advisory lock key fencing concurrent ETL runs
	// against the same database.
	RunLockKey = int64(0x62756e646c65) // "bundle"
)
