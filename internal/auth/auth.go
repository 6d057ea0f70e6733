// Package auth matches caller-supplied API keys against the configured
// external API definitions without leaking secret content through timing.
package auth

import (
	"crypto/subtle"
	"strings"

	"tg_moderation_panel/internal/externalapi"
)

// Result classifies an authentication attempt.
type Result int

const (
	// ResultMatched means an enabled definition accepted the key.
	ResultMatched Result = iota
	// ResultNotFound means no definition of the requested type is enabled, so
	// the endpoint should look absent.
	ResultNotFound
	// ResultUnauthorized means at least one definition is enabled but none
	// accepted the key.
	ResultUnauthorized
)

func (r Result) String() string {
	switch r {
	case ResultMatched:
		return "matched"
	case ResultNotFound:
		return "not_found"
	default:
		return "unauthorized"
	}
}

// FixedTimeEquals compares two secrets after trimming surrounding whitespace.
// Empty values never match. Lengths are compared first; equal-length contents
// are compared in constant time.
func FixedTimeEquals(expected, provided string) bool {
	a := []byte(strings.TrimSpace(expected))
	b := []byte(strings.TrimSpace(provided))

	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(a) != len(b) {
		return false
	}

	return subtle.ConstantTimeCompare(a, b) == 1
}

// Authenticate returns the first enabled definition of apiType whose key
// matches provided.
func Authenticate(defs []externalapi.Definition, apiType, provided string) (externalapi.Definition, Result) {
	anyEnabled := false
	for _, def := range defs {
		if !def.IsType(apiType) || !def.Enabled {
			continue
		}
		anyEnabled = true

		if FixedTimeEquals(def.APIKey, provided) {
			return def, ResultMatched
		}
	}

	if !anyEnabled {
		return externalapi.Definition{}, ResultNotFound
	}
	return externalapi.Definition{}, ResultUnauthorized
}
