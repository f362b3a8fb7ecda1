package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "mediashare/pkg/domain-errors"
)

// Identifier and text bounds enforced at trust boundaries.
const (
	MaxIDLength    = 64
	MaxTitleLength = 200
)

// AssetID addresses one media asset in the registry namespace.
// Invariant: trimmed, non-empty, at most MaxIDLength bytes, printable.
// Interior spaces are kept as given.
//
// Usage: construct via ParseAssetID at trust boundaries; direct casting bypasses
// validation and is reserved for stores rehydrating persisted rows.
type AssetID string

// OwnerID is an opaque stakeholder identity (an account key, a user handle).
// The registry attaches no meaning to it beyond equality.
type OwnerID string

func (a AssetID) String() string { return string(a) }

func (a AssetID) IsNil() bool { return a == "" }

func (o OwnerID) String() string { return string(o) }

func (o OwnerID) IsNil() bool { return o == "" }

// ParseAssetID validates and returns an AssetID.
func ParseAssetID(s string) (AssetID, error) {
	v, err := parseIdentifier("asset_id", s)
	if err != nil {
		return "", err
	}
	return AssetID(v), nil
}

// ParseOwnerID validates and returns an OwnerID.
func ParseOwnerID(s string) (OwnerID, error) {
	v, err := parseIdentifier("owner id", s)
	if err != nil {
		return "", err
	}
	return OwnerID(v), nil
}

// ParseTitle trims and validates a display title.
func ParseTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if len(s) > MaxTitleLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "title must be 200 bytes or less")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "title must be valid UTF-8")
	}
	return s, nil
}

func parseIdentifier(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > MaxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" must be 64 bytes or less")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.In(r, unicode.Cf, unicode.Zl, unicode.Zp) {
			return "", dErrors.New(dErrors.CodeInvalidInput, field+" contains invalid characters")
		}
	}
	return s, nil
}
