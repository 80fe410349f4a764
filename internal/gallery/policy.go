package gallery

import (
	"fmt"
	"mime"
	"strings"
)

// TypePolicy decides which declared content types are accepted.
type TypePolicy string

const (
	// PolicyAllowList accepts only the types in AllowedImageTypes.
	PolicyAllowList TypePolicy = "allowlist"
	// PolicyPrefix accepts any "image/*" type.
	PolicyPrefix TypePolicy = "prefix"
)

// AllowedImageTypes is the accept set for PolicyAllowList.
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// ParseTypePolicy validates a policy name from configuration.
func ParseTypePolicy(s string) (TypePolicy, error) {
	switch p := TypePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAllowList, PolicyPrefix:
		return p, nil
	case "":
		return PolicyAllowList, nil
	default:
		return "", fmt.Errorf("unknown content type policy %q (want %q or %q)", s, PolicyAllowList, PolicyPrefix)
	}
}

// Allows reports whether contentType passes the policy. Parameters such as
// "; charset=binary" are ignored and matching is case-insensitive.
func (p TypePolicy) Allows(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	if p == PolicyPrefix {
		return strings.HasPrefix(mediaType, "image/") && len(mediaType) > len("image/")
	}
	for _, ct := range AllowedImageTypes {
		if ct == mediaType {
			return true
		}
	}
	return false
}
