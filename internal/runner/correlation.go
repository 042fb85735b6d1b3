package runner

import (
	"regexp"

	"github.com/google/uuid"
)

// correlationPattern matches an activity id query value: 36 hex digits and hyphens.
var correlationPattern = regexp.MustCompile(`activityId=[a-fA-F0-9-]{36}`)

// NewCorrelationID returns a fresh identifier for one call.
func NewCorrelationID() string {
	return uuid.New().String()
}

// RewriteCorrelationID substitutes id for every activityId value in rawURL.
// URLs without the marker are returned unchanged.
func RewriteCorrelationID(rawURL, id string) string {
	if !correlationPattern.MatchString(rawURL) {
		return rawURL
	}
	return correlationPattern.ReplaceAllLiteralString(rawURL, "activityId="+id)
}

// HasCorrelationID reports whether rawURL carries an activityId that will be rewritten.
func HasCorrelationID(rawURL string) bool {
	return correlationPattern.MatchString(rawURL)
}
