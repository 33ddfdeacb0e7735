package capture

import (
	"regexp"
	"strings"

	"tubelens/internal/services"
)

var videoIDPattern = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})(?:&|$)`)

// Target is a validated watch URL.
type Target struct {
	VideoID      string `json:"videoId"`
	CanonicalURL string `json:"canonicalUrl"`
}

// Validate extracts the 11-character video id from rawURL and returns the
// canonical watch URL. A URL without a recognizable id is invalid input.
func Validate(rawURL string) (Target, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Target{}, services.Wrap(services.ErrInvalidInput, "validate", "parse url", "url is required", nil)
	}
	match := videoIDPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Target{}, services.Wrap(services.ErrInvalidInput, "validate", "parse url", "invalid YouTube URL: "+trimmed, nil)
	}
	return Target{
		VideoID:      match[1],
		CanonicalURL: "https://www.youtube.com/watch?v=" + match[1],
	}, nil
}
