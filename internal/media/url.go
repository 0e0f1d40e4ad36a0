package media

import (
	"net/url"
	"strings"

	"streamrelay/internal/domain"
)

// ValidateURL trims raw and accepts it only as an absolute http or https
// URL with a host. Anything else, including a value the extractor could
// mistake for an option, is a validation error.
func ValidateURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", domain.Validation(domain.MsgInvalidURL, "url is required")
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", domain.Validation(domain.MsgInvalidURL, "url does not parse: "+err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", domain.Validation(domain.MsgInvalidURL, "url scheme must be http or https")
	}
	if u.Host == "" {
		return "", domain.Validation(domain.MsgInvalidURL, "url has no host")
	}
	return s, nil
}
