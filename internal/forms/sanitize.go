package forms

import (
	"regexp"
	"strings"
)

var (
	angleBrackets = regexp.MustCompile(`[<>]`)
	scriptScheme  = regexp.MustCompile(`(?i)javascript:`)
	eventHandler  = regexp.MustCompile(`(?i)on\w+=`)
)

// Sanitize strips markup and script fragments from a submitted value and
// trims surrounding whitespace. Data URLs pass through untouched apart from
// trimming.
func Sanitize(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "data:image/") {
		return value
	}
	value = angleBrackets.ReplaceAllString(value, "")
	value = scriptScheme.ReplaceAllString(value, "")
	value = eventHandler.ReplaceAllString(value, "")
	return strings.TrimSpace(value)
}
