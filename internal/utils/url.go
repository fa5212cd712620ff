package utils

import "regexp"

var shareURLPattern = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

// ExtractURL returns the first http(s) URL found in free-form share text.
// When none is found the input is returned unchanged; invalid input surfaces
// later as a fetch or host failure.
func ExtractURL(text string) string {
	if match := shareURLPattern.FindString(text); match != "" {
		return match
	}
	return text
}
