// ABOUTME: Parses the engagement/history token encoded in an upload filename
// ABOUTME: "<code>-<label>.csv" where code is one engagement letter
package core

import (
	"path"
	"strings"
)

// EngagementCodes is the alphabet of engagement levels a filename may carry
const EngagementCodes = "ABCDE"

// FilenameToken holds the defaults derived from a payload's filename
type FilenameToken struct {
	Engagement string
	Label      string
}

// ParseFilenameToken strips directories and extension, then splits
// "<code>-<label>". Without a valid code the whole stem is the label.
func ParseFilenameToken(name string) FilenameToken {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		return FilenameToken{}
	}
	stem := strings.TrimSpace(strings.TrimSuffix(base, path.Ext(base)))

	code, label, found := strings.Cut(stem, "-")
	code = strings.ToUpper(strings.TrimSpace(code))
	label = strings.TrimSpace(label)
	if found && len(code) == 1 && strings.Contains(EngagementCodes, code) && label != "" {
		return FilenameToken{Engagement: code, Label: label}
	}
	return FilenameToken{Label: stem}
}
