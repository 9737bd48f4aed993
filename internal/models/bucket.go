// ABOUTME: Main bucket codes, display labels and fallback sentinels
// ABOUTME: Resolves bucket codes, labels and folder aliases case-insensitively
package models

import "strings"

// MainBucket is the coarse category code carried by ingestion passes
type MainBucket string

const (
	BucketBiz         MainBucket = "biz"
	BucketHealth      MainBucket = "health"
	BucketSurvivalist MainBucket = "survivalist"
	// BucketNone ingests without marking any main bucket membership
	BucketNone MainBucket = "none"
)

const (
	// CannotPlace is used when no bucket (main or personality) can be determined
	CannotPlace = "Cannot Place"

	// DefaultMainBucket is assigned when a contact has tags but none score
	DefaultMainBucket = "Business Operations"
)

// MainBuckets lists the placeable buckets in declaration order
var MainBuckets = []MainBucket{BucketBiz, BucketHealth, BucketSurvivalist}

var bucketLabels = map[MainBucket]string{
	BucketBiz:         "Business Operations",
	BucketHealth:      "Health",
	BucketSurvivalist: "Survivalist",
	BucketNone:        CannotPlace,
}

// Folder names and column values that resolve to a bucket. Keys are lowercase.
var bucketAliases = map[string]MainBucket{
	"biz":                 BucketBiz,
	"business":            BucketBiz,
	"business operations": BucketBiz,
	"business ops":        BucketBiz,
	"health":              BucketHealth,
	"wellness":            BucketHealth,
	"health & wellness":   BucketHealth,
	"health and wellness": BucketHealth,
	"survivalist":         BucketSurvivalist,
	"survival":            BucketSurvivalist,
	"preparedness":        BucketSurvivalist,
	"prepper":             BucketSurvivalist,
	"none":                BucketNone,
	"cannot place":        BucketNone,
}

// Label returns the display label, e.g. "Business Operations"
func (b MainBucket) Label() string {
	if l, ok := bucketLabels[b]; ok {
		return l
	}
	return ""
}

// IsValid reports whether b is one of the four known codes
func (b MainBucket) IsValid() bool {
	_, ok := bucketLabels[b]
	return ok
}

// ParseMainBucket resolves a code, a display label or a folder alias.
// The second return value is false when nothing matched.
func ParseMainBucket(s string) (MainBucket, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	if b, ok := bucketAliases[key]; ok {
		return b, true
	}
	for b, label := range bucketLabels {
		if strings.ToLower(label) == key {
			return b, true
		}
	}
	return "", false
}

// BucketForLabel maps a main bucket assignment label back to its code
func BucketForLabel(label string) (MainBucket, bool) {
	for b, l := range bucketLabels {
		if l == label {
			return b, true
		}
	}
	return "", false
}

// FallbackPersonality returns the "not elsewhere defined" personality label for
// a main bucket label. Unrecognized labels (including Cannot Place) fall back
// to CannotPlace.
func FallbackPersonality(mainLabel string) string {
	b, ok := BucketForLabel(mainLabel)
	if !ok || b == BucketNone {
		return CannotPlace
	}
	return b.Label() + " NED"
}
