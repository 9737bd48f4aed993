// ABOUTME: Bucket Classifier mapping a contact's tag set to bucket labels
// ABOUTME: Main bucket by keyword substrings, personality bucket by tag table weights
package core

import (
	"sort"
	"strings"

	"github.com/harper/contact-compass/internal/models"
	"github.com/harper/contact-compass/internal/reference"
)

// Keyword is a main-bucket keyword matched as a substring of a lowercased tag
type Keyword struct {
	Keyword string  `yaml:"keyword" json:"keyword"`
	Weight  float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// MainRule is one main bucket and its keywords. Rule order is significant:
// equal scores resolve to the earliest declared rule.
type MainRule struct {
	Bucket   string    `yaml:"bucket" json:"bucket"`
	Keywords []Keyword `yaml:"keywords" json:"keywords"`
}

// DefaultMainRules returns the built-in main bucket keyword table
func DefaultMainRules() []MainRule {
	return []MainRule{
		{Bucket: models.BucketBiz.Label(), Keywords: []Keyword{
			{Keyword: "business", Weight: 1},
			{Keyword: "operations", Weight: 1},
			{Keyword: "leadership", Weight: 1},
		}},
		{Bucket: models.BucketHealth.Label(), Keywords: []Keyword{
			{Keyword: "health", Weight: 1},
			{Keyword: "wellness", Weight: 1},
			{Keyword: "medical", Weight: 1},
		}},
		{Bucket: models.BucketSurvivalist.Label(), Keywords: []Keyword{
			{Keyword: "survival", Weight: 1},
			{Keyword: "emergency", Weight: 1},
			{Keyword: "preparedness", Weight: 1},
		}},
	}
}

// BucketScore is one bucket's accumulated score
type BucketScore struct {
	Bucket string  `json:"bucket"`
	Score  float64 `json:"score"`
}

// Classification is the classifier output with the scores behind it
type Classification struct {
	Main              string        `json:"main_bucket"`
	Personality       string        `json:"personality_bucket"`
	MainScores        []BucketScore `json:"main_scores,omitempty"`
	PersonalityScores []BucketScore `json:"personality_scores,omitempty"`
}

// Classifier is a pure function of (tags, main bucket hint). It holds only
// immutable configuration and is safe for concurrent use.
type Classifier struct {
	rules []MainRule
	table *reference.Table
}

// NewClassifier builds a classifier. Nil rules select DefaultMainRules; a nil
// table classifies every contact into its main bucket's fallback.
func NewClassifier(table *reference.Table, rules []MainRule) *Classifier {
	if rules == nil {
		rules = DefaultMainRules()
	}
	normalized := make([]MainRule, 0, len(rules))
	for _, r := range rules {
		nr := MainRule{Bucket: r.Bucket, Keywords: make([]Keyword, 0, len(r.Keywords))}
		for _, kw := range r.Keywords {
			word := strings.ToLower(strings.TrimSpace(kw.Keyword))
			if word == "" {
				continue
			}
			weight := kw.Weight
			if weight == 0 {
				weight = 1
			}
			nr.Keywords = append(nr.Keywords, Keyword{Keyword: word, Weight: weight})
		}
		normalized = append(normalized, nr)
	}
	if table == nil {
		table = &reference.Table{}
	}
	return &Classifier{rules: normalized, table: table}
}

// Table returns the reference table the classifier scores against
func (c *Classifier) Table() *reference.Table {
	return c.table
}

// Classify returns (main bucket, personality bucket). A non-empty hint is used
// as the main bucket instead of scoring it.
func (c *Classifier) Classify(tags []string, hint string) (string, string) {
	res := c.Explain(tags, hint)
	return res.Main, res.Personality
}

// Explain is Classify plus the score tables
func (c *Classifier) Explain(tags []string, hint string) Classification {
	normalized := normalizeTags(tags)

	var res Classification
	if main := resolveHint(hint); main != "" {
		res.Main = main
	} else {
		res.Main, res.MainScores = c.scoreMain(normalized)
	}
	res.Personality, res.PersonalityScores = c.scorePersonality(normalized, res.Main)
	return res
}

// MainBucket scores only the main bucket
func (c *Classifier) MainBucket(tags []string) string {
	main, _ := c.scoreMain(normalizeTags(tags))
	return main
}

// PersonalityBucket scores only the personality bucket for a known main bucket
func (c *Classifier) PersonalityBucket(tags []string, main string) string {
	p, _ := c.scorePersonality(normalizeTags(tags), main)
	return p
}

func (c *Classifier) scoreMain(tags []string) (string, []BucketScore) {
	scores := make([]BucketScore, len(c.rules))
	for i, r := range c.rules {
		scores[i].Bucket = r.Bucket
	}
	for _, tag := range tags {
		for i, r := range c.rules {
			for _, kw := range r.Keywords {
				if strings.Contains(tag, kw.Keyword) {
					scores[i].Score += kw.Weight
				}
			}
		}
	}

	best := -1
	for i, s := range scores {
		// strictly greater keeps the first declared bucket on ties
		if s.Score > 0 && (best < 0 || s.Score > scores[best].Score) {
			best = i
		}
	}
	if best >= 0 {
		return scores[best].Bucket, scores
	}
	if len(tags) > 0 {
		return models.DefaultMainBucket, scores
	}
	return models.CannotPlace, scores
}

func (c *Classifier) scorePersonality(tags []string, main string) (string, []BucketScore) {
	totals := make(map[string]float64)
	for _, tag := range tags {
		if e, ok := c.table.Lookup(tag); ok {
			totals[e.Bucket] += e.Weight
		}
	}
	if len(totals) == 0 {
		return models.FallbackPersonality(main), nil
	}

	scores := make([]BucketScore, 0, len(totals))
	for b, s := range totals {
		scores = append(scores, BucketScore{Bucket: b, Score: s})
	}
	// highest score first, alphabetical among equals
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Bucket < scores[j].Bucket
	})
	return scores[0].Bucket, scores
}

// resolveHint maps bucket codes and aliases to their label; other non-empty
// hints pass through unchanged.
func resolveHint(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return ""
	}
	if b, ok := models.ParseMainBucket(hint); ok {
		return b.Label()
	}
	return hint
}

// normalizeTags trims, lowercases, drops empties and de-duplicates
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := reference.NormalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
