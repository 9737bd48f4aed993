// ABOUTME: YAML loader for main bucket keyword rules
// ABOUTME: Keeps declared rule order since ties resolve to the first rule
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harper/contact-compass/internal/core"
)

type rulesFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Bucket   string         `yaml:"bucket"`
	Keywords []keywordEntry `yaml:"keywords"`
}

// keywordEntry accepts either "business" or {keyword: business, weight: 2}
type keywordEntry core.Keyword

func (k *keywordEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Keyword = node.Value
		k.Weight = 1
		return nil
	}
	var full core.Keyword
	if err := node.Decode(&full); err != nil {
		return err
	}
	*k = keywordEntry(full)
	return nil
}

// LoadMainRules reads a rules file:
//
//	rules:
//	  - bucket: Business Operations
//	    keywords: [business, {keyword: leadership, weight: 2}]
func LoadMainRules(path string) ([]core.MainRule, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read main rules: %w", err)
	}
	return ParseMainRules(data)
}

// ParseMainRules decodes rules YAML
func ParseMainRules(data []byte) ([]core.MainRule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse main rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("main rules file declares no rules")
	}

	rules := make([]core.MainRule, 0, len(f.Rules))
	seen := make(map[string]bool)
	for i, r := range f.Rules {
		bucket := strings.TrimSpace(r.Bucket)
		if bucket == "" {
			return nil, fmt.Errorf("main rule %d has no bucket", i+1)
		}
		if seen[bucket] {
			return nil, fmt.Errorf("main rule bucket %q declared twice", bucket)
		}
		seen[bucket] = true

		rule := core.MainRule{Bucket: bucket}
		for _, kw := range r.Keywords {
			rule.Keywords = append(rule.Keywords, core.Keyword(kw))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
