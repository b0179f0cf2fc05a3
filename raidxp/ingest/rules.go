package ingest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultHeadshotKeywords are matched case-insensitively against the whole
// line when a kill rule has no explicit headshot capture group.
var DefaultHeadshotKeywords = []string{"HEADSHOT", "HS"}

// Rule is one compiled extraction rule. Type is the upper-cased event type
// name from the rules file, Pattern the compiled expression.
type Rule struct {
	Type    string
	Pattern *regexp.Regexp
}

// RuleSet is the immutable compiled rule table built once at startup.
// Rules preserves the order the patterns appear in the document.
type RuleSet struct {
	Rules            []Rule
	HeadshotKeywords []string
}

type rulesDoc struct {
	Patterns         yaml.Node `yaml:"patterns"`
	HeadshotKeywords []string  `yaml:"headshot_keywords"`
}

// LoadRules reads and compiles a YAML rules file:
//
//	patterns:
//	  KILL:    '(?P<ts>\S+) .*? (?P<killer>\S+) killed (?P<victim>\S+)'
//	  EXTRACT: '(?P<ts>\S+) .*? (?P<name>\S+) extracted'
//	headshot_keywords: [HEADSHOT, HS]
//
// A pattern that fails to compile is a startup error, never a per-line one.
func LoadRules(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return CompileRules(raw)
}

// CompileRules builds a RuleSet from a raw YAML document.
func CompileRules(raw []byte) (*RuleSet, error) {
	var doc rulesDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rs := &RuleSet{
		HeadshotKeywords: doc.HeadshotKeywords,
	}
	if len(rs.HeadshotKeywords) == 0 {
		rs.HeadshotKeywords = append([]string(nil), DefaultHeadshotKeywords...)
	}

	if doc.Patterns.Kind != 0 && doc.Patterns.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("rules file: patterns must be a mapping")
	}

	index := make(map[string]int)
	for i := 0; i+1 < len(doc.Patterns.Content); i += 2 {
		keyNode := doc.Patterns.Content[i]
		valNode := doc.Patterns.Content[i+1]
		if valNode.Kind != yaml.ScalarNode {
			continue
		}

		eventType := strings.ToUpper(strings.TrimSpace(keyNode.Value))
		compiled, err := regexp.Compile(valNode.Value)
		if err != nil {
			return nil, fmt.Errorf("compile pattern for %s: %w", eventType, err)
		}

		if at, ok := index[eventType]; ok {
			rs.Rules[at].Pattern = compiled
			continue
		}
		index[eventType] = len(rs.Rules)
		rs.Rules = append(rs.Rules, Rule{Type: eventType, Pattern: compiled})
	}

	return rs, nil
}
