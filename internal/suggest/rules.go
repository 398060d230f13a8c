package suggest

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"studio/internal/api/models"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule proposes suggestions for node types whose lower-cased name matches.
// Match, when set, replaces the word lists.
type Rule struct {
	Name        string              `yaml:"name"`
	All         []string            `yaml:"all"`
	Any         []string            `yaml:"any"`
	None        []string            `yaml:"none"`
	Suggestions []models.Suggestion `yaml:"suggestions"`

	Match func(classType string) bool `yaml:"-"`
}

func (r Rule) Matches(classType string) bool {
	if r.Match != nil {
		return r.Match(classType)
	}
	lower := strings.ToLower(classType)
	for _, word := range r.All {
		if !strings.Contains(lower, strings.ToLower(word)) {
			return false
		}
	}
	for _, word := range r.None {
		if strings.Contains(lower, strings.ToLower(word)) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return len(r.All) > 0
	}
	for _, word := range r.Any {
		if strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}

// RuleSet is the side-effect-free knowledge the engine draws candidates from.
type RuleSet struct {
	Exact      map[string][]models.Suggestion `yaml:"exact"`
	Heuristics []Rule                         `yaml:"heuristics"`
}

// Candidates returns the suggestions for classType before any filtering: the
// exact entry when one exists, otherwise the union of every matching heuristic.
func (slf RuleSet) Candidates(classType string) []models.Suggestion {
	if exact, ok := slf.Exact[classType]; ok {
		return append([]models.Suggestion(nil), exact...)
	}

	var out []models.Suggestion
	seen := make(map[string]bool)
	for _, rule := range slf.Heuristics {
		if !rule.Matches(classType) {
			continue
		}
		for _, s := range rule.Suggestions {
			if seen[s.Field] {
				continue
			}
			seen[s.Field] = true
			out = append(out, s)
		}
	}
	return out
}

// DefaultRuleSet returns the built-in rules.
func DefaultRuleSet() RuleSet {
	rules, err := LoadRuleSet(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("load rules.yaml: %v", err))
	}
	return rules
}

// LoadRuleSet parses a YAML rule set.
func LoadRuleSet(data []byte) (RuleSet, error) {
	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleSet{}, fmt.Errorf("parse rule set: %w", err)
	}
	for class, suggestions := range rules.Exact {
		if err := checkSuggestions(suggestions); err != nil {
			return RuleSet{}, fmt.Errorf("exact rule %q: %w", class, err)
		}
	}
	for i, rule := range rules.Heuristics {
		if len(rule.All) == 0 && len(rule.Any) == 0 {
			return RuleSet{}, fmt.Errorf("heuristic %d (%s): needs at least one word in all or any", i, rule.Name)
		}
		if err := checkSuggestions(rule.Suggestions); err != nil {
			return RuleSet{}, fmt.Errorf("heuristic %d (%s): %w", i, rule.Name, err)
		}
	}
	return rules, nil
}

// LoadRuleSetFile reads a YAML rule set from disk.
func LoadRuleSetFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, err
	}
	return LoadRuleSet(data)
}

func checkSuggestions(suggestions []models.Suggestion) error {
	for _, s := range suggestions {
		if strings.TrimSpace(s.Field) == "" {
			return errors.New("suggestion without field")
		}
	}
	return nil
}
