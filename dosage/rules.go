package dosage

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule is one entry of the dosing table. A zero MaxSingleDoseMg means the
// rule has no ceiling.
type Rule struct {
	Drug            string   `yaml:"drug"`
	Aliases         []string `yaml:"aliases"`
	MgPerKg         float64  `yaml:"mg_per_kg"`
	Frequency       string   `yaml:"frequency"`
	MaxSingleDoseMg int      `yaml:"max_single_dose_mg"`
}

// RuleSet is the ordered dosing table plus the fallback rule
type RuleSet struct {
	Rules   []Rule `yaml:"rules"`
	Default Rule   `yaml:"default"`
}

// DefaultRules returns the built-in rule table
func DefaultRules() RuleSet {
	rs, err := ParseRules(defaultRulesYAML)
	if err != nil {
		// The embedded table is covered by tests
		panic(fmt.Sprintf("embedded dosage rules are invalid: %v", err))
	}
	return rs
}

// LoadRules reads a rule table from a YAML file
func LoadRules(path string) (RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read dosage rules %s: %w", path, err)
	}
	return ParseRules(raw)
}

// ParseRules decodes and validates a YAML rule table
func ParseRules(raw []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("failed to decode dosage rules: %w", err)
	}

	rs.Default.Drug = DefaultRuleName
	for i := range rs.Rules {
		rs.Rules[i].Drug = normalize(rs.Rules[i].Drug)
		for j := range rs.Rules[i].Aliases {
			rs.Rules[i].Aliases[j] = normalize(rs.Rules[i].Aliases[j])
		}
	}

	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// Validate checks that keys are unique and the numbers are usable
func (rs RuleSet) Validate() error {
	var errs []error
	seen := make(map[string]string)

	if rs.Default.MgPerKg <= 0 {
		errs = append(errs, fmt.Errorf("default rule: mg_per_kg must be positive, got %v", rs.Default.MgPerKg))
	}
	if rs.Default.MaxSingleDoseMg < 0 {
		errs = append(errs, fmt.Errorf("default rule: max_single_dose_mg cannot be negative"))
	}

	for i, r := range rs.Rules {
		if r.Drug == "" {
			errs = append(errs, fmt.Errorf("rule %d: drug cannot be empty", i))
			continue
		}
		if r.MgPerKg <= 0 {
			errs = append(errs, fmt.Errorf("rule %s: mg_per_kg must be positive, got %v", r.Drug, r.MgPerKg))
		}
		if r.MaxSingleDoseMg < 0 {
			errs = append(errs, fmt.Errorf("rule %s: max_single_dose_mg cannot be negative", r.Drug))
		}
		if strings.TrimSpace(r.Frequency) == "" {
			errs = append(errs, fmt.Errorf("rule %s: frequency cannot be empty", r.Drug))
		}
		for _, key := range append([]string{r.Drug}, r.Aliases...) {
			if owner, dup := seen[key]; dup {
				errs = append(errs, fmt.Errorf("rule %s: key %q already used by rule %s", r.Drug, key, owner))
				continue
			}
			seen[key] = r.Drug
		}
	}

	return errors.Join(errs...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
