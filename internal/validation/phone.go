package validation

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PhoneRule is the accepted national number shape for one country code
type PhoneRule struct {
	CountryCode string `yaml:"country_code" json:"countryCode"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Example     string `yaml:"example" json:"example"`

	re *regexp.Regexp
}

func (r *PhoneRule) compile() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("phone rule %q: %w", r.CountryCode, err)
	}
	r.re = re
	return nil
}

// Match reports whether number fits the rule
func (r PhoneRule) Match(number string) bool {
	return r.re != nil && r.re.MatchString(number)
}

// PhoneTable maps country codes to phone rules. Unknown codes use the fallback.
type PhoneTable struct {
	rules    map[string]PhoneRule
	fallback PhoneRule
}

// NewPhoneTable compiles every rule. Later rules override earlier ones with
// the same country code.
func NewPhoneTable(rules []PhoneRule, fallback PhoneRule) (*PhoneTable, error) {
	t := &PhoneTable{rules: make(map[string]PhoneRule, len(rules))}

	for _, r := range rules {
		if r.CountryCode == "" {
			return nil, fmt.Errorf("phone rule with pattern %q has no country code", r.Pattern)
		}
		if err := r.compile(); err != nil {
			return nil, err
		}
		t.rules[r.CountryCode] = r
	}

	if err := fallback.compile(); err != nil {
		return nil, err
	}
	t.fallback = fallback

	return t, nil
}

var defaultPhoneRules = []PhoneRule{
	{CountryCode: "213", Pattern: `^[5-7][0-9]{8}$`, Example: "770123456"},
	{CountryCode: "216", Pattern: `^[2-9][0-9]{7}$`, Example: "20123456"},
}

var defaultFallback = PhoneRule{CountryCode: "*", Pattern: `^[0-9]+$`, Example: "0612345678"}

// DefaultPhoneTable returns the built-in Algeria and Tunisia rules
func DefaultPhoneTable() *PhoneTable {
	t, err := NewPhoneTable(defaultPhoneRules, defaultFallback)
	if err != nil {
		panic(err)
	}
	return t
}

type phoneFile struct {
	Countries []PhoneRule `yaml:"countries"`
	Fallback  *PhoneRule  `yaml:"fallback"`
}

// LoadPhoneTable extends the default table with the rules in a YAML file.
// An empty path returns the defaults.
func LoadPhoneTable(path string) (*PhoneTable, error) {
	if path == "" {
		return DefaultPhoneTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phone rules: %w", err)
	}
	return ParsePhoneTable(data)
}

// ParsePhoneTable is LoadPhoneTable over raw YAML
func ParsePhoneTable(data []byte) (*PhoneTable, error) {
	var f phoneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse phone rules: %w", err)
	}

	rules := append(append([]PhoneRule{}, defaultPhoneRules...), f.Countries...)
	fallback := defaultFallback
	if f.Fallback != nil {
		fallback = *f.Fallback
	}
	return NewPhoneTable(rules, fallback)
}

// Rule returns the rule for code, or the fallback
func (t *PhoneTable) Rule(code string) PhoneRule {
	if r, ok := t.rules[strings.TrimPrefix(code, "+")]; ok {
		return r
	}
	return t.fallback
}

// Valid reports whether number is acceptable for the given country code
func (t *PhoneTable) Valid(code, number string) bool {
	return t.Rule(code).Match(strings.TrimSpace(number))
}

// Codes lists the configured country codes in ascending order
func (t *PhoneTable) Codes() []string {
	codes := make([]string, 0, len(t.rules))
	for c := range t.rules {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
