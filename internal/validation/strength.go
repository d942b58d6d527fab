package validation

// Strength is the informational password gauge level
type Strength int

const (
	StrengthNone Strength = iota
	StrengthWeak
	StrengthMedium
	StrengthStrong
)

// PasswordStrength counts satisfied character classes. Anything shorter than
// 8 characters is weak whatever its composition.
func PasswordStrength(pw string) Strength {
	if pw == "" {
		return StrengthNone
	}
	if len(pw) < minPasswordLength {
		return StrengthWeak
	}

	var upper, lower, digit, other bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}

	score := 0
	for _, ok := range []bool{upper, lower, digit, other} {
		if ok {
			score++
		}
	}

	switch {
	case score == 4:
		return StrengthStrong
	case score >= 2:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}

// String returns the gauge level name
func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthMedium:
		return "medium"
	case StrengthStrong:
		return "strong"
	default:
		return "none"
	}
}

// LabelKey is the i18n key of the displayed label, empty for StrengthNone
func (s Strength) LabelKey() string {
	if s == StrengthNone {
		return ""
	}
	return "strength." + s.String()
}

// Gauge is the filled fraction of the strength bar
func (s Strength) Gauge() float64 {
	switch s {
	case StrengthWeak:
		return 0.25
	case StrengthMedium:
		return 0.5
	case StrengthStrong:
		return 1
	default:
		return 0
	}
}
