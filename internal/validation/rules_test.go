package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a@b.dz", true},
		{"ahmed.benali@agb.dz", true},
		{"a@b", false},
		{"a b@c.dz", false},
		{"@b.dz", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Email(tt.in), tt.in)
	}
}

func TestPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Abcdef1!", true},
		{"Abcdef1@xyz", true},
		{"abcdef1!", false}, // no uppercase
		{"ABCDEF1!", false}, // no lowercase
		{"Abcdefg!", false}, // no digit
		{"Abcdefg1", false}, // no special
		{"Abc1!", false},    // too short
		{"Abcdef1#", false}, // # is outside the allowed set
		{"Abcdéf1!", false}, // non-ASCII letter
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Password(tt.in), tt.in)
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		in    string
		want  Strength
		gauge float64
	}{
		{"", StrengthNone, 0},
		{"Ab1!", StrengthWeak, 0.25},
		{"abcdefgh", StrengthWeak, 0.25},
		{"abcdefg1", StrengthMedium, 0.5},
		{"Abcdef1!", StrengthStrong, 1},
		{"Abcdef1#", StrengthStrong, 1},
	}

	for _, tt := range tests {
		got := PasswordStrength(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.gauge, got.Gauge(), tt.in)
	}
	assert.Equal(t, "strength.strong", StrengthStrong.LabelKey())
	assert.Empty(t, StrengthNone.LabelKey())
}

func TestOTPComplete(t *testing.T) {
	assert.True(t, OTPComplete([OTPLength]string{"1", "2", "3", "4", "5", "6"}))
	assert.True(t, OTPComplete([OTPLength]string{"0", "0", "0", "0", "0", "0"}))
	assert.False(t, OTPComplete([OTPLength]string{"1", "2", "", "4", "5", "6"}))
	assert.False(t, OTPComplete([OTPLength]string{"1", "2", "3", "4", "5", "x"}))
	assert.False(t, OTPComplete([OTPLength]string{"12", "2", "3", "4", "5", "6"}))
}

func TestAgeInYears_CalendarYearOnly(t *testing.T) {
	now := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	birth := time.Date(2008, time.December, 31, 0, 0, 0, 0, time.UTC)

	// Not yet 18 by date, but 18 by calendar year
	assert.Equal(t, 18, AgeInYears(birth, now))
}

func TestPostalCode(t *testing.T) {
	assert.True(t, PostalCode("16000"))
	assert.False(t, PostalCode("1600"))
	assert.False(t, PostalCode("160000"))
	assert.False(t, PostalCode("16a00"))
}

func TestPhoneTable(t *testing.T) {
	table, err := NewPhoneTable(
		[]PhoneRule{{CountryCode: "A", Pattern: `^[5-7][0-9]{8}$`, Example: "770123456"}},
		PhoneRule{CountryCode: "*", Pattern: `^[0-9]+$`, Example: "0123"},
	)
	require.NoError(t, err)

	assert.True(t, table.Valid("A", "770123456"))
	assert.False(t, table.Valid("A", "123456789"))
	assert.Equal(t, "770123456", table.Rule("A").Example)

	// Unknown codes use the fallback
	assert.True(t, table.Valid("ZZ", "123456789"))
	assert.False(t, table.Valid("ZZ", "12-34"))
}

func TestDefaultPhoneTable(t *testing.T) {
	table := DefaultPhoneTable()

	assert.Equal(t, []string{"213", "216"}, table.Codes())
	assert.True(t, table.Valid("213", "770123456"))
	assert.True(t, table.Valid("+213", "550123456"))
	assert.False(t, table.Valid("213", "870123456"))
	assert.True(t, table.Valid("216", "20123456"))
	assert.False(t, table.Valid("216", "10123456"))
}

func TestParsePhoneTable(t *testing.T) {
	data := []byte(`
countries:
  - country_code: "212"
    pattern: "^[67][0-9]{8}$"
    example: "612345678"
  - country_code: "216"
    pattern: "^9[0-9]{7}$"
    example: "90123456"
`)

	table, err := ParsePhoneTable(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"212", "213", "216"}, table.Codes())
	assert.True(t, table.Valid("212", "612345678"))
	assert.False(t, table.Valid("216", "20123456"), "file rules override defaults")
	assert.True(t, table.Valid("213", "770123456"))
}

func TestParsePhoneTable_InvalidPattern(t *testing.T) {
	_, err := ParsePhoneTable([]byte(`
countries:
  - country_code: "1"
    pattern: "^[0-9"
`))
	assert.Error(t, err)
}
