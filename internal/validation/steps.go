package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agb-digital/onboarding/pkg/i18n"
)

// Form is the read view of wizard form data that rules need
type Form interface {
	Text(field string) string
	Flag(field string) bool
	Code(field string) [OTPLength]string
	HasArtifact(field string) bool
}

// MinimumAge is the youngest age allowed to open an account
const MinimumAge = 18

var twoFactorPattern = regexp.MustCompile(`^\d{6}$`)

// Rules evaluates step rules and renders messages in one locale.
// It holds no per-session state.
type Rules struct {
	phones *PhoneTable
	loc    *i18n.Localizer
	now    func() time.Time
}

// NewRules creates rules over a phone table. A nil table uses the defaults.
func NewRules(phones *PhoneTable, loc *i18n.Localizer) *Rules {
	if phones == nil {
		phones = DefaultPhoneTable()
	}
	if loc == nil {
		loc = i18n.NewLocalizer(i18n.DefaultLocale)
	}
	return &Rules{phones: phones, loc: loc, now: time.Now}
}

// WithClock returns a copy of r that reads the current date from now
func (r *Rules) WithClock(now func() time.Time) *Rules {
	c := *r
	c.now = now
	return &c
}

// WithLocalizer returns a copy of r rendering messages through loc
func (r *Rules) WithLocalizer(loc *i18n.Localizer) *Rules {
	c := *r
	c.loc = loc
	return &c
}

// Phones returns the phone table in use
func (r *Rules) Phones() *PhoneTable {
	return r.phones
}

// Localizer returns the localizer messages are rendered with
func (r *Rules) Localizer() *i18n.Localizer {
	return r.loc
}

type checker struct {
	r    *Rules
	f    Form
	errs map[string]string
}

func (r *Rules) check(f Form) *checker {
	return &checker{r: r, f: f, errs: make(map[string]string)}
}

// fail records the first error for a field
func (c *checker) fail(field, key string, params ...map[string]string) {
	if _, exists := c.errs[field]; exists {
		return
	}
	c.errs[field] = c.r.loc.T(key, params...)
}

func (c *checker) label(field string) map[string]string {
	return map[string]string{"field": c.r.loc.T("fields." + field)}
}

func (c *checker) text(field string) string {
	return strings.TrimSpace(c.f.Text(field))
}

// required reports whether every field is filled, failing the empty ones
func (c *checker) required(fields ...string) bool {
	ok := true
	for _, field := range fields {
		if c.text(field) == "" {
			c.fail(field, "validation.required", c.label(field))
			ok = false
		}
	}
	return ok
}

func (c *checker) choice(field string, allowed []string) bool {
	v := c.text(field)
	if v == "" {
		c.fail(field, "validation.select_required", c.label(field))
		return false
	}
	if !oneOf(v, allowed) {
		c.fail(field, "validation.choice_invalid", c.label(field))
		return false
	}
	return true
}

func (c *checker) evidence(fields ...string) {
	for _, field := range fields {
		if !c.f.HasArtifact(field) {
			c.fail(field, "validation.evidence_missing", map[string]string{
				"document": c.r.loc.T("fields." + field),
			})
		}
	}
}

func (c *checker) date(field string) (time.Time, bool) {
	if !c.required(field) {
		return time.Time{}, false
	}
	d, err := ParseDate(c.text(field))
	if err != nil {
		c.fail(field, "validation.date_invalid")
		return time.Time{}, false
	}
	return d, true
}

func (c *checker) result() map[string]string {
	return c.errs
}

// Personal checks the signup identity step
func (r *Rules) Personal(f Form) map[string]string {
	c := r.check(f)
	c.required(FieldNom, FieldPrenom)
	return c.result()
}

// Contact checks email shape and the phone number against its country rule
func (r *Rules) Contact(f Form) map[string]string {
	c := r.check(f)

	if c.required(FieldEmail) && !Email(c.text(FieldEmail)) {
		c.fail(FieldEmail, "validation.email_format")
	}

	if c.required(FieldTelephone) {
		rule := r.phones.Rule(c.text(FieldCountryCode))
		if !rule.Match(c.text(FieldTelephone)) {
			c.fail(FieldTelephone, "validation.phone_format", map[string]string{"example": rule.Example})
		}
	}
	return c.result()
}

// Password checks composition and confirmation
func (r *Rules) Password(f Form) map[string]string {
	c := r.check(f)

	// Passwords are compared untrimmed
	pw := f.Text(FieldPassword)
	if c.required(FieldPassword) && !Password(pw) {
		c.fail(FieldPassword, "validation.password_format")
	}
	if c.required(FieldPasswordConfirm) && pw != f.Text(FieldPasswordConfirm) {
		c.fail(FieldPasswordConfirm, "validation.password_mismatch")
	}
	return c.result()
}

// OTP checks that every slot of a one-time code is a digit. The value of the
// code is verified by the backend, not here.
func (r *Rules) OTP(field string) func(Form) map[string]string {
	return func(f Form) map[string]string {
		c := r.check(f)
		if !OTPComplete(f.Code(field)) {
			c.fail(field, "validation.otp_incomplete")
		}
		return c.result()
	}
}

// Security checks two distinct catalogue questions with non-empty answers
func (r *Rules) Security(f Form) map[string]string {
	c := r.check(f)

	for _, q := range []string{FieldSecurityQuestion1, FieldSecurityQuestion2} {
		v := c.text(q)
		switch {
		case v == "":
			c.fail(q, "validation.question_required")
		case !oneOf(v, SecurityQuestions):
			c.fail(q, "validation.question_unknown")
		}
	}

	q1, q2 := c.text(FieldSecurityQuestion1), c.text(FieldSecurityQuestion2)
	if q1 != "" && q1 == q2 {
		c.fail(FieldSecurityQuestion2, "validation.question_duplicate")
	}

	for _, a := range []string{FieldSecurityAnswer1, FieldSecurityAnswer2} {
		if c.text(a) == "" {
			c.fail(a, "validation.answer_required")
		}
	}
	return c.result()
}

// Situation checks the marital status selection
func (r *Rules) Situation(f Form) map[string]string {
	c := r.check(f)
	c.choice(FieldSituationFamiliale, MaritalStatuses)
	return c.result()
}

// Filiation checks both parents' names
func (r *Rules) Filiation(f Form) map[string]string {
	c := r.check(f)
	c.required(FieldPrenomPere, FieldNomPere, FieldPrenomMere, FieldNomMere)
	return c.result()
}

// Birth checks date and place of birth and the minimum age
func (r *Rules) Birth(f Form) map[string]string {
	c := r.check(f)

	if dob, ok := c.date(FieldDateNaissance); ok && AgeInYears(dob, r.now()) < MinimumAge {
		c.fail(FieldDateNaissance, "validation.underage")
	}
	c.required(FieldWilayaNaissance, FieldCommuneNaissance)
	return c.result()
}

// Address checks the residential address and its postal code
func (r *Rules) Address(f Form) map[string]string {
	c := r.check(f)

	c.required(FieldAdresseRue, FieldAdresseWilaya, FieldAdresseCommune)
	if c.required(FieldCodePostal) && !PostalCode(c.text(FieldCodePostal)) {
		c.fail(FieldCodePostal, "validation.postal_code")
	}
	return c.result()
}

// Profession checks employment details; the salary must be a positive amount
func (r *Rules) Profession(f Form) map[string]string {
	c := r.check(f)

	c.required(FieldProfession, FieldSecteurActivite, FieldEmployeur)
	if c.required(FieldSalaire) {
		amount, err := decimal.NewFromString(strings.ReplaceAll(c.text(FieldSalaire), " ", ""))
		if err != nil || !amount.IsPositive() {
			c.fail(FieldSalaire, "validation.amount_invalid")
		}
	}
	c.date(FieldDateEmbauche)
	return c.result()
}

// Choice checks a branch selector or any other enumerated field
func (r *Rules) Choice(field string, allowed []string) func(Form) map[string]string {
	return func(f Form) map[string]string {
		c := r.check(f)
		c.choice(field, allowed)
		return c.result()
	}
}

// Evidence checks that each field holds an artifact
func (r *Rules) Evidence(fields ...string) func(Form) map[string]string {
	return func(f Form) map[string]string {
		c := r.check(f)
		c.evidence(fields...)
		return c.result()
	}
}

// Residence checks the proof type and its artifact
func (r *Rules) Residence(f Form) map[string]string {
	c := r.check(f)
	c.choice(FieldResidenceType, ResidenceTypes)
	c.evidence(FieldResidenceProof)
	return c.result()
}

// Contract checks that the conditions were accepted
func (r *Rules) Contract(f Form) map[string]string {
	c := r.check(f)
	if !f.Flag(FieldAcceptConditions) {
		c.fail(FieldAcceptConditions, "validation.conditions")
	}
	return c.result()
}

// Credentials checks the back-office sign-in form
func (r *Rules) Credentials(f Form) map[string]string {
	c := r.check(f)
	if c.required(FieldAdminEmail) && !Email(c.text(FieldAdminEmail)) {
		c.fail(FieldAdminEmail, "validation.email_format")
	}
	c.required(FieldAdminPassword)
	return c.result()
}

// TwoFactor checks the 6-digit authenticator code
func (r *Rules) TwoFactor(f Form) map[string]string {
	c := r.check(f)
	if !twoFactorPattern.MatchString(c.text(FieldTwoFactorCode)) {
		c.fail(FieldTwoFactorCode, "validation.otp_incomplete")
	}
	return c.result()
}

// Application checks that a dossier was picked for review
func (r *Rules) Application(f Form) map[string]string {
	c := r.check(f)
	if c.text(FieldApplicationID) == "" {
		c.fail(FieldApplicationID, "validation.select_required", c.label(FieldApplicationID))
	}
	return c.result()
}

// DocumentReview checks that every document received a status
func (r *Rules) DocumentReview(fields ...string) func(Form) map[string]string {
	return func(f Form) map[string]string {
		c := r.check(f)
		for _, field := range fields {
			if !oneOf(c.text(field), ReviewStatuses) {
				c.fail(field, "validation.review_status", map[string]string{
					"document": r.loc.T("fields." + field),
				})
			}
		}
		return c.result()
	}
}

// Rejection checks the category and the mandatory comment of a rejection
func (r *Rules) Rejection(f Form) map[string]string {
	c := r.check(f)
	c.choice(FieldRejectCategory, RejectCategories)
	if c.text(FieldRejectComment) == "" {
		c.fail(FieldRejectComment, "validation.comment_required")
	}
	return c.result()
}
