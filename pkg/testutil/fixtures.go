package testutil

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/agb-digital/onboarding/internal/validation"
)

// Applicant is a fake adult customer whose answers pass every signup and
// KYC rule
type Applicant struct {
	FirstName   string
	LastName    string
	Email       string
	CountryCode string
	Phone       string
	Password    string
	BirthDate   time.Time
	FatherName  string
	MotherName  string
	Street      string
	PostalCode  string
	Profession  string
	Employer    string
}

// NewApplicant returns an applicant of at least 25 years at now
func NewApplicant(now time.Time) Applicant {
	return Applicant{
		FirstName:   gofakeit.FirstName(),
		LastName:    gofakeit.LastName(),
		Email:       gofakeit.Email(),
		CountryCode: "213",
		Phone:       gofakeit.Numerify("7########"),
		Password:    "Aa1!" + gofakeit.LetterN(6),
		BirthDate:   now.AddDate(-25-gofakeit.Number(0, 30), -gofakeit.Number(0, 11), 0),
		FatherName:  gofakeit.FirstName(),
		MotherName:  gofakeit.FirstName(),
		Street:      gofakeit.Street(),
		PostalCode:  gofakeit.Numerify("16###"),
		Profession:  gofakeit.JobTitle(),
		Employer:    gofakeit.Company(),
	}
}

// SignupScreens returns the text answers of each signup screen before the
// terminal confirmation, in order
func (a Applicant) SignupScreens() []map[string]string {
	return []map[string]string{
		{validation.FieldNom: a.LastName, validation.FieldPrenom: a.FirstName},
		{validation.FieldEmail: a.Email, validation.FieldCountryCode: a.CountryCode, validation.FieldTelephone: a.Phone},
		{validation.FieldPassword: a.Password, validation.FieldPasswordConfirm: a.Password},
		{validation.FieldOTPCode: gofakeit.Numerify("######")},
		{
			validation.FieldSecurityQuestion1: "school",
			validation.FieldSecurityAnswer1:   gofakeit.Word(),
			validation.FieldSecurityQuestion2: "pet",
			validation.FieldSecurityAnswer2:   gofakeit.PetName(),
		},
	}
}

// KYCProfileScreens returns the answers of the KYC steps that precede the
// document uploads, in order
func (a Applicant) KYCProfileScreens() []map[string]string {
	return []map[string]string{
		{validation.FieldSituationFamiliale: gofakeit.RandomString(validation.MaritalStatuses)},
		{
			validation.FieldPrenomPere: a.FatherName,
			validation.FieldNomPere:    a.LastName,
			validation.FieldPrenomMere: a.MotherName,
			validation.FieldNomMere:    gofakeit.LastName(),
		},
		{
			validation.FieldDateNaissance:    a.BirthDate.Format(validation.DateLayout),
			validation.FieldPaysNaissance:    "Algérie",
			validation.FieldWilayaNaissance:  "Alger",
			validation.FieldCommuneNaissance: "Bab El Oued",
		},
		{
			validation.FieldAdresseRue:     a.Street,
			validation.FieldAdresseWilaya:  "Alger",
			validation.FieldAdresseCommune: "Alger Centre",
			validation.FieldCodePostal:     a.PostalCode,
		},
		{
			validation.FieldProfession:      a.Profession,
			validation.FieldSecteurActivite: gofakeit.JobDescriptor(),
			validation.FieldEmployeur:       a.Employer,
			validation.FieldSalaire:         gofakeit.Numerify("#####") + "1",
			validation.FieldDateEmbauche:    a.BirthDate.AddDate(22, 0, 0).Format(validation.DateLayout),
		},
	}
}
