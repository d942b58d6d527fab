package validation

// Form field names shared by the wizard flows and their rules
const (
	FieldNom               = "nom"
	FieldPrenom            = "prenom"
	FieldEmail             = "email"
	FieldCountryCode       = "countryCode"
	FieldTelephone         = "telephone"
	FieldPassword          = "password"
	FieldPasswordConfirm   = "passwordConfirm"
	FieldOTPCode           = "otpCode"
	FieldSecurityQuestion1 = "securityQuestion1"
	FieldSecurityAnswer1   = "securityAnswer1"
	FieldSecurityQuestion2 = "securityQuestion2"
	FieldSecurityAnswer2   = "securityAnswer2"

	FieldSituationFamiliale = "situationFamiliale"
	FieldPrenomPere         = "prenomPere"
	FieldNomPere            = "nomPere"
	FieldPrenomMere         = "prenomMere"
	FieldNomMere            = "nomMere"
	FieldDateNaissance      = "dateNaissance"
	FieldPaysNaissance      = "paysNaissance"
	FieldWilayaNaissance    = "wilayaNaissance"
	FieldCommuneNaissance   = "communeNaissance"
	FieldAdresseRue         = "adresseRue"
	FieldAdresseWilaya      = "adresseWilaya"
	FieldAdresseCommune     = "adresseCommune"
	FieldCodePostal         = "codePostal"
	FieldProfession         = "profession"
	FieldSecteurActivite    = "secteurActivite"
	FieldEmployeur          = "employeur"
	FieldSalaire            = "salaire"
	FieldDateEmbauche       = "dateEmbauche"
	FieldDocumentType       = "documentType"
	FieldRecto              = "recto"
	FieldVerso              = "verso"
	FieldPassport           = "passport"
	FieldPermis             = "permis"
	FieldBirthCertificate   = "birthCertificate"
	FieldResidenceType      = "residenceType"
	FieldResidenceProof     = "residenceProof"
	FieldSelfieMode         = "selfieMode"
	FieldSelfiePhoto        = "selfiePhoto"
	FieldSelfieVideo        = "selfieVideo"
	FieldAcceptConditions   = "acceptConditions"

	FieldAdminEmail             = "adminEmail"
	FieldAdminPassword          = "adminPassword"
	FieldTwoFactorCode          = "twoFactorCode"
	FieldApplicationID          = "applicationId"
	FieldReviewIdentity         = "reviewIdentity"
	FieldReviewBirthCertificate = "reviewBirthCertificate"
	FieldReviewResidence        = "reviewResidence"
	FieldReviewSelfie           = "reviewSelfie"
	FieldDecision               = "decision"
	FieldApprovalNote           = "approvalNote"
	FieldRejectCategory         = "rejectCategory"
	FieldRejectComment          = "rejectComment"
)
