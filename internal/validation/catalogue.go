package validation

// SecurityQuestions is the fixed catalogue offered on the signup security step.
// Values are question IDs; labels live under security_questions.<id>.
var SecurityQuestions = []string{"school", "pet", "street", "friend", "phone"}

// Branch and choice values
var (
	MaritalStatuses  = []string{"celibataire", "marie", "divorce", "veuf"}
	DocumentTypes    = []string{DocumentCNI, DocumentPassport, DocumentPermis}
	ResidenceTypes   = []string{"facture", "contrat"}
	SelfieModes      = []string{SelfiePhotoMode, SelfieVideoMode}
	ReviewStatuses   = []string{ReviewApproved, ReviewRejected}
	Decisions        = []string{DecisionApprove, DecisionReject}
	RejectCategories = []string{"document_illisible", "document_expire", "incoherence", "fraude_suspectee", "autre"}
)

const (
	DocumentCNI      = "cni"
	DocumentPassport = "passport"
	DocumentPermis   = "permis"

	SelfiePhotoMode = "photo"
	SelfieVideoMode = "video"

	ReviewApproved = "approved"
	ReviewRejected = "rejected"

	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
