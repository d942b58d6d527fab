package submission

import (
	"io"

	"github.com/shopspring/decimal"
)

// SecurityAnswer is one security question and its answer
type SecurityAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Registration is the signup payload
type Registration struct {
	Username          string           `json:"username"`
	Email             string           `json:"email"`
	Password          string           `json:"password"`
	FirstName         string           `json:"first_name"`
	LastName          string           `json:"last_name"`
	Phone             string           `json:"phone"`
	SecurityQuestions []SecurityAnswer `json:"security_questions"`
}

// Credentials for the login endpoint
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by register, login and 2FA verification
type AuthResult struct {
	Token   string `json:"token"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// User is the authenticated profile
type User struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Role             string `json:"role"`
	AccountStatus    string `json:"account_status"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	BiometricEnabled bool   `json:"biometric_enabled"`
	CreatedAt        string `json:"created_at"`
}

// Roles allowed into the back-office
const (
	RoleUser     = "user"
	RoleAdmin    = "admin"
	RoleDirector = "director"
)

// IsStaff reports whether the user may review applications
func (u User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleDirector
}

// DocumentUpload is one piece of evidence sent as multipart form data
type DocumentUpload struct {
	DocumentType string
	Field        string
	FileName     string
	ContentType  string
	Body         io.Reader
}

// UploadReceipt acknowledges a document upload
type UploadReceipt struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// Progress statuses
const (
	ProgressPending    = "pending"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
	ProgressRejected   = "rejected"
)

// ProgressOrder is the backend's application pipeline
var ProgressOrder = []string{
	"registration",
	"personal_info",
	"document_upload",
	"document_verification",
	"kyc_check",
	"risk_assessment",
	"contract_signature",
	"account_activation",
	"welcome",
}

// ProgressStep is one stage of a submitted application
type ProgressStep struct {
	Step        string `json:"step"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ApplicationProgress lists the stages reached so far
type ApplicationProgress struct {
	Steps []ProgressStep `json:"steps"`
}

// Status returns the status of a pipeline stage, pending when absent
func (p ApplicationProgress) Status(step string) string {
	for _, s := range p.Steps {
		if s.Step == step {
			return s.Status
		}
	}
	return ProgressPending
}

// Percent is the share of completed stages over the whole pipeline
func (p ApplicationProgress) Percent() float64 {
	done := 0
	for _, s := range p.Steps {
		if s.Status == ProgressCompleted {
			done++
		}
	}
	return float64(done) / float64(len(ProgressOrder)) * 100
}

// Current is the 1-based position of the first stage not yet completed
func (p ApplicationProgress) Current() int {
	for i, step := range ProgressOrder {
		switch p.Status(step) {
		case ProgressPending, ProgressInProgress:
			return i + 1
		}
	}
	return len(ProgressOrder)
}

// DocumentRef points at an uploaded document inside a KYC application
type DocumentRef struct {
	Kind       string `json:"kind"`
	Field      string `json:"field"`
	DocumentID string `json:"document_id,omitempty"`
	FileName   string `json:"file_name"`
}

// KYCApplication is the final KYC submission
type KYCApplication struct {
	PersonalInfo map[string]string `json:"personal_info"`
	Documents    []DocumentRef     `json:"documents"`
}

// KYCResult is the backend verdict on a KYC submission
type KYCResult struct {
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// Account is a bank account of the user
type Account struct {
	ID            int64           `json:"id"`
	AccountType   string          `json:"account_type"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
}

// Transaction is a ledger movement
type Transaction struct {
	ID              int64           `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType string          `json:"transaction_type"`
	Description     string          `json:"description"`
	CreatedAt       string          `json:"created_at"`
	Status          string          `json:"status"`
}

// Signed returns the amount with deposits positive and everything else negative
func (t Transaction) Signed() decimal.Decimal {
	if t.TransactionType == "deposit" {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Notification tracks a backend process for the user
type Notification struct {
	ID          int64  `json:"id"`
	ProcessType string `json:"process_type"`
	Status      string `json:"status"`
	LastStep    string `json:"last_step"`
	CreatedAt   string `json:"created_at"`
}

// Offer is a product recommendation
type Offer struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// ChatReply is the chatbot answer
type ChatReply struct {
	Response string `json:"response"`
}
