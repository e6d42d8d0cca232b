package insurance

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/uptrace/bun"
)

// DateLayout is the calendar date format used by every date field
const DateLayout = "2006-01-02"

// Account is the user model
type Account struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	FullName      string    `bun:"full_name,notnull" json:"full_name"`
	Role          Role      `bun:"role,notnull" json:"role"`
	Phone         string    `bun:"phone" json:"phone,omitempty"`
	Address       string    `bun:"address" json:"address,omitempty"`
	DateOfBirth   string    `bun:"date_of_birth" json:"date_of_birth,omitempty"`
	IsActive      bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Sanitized returns a copy without the credential digest
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.PasswordHash = ""
	return &out
}

// PolicyStatus is the persisted policy status
type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicyInactive  PolicyStatus = "inactive"
	PolicySuspended PolicyStatus = "suspended"
	PolicyCancelled PolicyStatus = "cancelled"
)

// PolicyStatuses lists every valid policy status
var PolicyStatuses = []PolicyStatus{PolicyActive, PolicyInactive, PolicySuspended, PolicyCancelled}

func (s PolicyStatus) IsValid() bool {
	return lo.Contains(PolicyStatuses, s)
}

// PayerProgram identifies who pays for the coverage
type PayerProgram string

const (
	ProgramMedicare        PayerProgram = "medicare"
	ProgramMedicaid        PayerProgram = "medicaid"
	ProgramCommercial      PayerProgram = "commercial"
	ProgramOtherGovernment PayerProgram = "other_government"
)

// PayerPrograms lists every valid payer program
var PayerPrograms = []PayerProgram{ProgramMedicare, ProgramMedicaid, ProgramCommercial, ProgramOtherGovernment}

func (p PayerProgram) IsValid() bool {
	return lo.Contains(PayerPrograms, p)
}

// Policy is a coverage contract owned by one account
type Policy struct {
	bun.BaseModel    `bun:"table:policies,alias:pol"`
	ID               uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	PolicyNumber     string       `bun:"policy_number,notnull,unique" json:"policy_number"`
	UserID           uuid.UUID    `bun:"user_id,notnull,type:uuid" json:"user_id"`
	PolicyType       string       `bun:"policy_type,notnull" json:"policy_type"`
	CoverageAmount   float64      `bun:"coverage_amount,notnull" json:"coverage_amount"`
	PremiumAmount    float64      `bun:"premium_amount,notnull" json:"premium_amount"`
	DeductibleAmount float64      `bun:"deductible_amount,notnull" json:"deductible_amount"`
	OutOfPocketMax   float64      `bun:"out_of_pocket_max,notnull" json:"out_of_pocket_max"`
	Status           PolicyStatus `bun:"status,notnull" json:"status"`
	PayerProgram     PayerProgram `bun:"payer_program,notnull" json:"payer_program"`
	PayerName        string       `bun:"payer_name" json:"payer_name,omitempty"`
	PayerID          string       `bun:"payer_id" json:"payer_id,omitempty"`
	PlanName         string       `bun:"plan_name" json:"plan_name,omitempty"`
	MedicarePart     string       `bun:"medicare_part" json:"medicare_part,omitempty"`
	MedicaidState    string       `bun:"medicaid_state" json:"medicaid_state,omitempty"`
	StartDate        string       `bun:"start_date,notnull" json:"start_date"`
	EndDate          string       `bun:"end_date,notnull" json:"end_date"`
	CreatedBy        uuid.UUID    `bun:"created_by,notnull,type:uuid" json:"created_by"`
	CreatedAt        time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time    `bun:"updated_at,notnull" json:"updated_at"`
}

// IsActiveOn reports whether the policy is active and day falls inside
// its coverage window. Both boundary dates count as covered.
func (p *Policy) IsActiveOn(day time.Time) bool {
	if p == nil || p.Status != PolicyActive {
		return false
	}

	start, err := ParseDate(p.StartDate)
	if err != nil {
		return false
	}
	end, err := ParseDate(p.EndDate)
	if err != nil {
		return false
	}

	today := truncateDay(day)
	return !today.Before(start) && !today.After(end)
}

// ClaimStatus is the persisted claim status
type ClaimStatus string

const (
	ClaimSubmitted   ClaimStatus = "submitted"
	ClaimUnderReview ClaimStatus = "under_review"
	ClaimApproved    ClaimStatus = "approved"
	ClaimDenied      ClaimStatus = "denied"
	ClaimPaid        ClaimStatus = "paid"
)

// ClaimStatuses lists every valid claim status
var ClaimStatuses = []ClaimStatus{ClaimSubmitted, ClaimUnderReview, ClaimApproved, ClaimDenied, ClaimPaid}

func (s ClaimStatus) IsValid() bool {
	return lo.Contains(ClaimStatuses, s)
}

// Claim is a reimbursement request against one policy
type Claim struct {
	bun.BaseModel    `bun:"table:claims,alias:clm"`
	ID               uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	ClaimNumber      string      `bun:"claim_number,notnull,unique" json:"claim_number"`
	PolicyID         uuid.UUID   `bun:"policy_id,notnull,type:uuid" json:"policy_id"`
	UserID           uuid.UUID   `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ClaimAmount      float64     `bun:"claim_amount,notnull" json:"claim_amount"`
	ApprovedAmount   float64     `bun:"approved_amount,notnull" json:"approved_amount"`
	Status           ClaimStatus `bun:"status,notnull" json:"status"`
	Diagnosis        string      `bun:"diagnosis,notnull" json:"diagnosis"`
	TreatmentDetails string      `bun:"treatment_details,notnull" json:"treatment_details"`
	ProviderName     string      `bun:"provider_name,notnull" json:"provider_name"`
	ServiceDate      string      `bun:"service_date,notnull" json:"service_date"`
	ReviewedBy       *uuid.UUID  `bun:"reviewed_by,type:uuid" json:"reviewed_by"`
	ReviewedAt       *time.Time  `bun:"reviewed_at" json:"reviewed_at"`
	ReviewNotes      *string     `bun:"review_notes" json:"review_notes"`
	CreatedAt        time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, raw)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
