package insurance

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

const (
	msgClaimPositive     = "Claim amount must be positive"
	msgServiceDateFormat = "Invalid service date format. Use YYYY-MM-DD"
	msgServiceDateFuture = "Service date cannot be in the future"
	msgClaimStatus       = "Invalid status. Must be one of: submitted, under_review, approved, denied, paid"
)

// ClaimInput is the claim submission payload
type ClaimInput struct {
	PolicyID         *uuid.UUID `json:"policy_id"`
	ClaimAmount      *float64   `json:"claim_amount"`
	Diagnosis        string     `json:"diagnosis"`
	TreatmentDetails string     `json:"treatment_details"`
	ProviderName     string     `json:"provider_name"`
	ServiceDate      string     `json:"service_date"`
}

// Validate checks presence, the amount and that the service date is a
// real date no later than today
func (in ClaimInput) Validate(today time.Time) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.PolicyID, validation.NotNil.Error("policy_id is required")),
		validation.Field(&in.ClaimAmount,
			validation.NotNil.Error("claim_amount is required"),
			validation.By(Positive(msgClaimPositive)),
		),
		validation.Field(&in.Diagnosis, validation.Required.Error("diagnosis is required")),
		validation.Field(&in.TreatmentDetails, validation.Required.Error("treatment_details is required")),
		validation.Field(&in.ProviderName, validation.Required.Error("provider_name is required")),
		validation.Field(&in.ServiceDate,
			validation.Required.Error("service_date is required"),
			validation.By(CalendarDate(msgServiceDateFormat)),
			validation.By(notAfter(today, msgServiceDateFuture)),
		),
	)
	return validationFailure(err,
		"policy_id", "claim_amount", "diagnosis",
		"treatment_details", "provider_name", "service_date",
	)
}

// ReviewDecision is the payload of a claim review
type ReviewDecision struct {
	Status         ClaimStatus `json:"status"`
	ApprovedAmount *float64    `json:"approved_amount"`
	ReviewNotes    *string     `json:"review_notes"`
}

// ClaimManager validates, persists and reviews claims
type ClaimManager struct {
	claims   Claims
	policies *PolicyManager
	machine  ClaimStateMachine
	numbers  *NumberGenerator
	now      Clock
	logger   Logger
}

// NewClaimManager creates a claim manager. Policy activity checks go
// through policies.
func NewClaimManager(claims Claims, policies *PolicyManager, opts ...Option) *ClaimManager {
	s := newSettings(opts)
	return &ClaimManager{
		claims:   claims,
		policies: policies,
		machine:  NewClaimStateMachine(claims, WithStateMachineLogger(s.logger)),
		numbers:  s.claimNumbers,
		now:      s.now,
		logger:   s.logger,
	}
}

// Validate checks a claim payload against the current date
func (m *ClaimManager) Validate(in ClaimInput) error {
	return in.Validate(m.now())
}

// Create submits a claim on behalf of submitterID, who must own the
// referenced policy while it is active
func (m *ClaimManager) Create(ctx context.Context, in ClaimInput, submitterID uuid.UUID) (*Claim, error) {
	if err := m.Validate(in); err != nil {
		return nil, err
	}

	policy, err := m.policies.Get(ctx, *in.PolicyID)
	if err != nil {
		return nil, err
	}

	if policy.UserID != submitterID {
		return nil, ErrNotPolicyOwner
	}

	active, err := m.policies.IsActive(ctx, policy.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrPolicyNotActive
	}

	record := &Claim{
		PolicyID:         policy.ID,
		UserID:           submitterID,
		ClaimAmount:      *in.ClaimAmount,
		ApprovedAmount:   0,
		Status:           ClaimSubmitted,
		Diagnosis:        strings.TrimSpace(in.Diagnosis),
		TreatmentDetails: strings.TrimSpace(in.TreatmentDetails),
		ProviderName:     strings.TrimSpace(in.ProviderName),
		ServiceDate:      in.ServiceDate,
	}

	var created *Claim
	err = m.numbers.Reserve(ctx, m.claims.NumberExists, func(ctx context.Context, number string) error {
		candidate := *record
		candidate.ClaimNumber = number
		out, err := m.claims.Create(ctx, &candidate)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		if HasTextCode(err, TextCodeNumberSpaceFull) {
			m.logger.Error("claim number space exhausted", "attempts", m.numbers.Attempts())
		}
		return nil, err
	}

	m.logger.Info("claim submitted", "claim_id", created.ID, "claim_number", created.ClaimNumber, "policy_id", policy.ID)
	return created, nil
}

// Get returns the claim or ErrClaimNotFound
func (m *ClaimManager) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	claim, err := m.claims.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return claim, nil
}

// ListByUser returns the claims submitted by userID
func (m *ClaimManager) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Claim, error) {
	return m.claims.List(ctx, ClaimFilter{UserID: userID})
}

// ListAll returns every claim
func (m *ClaimManager) ListAll(ctx context.Context) ([]*Claim, error) {
	return m.claims.List(ctx, ClaimFilter{})
}

// Review records a reviewer decision. Only approvals keep an approved
// amount, which must lie between zero and the claimed amount. Nothing is
// written when a check fails.
func (m *ClaimManager) Review(ctx context.Context, id uuid.UUID, decision ReviewDecision, reviewerID uuid.UUID) (*Claim, error) {
	claim, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !m.machine.CanTransition(claim.Status, decision.Status) {
		return nil, ErrInvalidReviewStatus
	}

	approved := 0.0
	if decision.Status == ClaimApproved {
		if decision.ApprovedAmount == nil {
			return nil, ErrApprovedAmountRequired
		}
		approved = *decision.ApprovedAmount
		if approved < 0 {
			return nil, ErrNegativeApprovedAmount
		}
		if approved > claim.ClaimAmount {
			return nil, Detailed(ErrApprovedAmountExceedsClaim, map[string]any{
				"approved_amount": approved,
				"claim_amount":    claim.ClaimAmount,
			})
		}
	}

	notes := ""
	if decision.ReviewNotes != nil {
		notes = *decision.ReviewNotes
	}
	reviewedAt := m.now()

	actor := ActorRef{ID: reviewerID, Type: "reviewer"}
	return m.machine.Transition(ctx, actor, claim, decision.Status,
		WithBeforeTransitionHook(func(_ context.Context, tc TransitionContext) error {
			tc.Claim.ApprovedAmount = approved
			tc.Claim.ReviewedBy = &reviewerID
			tc.Claim.ReviewedAt = &reviewedAt
			tc.Claim.ReviewNotes = &notes
			return nil
		}),
		WithTransitionColumns("approved_amount", "reviewed_by", "reviewed_at", "review_notes"),
	)
}

// UpdateStatus moves a claim to any status without touching amounts or
// reviewer fields. This is the administrator escape hatch: a claim can
// reach paid without ever being approved.
func (m *ClaimManager) UpdateStatus(ctx context.Context, id uuid.UUID, status ClaimStatus, actor ActorRef) (*Claim, error) {
	if !status.IsValid() {
		return nil, NewValidationError(msgClaimStatus).WithTextCode(TextCodeInvalidStatus)
	}

	claim, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if status != claim.Status {
		m.logger.Warn("claim status forced", "claim_id", id, "from", claim.Status, "to", status, "actor", actor.ID)
	}

	return m.machine.Transition(ctx, actor, claim, status, WithForceTransition())
}

func notAfter(today time.Time, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := stringValue(value)
		day, err := ParseDate(s)
		if err != nil {
			return nil
		}
		if day.After(truncateDay(today)) {
			return errors.New(message)
		}
		return nil
	}
}
