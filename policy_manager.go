package insurance

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	msgCoveragePositive  = "Coverage amount must be positive"
	msgPremiumPositive   = "Premium amount must be positive"
	msgEndAfterStart     = "End date must be after start date"
	msgInvalidDate       = "Invalid date format. Use YYYY-MM-DD"
	msgPolicyStatus      = "Status must be one of: active, inactive, suspended, cancelled"
	msgPayerProgram      = "Invalid payer_program. Must be one of: medicare, medicaid, commercial, other_government"
	msgDeductibleNonNeg  = "Deductible amount cannot be negative"
	msgOutOfPocketNonNeg = "Out of pocket maximum cannot be negative"
)

// PolicyInput is the payload used to create a policy
type PolicyInput struct {
	UserID           *uuid.UUID   `json:"user_id"`
	PolicyType       string       `json:"policy_type"`
	CoverageAmount   *float64     `json:"coverage_amount"`
	PremiumAmount    *float64     `json:"premium_amount"`
	Status           PolicyStatus `json:"status"`
	StartDate        string       `json:"start_date"`
	EndDate          string       `json:"end_date"`
	PayerProgram     PayerProgram `json:"payer_program"`
	PayerName        string       `json:"payer_name"`
	PayerID          string       `json:"payer_id"`
	PlanName         string       `json:"plan_name"`
	DeductibleAmount *float64     `json:"deductible_amount"`
	OutOfPocketMax   *float64     `json:"out_of_pocket_max"`
	MedicarePart     string       `json:"medicare_part"`
	MedicaidState    string       `json:"medicaid_state"`
}

// Validate checks presence, amounts, the date range and enumerations
func (in PolicyInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.UserID, validation.NotNil.Error("user_id is required")),
		validation.Field(&in.PolicyType, validation.Required.Error("policy_type is required")),
		validation.Field(&in.CoverageAmount,
			validation.NotNil.Error("coverage_amount is required"),
			validation.By(Positive(msgCoveragePositive)),
		),
		validation.Field(&in.PremiumAmount,
			validation.NotNil.Error("premium_amount is required"),
			validation.By(Positive(msgPremiumPositive)),
		),
		validation.Field(&in.StartDate,
			validation.Required.Error("start_date is required"),
			validation.By(CalendarDate(msgInvalidDate)),
		),
		validation.Field(&in.EndDate,
			validation.Required.Error("end_date is required"),
			validation.By(CalendarDate(msgInvalidDate)),
			validation.By(endAfter(in.StartDate)),
		),
		validation.Field(&in.Status, validation.By(policyStatusRule)),
		validation.Field(&in.PayerProgram, validation.By(payerProgramRule)),
		validation.Field(&in.DeductibleAmount, validation.By(NonNegative(msgDeductibleNonNeg))),
		validation.Field(&in.OutOfPocketMax, validation.By(NonNegative(msgOutOfPocketNonNeg))),
	)
	return validationFailure(err,
		"user_id", "policy_type", "coverage_amount", "premium_amount",
		"start_date", "end_date", "status", "payer_program",
		"deductible_amount", "out_of_pocket_max",
	)
}

// PolicyPatch holds the fields an update may touch. Absent fields are nil.
// policy_number, id, created_at and created_by are not patchable and are
// silently dropped when present in a payload.
type PolicyPatch struct {
	UserID           *uuid.UUID    `json:"user_id"`
	PolicyType       *string       `json:"policy_type"`
	CoverageAmount   *float64      `json:"coverage_amount"`
	PremiumAmount    *float64      `json:"premium_amount"`
	Status           *PolicyStatus `json:"status"`
	StartDate        *string       `json:"start_date"`
	EndDate          *string       `json:"end_date"`
	PayerProgram     *PayerProgram `json:"payer_program"`
	PayerName        *string       `json:"payer_name"`
	PayerID          *string       `json:"payer_id"`
	PlanName         *string       `json:"plan_name"`
	DeductibleAmount *float64      `json:"deductible_amount"`
	OutOfPocketMax   *float64      `json:"out_of_pocket_max"`
	MedicarePart     *string       `json:"medicare_part"`
	MedicaidState    *string       `json:"medicaid_state"`
}

// ProgramStats summarizes policies per payer program
type ProgramStats struct {
	Program       PayerProgram `json:"payer_program"`
	Total         int          `json:"total"`
	Active        int          `json:"active"`
	TotalCoverage float64      `json:"total_coverage"`
	TotalPremiums float64      `json:"total_premiums"`
}

// PolicyManager validates, persists and evaluates policies
type PolicyManager struct {
	policies Policies
	accounts Accounts
	numbers  *NumberGenerator
	now      Clock
	logger   Logger
}

// NewPolicyManager creates a policy manager
func NewPolicyManager(policies Policies, accounts Accounts, opts ...Option) *PolicyManager {
	s := newSettings(opts)
	return &PolicyManager{
		policies: policies,
		accounts: accounts,
		numbers:  s.policyNumbers,
		now:      s.now,
		logger:   s.logger,
	}
}

// Validate checks a policy payload without touching the store
func (m *PolicyManager) Validate(in PolicyInput) error {
	return in.Validate()
}

// Create validates input, checks the owner exists and stores the policy
// under a freshly drawn policy number
func (m *PolicyManager) Create(ctx context.Context, in PolicyInput, creatorID uuid.UUID) (*Policy, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := m.accounts.GetByID(ctx, *in.UserID); err != nil {
		if IsNotFound(err) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}

	record := &Policy{
		UserID:         *in.UserID,
		PolicyType:     strings.TrimSpace(in.PolicyType),
		CoverageAmount: *in.CoverageAmount,
		PremiumAmount:  *in.PremiumAmount,
		Status:         lo.Ternary(in.Status == "", PolicyActive, in.Status),
		PayerProgram:   lo.Ternary(in.PayerProgram == "", ProgramCommercial, in.PayerProgram),
		PayerName:      in.PayerName,
		PayerID:        in.PayerID,
		PlanName:       in.PlanName,
		MedicarePart:   in.MedicarePart,
		MedicaidState:  in.MedicaidState,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		CreatedBy:      creatorID,
	}
	if in.DeductibleAmount != nil {
		record.DeductibleAmount = *in.DeductibleAmount
	}
	if in.OutOfPocketMax != nil {
		record.OutOfPocketMax = *in.OutOfPocketMax
	}

	var created *Policy
	err := m.numbers.Reserve(ctx, m.policies.NumberExists, func(ctx context.Context, number string) error {
		candidate := *record
		candidate.PolicyNumber = number
		out, err := m.policies.Create(ctx, &candidate)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		if HasTextCode(err, TextCodeNumberSpaceFull) {
			m.logger.Error("policy number space exhausted", "attempts", m.numbers.Attempts())
		}
		return nil, err
	}

	m.logger.Info("policy created", "policy_id", created.ID, "policy_number", created.PolicyNumber, "created_by", creatorID)
	return created, nil
}

// Get returns the policy or ErrPolicyNotFound
func (m *PolicyManager) Get(ctx context.Context, id uuid.UUID) (*Policy, error) {
	policy, err := m.policies.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return policy, nil
}

// ListByOwner returns the policies owned by ownerID
func (m *PolicyManager) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Policy, error) {
	return m.policies.List(ctx, PolicyFilter{UserID: ownerID})
}

// ListAll returns every policy
func (m *PolicyManager) ListAll(ctx context.Context) ([]*Policy, error) {
	return m.policies.List(ctx, PolicyFilter{})
}

// List returns policies matching filter
func (m *PolicyManager) List(ctx context.Context, filter PolicyFilter) ([]*Policy, error) {
	if filter.PayerProgram != "" && !filter.PayerProgram.IsValid() {
		return nil, NewValidationError(msgPayerProgram)
	}
	return m.policies.List(ctx, filter)
}

// Update applies patch to the current record. The merged record is
// re-validated so partial updates cannot break the date range.
func (m *PolicyManager) Update(ctx context.Context, id uuid.UUID, patch PolicyPatch) (*Policy, error) {
	current, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.UserID != nil && *patch.UserID != current.UserID {
		if _, err := m.accounts.GetByID(ctx, *patch.UserID); err != nil {
			if IsNotFound(err) {
				return nil, ErrOwnerNotFound
			}
			return nil, err
		}
	}

	merged, columns := applyPolicyPatch(*current, patch)
	if len(columns) == 0 {
		return current, nil
	}

	if err := policyInputOf(merged).Validate(); err != nil {
		return nil, err
	}

	updated, err := m.policies.Update(ctx, &merged, columns...)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return updated, nil
}

// UpdateStatus changes only the status
func (m *PolicyManager) UpdateStatus(ctx context.Context, id uuid.UUID, status PolicyStatus) (*Policy, error) {
	if !status.IsValid() {
		return nil, NewValidationError(msgPolicyStatus)
	}
	return m.Update(ctx, id, PolicyPatch{Status: &status})
}

// IsActive evaluates the policy against today's date. Missing policies are
// never active.
func (m *PolicyManager) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	policy, err := m.policies.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return policy.IsActiveOn(m.now()), nil
}

// ProgramStats aggregates policies per payer program. Every program is
// present in the result even without policies.
func (m *PolicyManager) ProgramStats(ctx context.Context) (map[PayerProgram]ProgramStats, error) {
	policies, err := m.policies.List(ctx, PolicyFilter{})
	if err != nil {
		return nil, err
	}

	today := m.now()
	stats := lo.SliceToMap(PayerPrograms, func(p PayerProgram) (PayerProgram, ProgramStats) {
		return p, ProgramStats{Program: p}
	})

	for _, policy := range policies {
		program := policy.PayerProgram
		if !program.IsValid() {
			program = ProgramCommercial
		}
		entry := stats[program]
		entry.Total++
		entry.TotalCoverage += policy.CoverageAmount
		entry.TotalPremiums += policy.PremiumAmount
		if policy.IsActiveOn(today) {
			entry.Active++
		}
		stats[program] = entry
	}
	return stats, nil
}

func applyPolicyPatch(p Policy, patch PolicyPatch) (Policy, []string) {
	columns := make([]string, 0, 16)
	set := func(column string, apply func()) {
		apply()
		columns = append(columns, column)
	}

	if patch.UserID != nil {
		set("user_id", func() { p.UserID = *patch.UserID })
	}
	if patch.PolicyType != nil {
		set("policy_type", func() { p.PolicyType = strings.TrimSpace(*patch.PolicyType) })
	}
	if patch.CoverageAmount != nil {
		set("coverage_amount", func() { p.CoverageAmount = *patch.CoverageAmount })
	}
	if patch.PremiumAmount != nil {
		set("premium_amount", func() { p.PremiumAmount = *patch.PremiumAmount })
	}
	if patch.Status != nil {
		set("status", func() { p.Status = *patch.Status })
	}
	if patch.StartDate != nil {
		set("start_date", func() { p.StartDate = *patch.StartDate })
	}
	if patch.EndDate != nil {
		set("end_date", func() { p.EndDate = *patch.EndDate })
	}
	if patch.PayerProgram != nil {
		set("payer_program", func() { p.PayerProgram = *patch.PayerProgram })
	}
	if patch.PayerName != nil {
		set("payer_name", func() { p.PayerName = *patch.PayerName })
	}
	if patch.PayerID != nil {
		set("payer_id", func() { p.PayerID = *patch.PayerID })
	}
	if patch.PlanName != nil {
		set("plan_name", func() { p.PlanName = *patch.PlanName })
	}
	if patch.DeductibleAmount != nil {
		set("deductible_amount", func() { p.DeductibleAmount = *patch.DeductibleAmount })
	}
	if patch.OutOfPocketMax != nil {
		set("out_of_pocket_max", func() { p.OutOfPocketMax = *patch.OutOfPocketMax })
	}
	if patch.MedicarePart != nil {
		set("medicare_part", func() { p.MedicarePart = *patch.MedicarePart })
	}
	if patch.MedicaidState != nil {
		set("medicaid_state", func() { p.MedicaidState = *patch.MedicaidState })
	}
	return p, columns
}

func policyInputOf(p Policy) PolicyInput {
	return PolicyInput{
		UserID:           &p.UserID,
		PolicyType:       p.PolicyType,
		CoverageAmount:   &p.CoverageAmount,
		PremiumAmount:    &p.PremiumAmount,
		Status:           p.Status,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		PayerProgram:     p.PayerProgram,
		DeductibleAmount: &p.DeductibleAmount,
		OutOfPocketMax:   &p.OutOfPocketMax,
	}
}

func endAfter(start string) validation.RuleFunc {
	return func(value interface{}) error {
		end, _ := stringValue(value)
		startDate, err := ParseDate(start)
		if err != nil {
			return nil
		}
		endDate, err := ParseDate(end)
		if err != nil {
			return nil
		}
		if !endDate.After(startDate) {
			return errors.New(msgEndAfterStart)
		}
		return nil
	}
}

func policyStatusRule(value interface{}) error {
	s, _ := value.(PolicyStatus)
	if s != "" && !s.IsValid() {
		return errors.New(msgPolicyStatus)
	}
	return nil
}

func payerProgramRule(value interface{}) error {
	p, _ := value.(PayerProgram)
	if p != "" && !p.IsValid() {
		return errors.New(msgPayerProgram)
	}
	return nil
}
