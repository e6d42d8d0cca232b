package insurance

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const textCodeInvalidTransition = "INVALID_CLAIM_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid claim state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ActorRef identifies who triggered a transition.
type ActorRef struct {
	ID   uuid.UUID
	Type string
}

// ActorFromPrincipal builds an actor reference for the principal
func ActorFromPrincipal(p Principal) ActorRef {
	return ActorRef{ID: p.ID, Type: string(p.Role)}
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor ActorRef
	Claim *Claim
	From  ClaimStatus
	To    ClaimStatus
}

// TransitionHook is executed before the status update is persisted.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// ClaimStateMachine guards and persists claim status changes.
type ClaimStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, claim *Claim, target ClaimStatus, opts ...TransitionOption) (*Claim, error)
	CanTransition(from, to ClaimStatus) bool
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*claimStateMachine)

// WithStateMachineLogger overrides the logger.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *claimStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithForceTransition bypasses the review table. Used by the administrator
// status path, which may move a claim to any status.
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithTransitionColumns persists extra columns along with the status.
// Hooks or callers are expected to have set the matching fields.
func WithTransitionColumns(columns ...string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.columns = append(opts.columns, columns...)
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// NewClaimStateMachine returns the default implementation backed by the claim store.
// Reviews may move a claim from any status into under_review, approved or
// denied; submitted and paid are only reachable with a forced transition.
func NewClaimStateMachine(claims Claims, opts ...StateMachineOption) ClaimStateMachine {
	reviewTargets := map[ClaimStatus]struct{}{
		ClaimUnderReview: {},
		ClaimApproved:    {},
		ClaimDenied:      {},
	}

	sm := &claimStateMachine{
		claims: claims,
		transitions: map[ClaimStatus]map[ClaimStatus]struct{}{
			ClaimSubmitted:   reviewTargets,
			ClaimUnderReview: reviewTargets,
			ClaimApproved:    reviewTargets,
			ClaimDenied:      reviewTargets,
			ClaimPaid:        reviewTargets,
		},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type claimStateMachine struct {
	claims      Claims
	transitions map[ClaimStatus]map[ClaimStatus]struct{}
	logger      Logger
}

type transitionOptions struct {
	force       bool
	columns     []string
	beforeHooks []TransitionHook
}

func (sm *claimStateMachine) Transition(ctx context.Context, actor ActorRef, claim *Claim, target ClaimStatus, opts ...TransitionOption) (*Claim, error) {
	if claim == nil {
		return nil, Detailed(ErrInvalidTransition, map[string]any{
			"target": target,
			"reason": "claim is nil",
		})
	}

	if !target.IsValid() {
		return nil, Detailed(NewValidationError(msgClaimStatus).
			WithTextCode(TextCodeInvalidStatus), map[string]any{"target": target})
	}

	options := sm.buildTransitionOptions(opts...)
	from := claim.Status

	if !options.force && !sm.CanTransition(from, target) {
		return nil, Detailed(ErrInvalidReviewStatus, map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if from == target && len(options.columns) == 0 {
		return claim, nil
	}

	tc := TransitionContext{
		Actor: actor,
		Claim: claim,
		From:  from,
		To:    target,
	}

	for _, hook := range options.beforeHooks {
		if err := hook(ctx, tc); err != nil {
			return nil, err
		}
	}

	next := *claim
	next.Status = target
	columns := append([]string{"status"}, options.columns...)

	updated, err := sm.claims.Update(ctx, &next, columns...)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	sm.logger.Debug("claim status changed",
		"claim_id", claim.ID,
		"from", from,
		"to", target,
		"actor", actor.ID,
		"forced", options.force,
	)

	return updated, nil
}

func (sm *claimStateMachine) CanTransition(from, to ClaimStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *claimStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}
