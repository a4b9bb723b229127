package domain

import (
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
)

// DisbursementStateName enumerates the lifecycle states of a disbursement.
type DisbursementStateName string

const (
	StateNone              DisbursementStateName = "None"
	StatePending           DisbursementStateName = "Pending"
	StateApproved          DisbursementStateName = "Approved"
	StateRejected          DisbursementStateName = "Rejected"
	StateProviderUploaded  DisbursementStateName = "ProviderUploaded"
	StateProviderError     DisbursementStateName = "ProviderError"
	StateProviderProcessed DisbursementStateName = "ProviderProcessed"
	StateProviderVoided    DisbursementStateName = "ProviderVoided"
	StateProviderReissued  DisbursementStateName = "ProviderReissued"
	StateMailed            DisbursementStateName = "Mailed"
	StateCleared           DisbursementStateName = "Cleared"
)

// DisbursementState is a state value together with the time it was entered.
type DisbursementState struct {
	State           DisbursementStateName `json:"state"`
	UpdatedDateTime time.Time             `json:"updatedDateTime"`
}

var allowedTransitions = map[DisbursementStateName][]DisbursementStateName{
	StateNone:     {StatePending},
	StatePending:  {StateApproved, StateRejected},
	StateApproved: {StateRejected, StateProviderUploaded},
	StateProviderUploaded: {
		StateProviderError, StateProviderProcessed, StateMailed,
		StateProviderVoided, StateProviderReissued, StateCleared,
	},
	StateProviderError: {StateApproved},
	// Providers report Loaded, then a delivery status, then Purchase for the same payment.
	StateProviderProcessed: {
		StateProviderError, StateMailed, StateProviderVoided, StateProviderReissued, StateCleared,
	},
	StateMailed: {StateProviderVoided, StateProviderReissued, StateCleared},
}

// CanTransition reports whether moving from one state to another is allowed.
// Re-entering the current state is always allowed and is a no-op.
func CanTransition(from, to DisbursementStateName) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the state.
func (s DisbursementStateName) IsTerminal() bool {
	switch s {
	case StateRejected, StateCleared, StateProviderVoided, StateProviderReissued:
		return true
	}
	return false
}

// IsEditable reports whether recipients may still be changed.
func (s DisbursementStateName) IsEditable() bool {
	return s == StatePending || s == StateApproved
}

// IsWithProvider reports whether the payment has been handed to the provider.
func (s DisbursementStateName) IsWithProvider() bool {
	switch s {
	case StateProviderUploaded, StateProviderProcessed, StateMailed,
		StateProviderVoided, StateProviderReissued, StateCleared:
		return true
	}
	return false
}

// UpdateState swaps in the new state and appends the prior one to the history.
// It returns false and changes nothing when the state is unchanged. A zero at
// stamps the current time.
func (d *Disbursement) UpdateState(next DisbursementStateName, at time.Time) bool {
	if d.State.State == next {
		return false
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if d.State.State != "" {
		d.StateHistory = append(d.StateHistory, d.State)
	}
	d.State = DisbursementState{State: next, UpdatedDateTime: at}
	return true
}

// Transition validates the move against the transition table before applying it.
func (d *Disbursement) Transition(next DisbursementStateName, at time.Time) (bool, error) {
	current := d.CurrentState()
	if !CanTransition(current, next) {
		return false, apperrors.NewValidationError("disbursement %d cannot move from %s to %s", d.DisbursementNumber, current, next)
	}
	return d.UpdateState(next, at), nil
}

// CurrentState returns the state name, treating an unset state as None.
func (d *Disbursement) CurrentState() DisbursementStateName {
	if d.State.State == "" {
		return StateNone
	}
	return d.State.State
}
