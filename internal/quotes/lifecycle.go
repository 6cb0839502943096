package quotes

import (
	"fmt"
	"time"
)

// Effect names a side effect a transition hands to a collaborator.
type Effect string

const (
	EffectRenderPDF     Effect = "render_pdf"
	EffectSendEmail     Effect = "send_email"
	EffectCreateInvoice Effect = "create_invoice"
	EffectNewRevision   Effect = "new_revision"
)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusPending, StatusSent},
	StatusPending:  {StatusSent, StatusExpired, StatusDraft},
	StatusSent:     {StatusAccepted, StatusRejected, StatusExpired, StatusDraft},
	StatusAccepted: {StatusConverted, StatusDraft},
	StatusRejected: {StatusDraft},
	StatusExpired:  {StatusDraft},
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another. Moving back to draft is only possible by reopening.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Effects lists the collaborator calls that accompany a transition.
func Effects(from, to Status) []Effect {
	switch {
	case to == StatusSent:
		return []Effect{EffectRenderPDF, EffectSendEmail}
	case to == StatusConverted:
		return []Effect{EffectCreateInvoice}
	case to == StatusDraft && from != StatusDraft:
		return []Effect{EffectNewRevision}
	}
	return nil
}

// TransitionRequest describes a requested status change.
type TransitionRequest struct {
	To      Status
	ActorID int64
	At      time.Time
	Reason  string
}

// CheckTransition runs the guards for a transition without changing q.
// A revision that has been superseded by a newer one accepts no transitions.
func CheckTransition(q Quote, to Status, at time.Time) error {
	if err := checkLive(q); err != nil {
		return err
	}
	if to == StatusDraft {
		return fmt.Errorf("%w: use reopen to return a %s quote to draft", ErrInvalidTransition, q.Status)
	}
	if !CanTransition(q.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, to)
	}
	switch to {
	case StatusPending, StatusSent:
		if errs := Validate(q); len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}
	case StatusExpired:
		if !Expired(q, at) {
			return ErrNotExpired
		}
	}
	return nil
}

// Advance applies a guarded transition and returns the updated quote together
// with the change record.
func Advance(q Quote, req TransitionRequest) (Quote, StatusChange, error) {
	if err := CheckTransition(q, req.To, req.At); err != nil {
		return q, StatusChange{}, err
	}
	out := q.Clone()
	at := req.At
	actor := req.ActorID
	switch req.To {
	case StatusSent:
		out.SentAt = &at
	case StatusAccepted:
		out.AcceptedAt = &at
		out.AcceptedBy = &actor
	case StatusRejected:
		out.RejectedAt = &at
		out.RejectedBy = &actor
		out.RejectionReason = req.Reason
	case StatusConverted:
		out.ConvertedAt = &at
	}
	out.Status = req.To
	out.UpdatedAt = at
	change := StatusChange{
		QuoteID:    q.ID,
		From:       q.Status,
		To:         req.To,
		ActorID:    req.ActorID,
		Reason:     req.Reason,
		OccurredAt: at,
	}
	return out, change, nil
}

func checkLive(q Quote) error {
	if q.SupersededBy != nil {
		return fmt.Errorf("%w: quote %d was superseded by quote %d", ErrInvalidTransition, q.ID, *q.SupersededBy)
	}
	return nil
}

// Reopen forks a new draft revision of q. The number is kept, the version is
// bumped and the predecessor is linked. q itself is not modified; the caller
// marks it superseded once the revision is stored.
func Reopen(q Quote, actorID int64, at time.Time) (Quote, StatusChange, error) {
	if err := checkLive(q); err != nil {
		return q, StatusChange{}, err
	}
	if q.Status == StatusDraft || !CanTransition(q.Status, StatusDraft) {
		return q, StatusChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, StatusDraft)
	}
	out := q.Clone()
	parent := q.ID
	out.ID = 0
	out.ParentQuoteID = &parent
	out.SupersededBy = nil
	out.Version = q.Version + 1
	out.Status = StatusDraft
	out.CreatedBy = actorID
	out.CreatedAt = at
	out.UpdatedAt = at
	out.SentAt = nil
	out.AcceptedAt = nil
	out.AcceptedBy = nil
	out.RejectedAt = nil
	out.RejectedBy = nil
	out.RejectionReason = ""
	out.ConvertedAt = nil
	out.InvoiceID = nil
	out.AcceptTokenHash = ""
	change := StatusChange{
		From:       q.Status,
		To:         StatusDraft,
		ActorID:    actorID,
		Reason:     fmt.Sprintf("reopened from version %d", q.Version),
		OccurredAt: at,
	}
	return Recalculate(out), change, nil
}
