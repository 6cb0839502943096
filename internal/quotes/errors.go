package quotes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the quote does not exist for the account.
	ErrNotFound = errors.New("quotes: not found")
	// ErrItemNotFound indicates the line item id is unknown on the quote.
	ErrItemNotFound = errors.New("quotes: line item not found")
	// ErrLastLineItem rejects removing the only remaining line.
	ErrLastLineItem = errors.New("quotes: a quote must keep at least one line item")
	// ErrNotEditable rejects edits outside draft.
	ErrNotEditable = errors.New("quotes: only draft quotes can be edited")
	// ErrInvalidTransition rejects a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("quotes: invalid status transition")
	// ErrNotExpired rejects expiring a quote before its expiry date has passed.
	ErrNotExpired = errors.New("quotes: quote has not expired yet")
	// ErrInvalidToken rejects a client response carrying a bad token.
	ErrInvalidToken = errors.New("quotes: invalid response token")
	// ErrActionInProgress rejects a duplicate request while one is in flight.
	ErrActionInProgress = errors.New("quotes: action already in progress")
	// ErrAbandoned reports that the caller went away before a collaborator answered.
	ErrAbandoned = errors.New("quotes: request abandoned")
)

func staleErr(id int64, expect Status) error {
	return fmt.Errorf("%w: quote %d is no longer %s or has a newer revision", ErrInvalidTransition, id, expect)
}

// FieldErrors maps a field path such as "items[0].description" to a message.
type FieldErrors map[string]string

// Fields returns the failing field names in a stable order.
func (f FieldErrors) Fields() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidationError blocks a transition and carries every failing field.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return "quotes: validation failed: " + strings.Join(e.Fields.Fields(), ", ")
}

// CollaboratorError wraps a failure from persistence, rendering, mail,
// invoicing or a directory lookup. The quote is left unchanged when one is
// returned.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func collaboratorErr(name, op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: name, Op: op, Err: err}
}
