package quotes

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD value. An empty string yields the zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ExpiryDate is issue + days in calendar days. It is unset when either input
// is missing.
func ExpiryDate(issue time.Time, days int) time.Time {
	if issue.IsZero() || days <= 0 {
		return time.Time{}
	}
	return DateOnly(issue).AddDate(0, 0, days)
}

// DeriveDates recomputes the expiry and fills the due date from it when the
// due date has not been set.
func DeriveDates(q Quote) Quote {
	q.IssueDate = DateOnly(q.IssueDate)
	q.DueDate = DateOnly(q.DueDate)
	q.ExpiryDate = ExpiryDate(q.IssueDate, q.ValidityDays)
	if q.DueDate.IsZero() {
		q.DueDate = q.ExpiryDate
	}
	return q
}

// Expired reports whether the quote's expiry date lies strictly before asOf.
func Expired(q Quote, asOf time.Time) bool {
	if q.ExpiryDate.IsZero() {
		return false
	}
	return DateOnly(asOf).After(DateOnly(q.ExpiryDate))
}
