package quotes

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Validate reports every problem that blocks a quote from leaving draft. An
// empty map means the quote is valid.
func Validate(q Quote) FieldErrors {
	errs := FieldErrors{}
	q = Recalculate(q)

	if q.ClientID <= 0 {
		errs["client_id"] = "client is required"
	}
	if strings.TrimSpace(q.Title) == "" {
		errs["title"] = "title is required"
	}
	if q.IssueDate.IsZero() {
		errs["issue_date"] = "issue date is required"
	}
	if q.DueDate.IsZero() {
		errs["due_date"] = "due date is required"
	}
	if q.ExpiryDate.IsZero() {
		errs["expiry_date"] = "expiry date is required"
	}
	if q.ValidityDays <= 0 {
		errs["validity_days"] = "validity period must be a positive number of days"
	}
	if !q.IssueDate.IsZero() {
		if !q.DueDate.IsZero() && q.DueDate.Before(q.IssueDate) {
			errs["due_date"] = "due date cannot be before the issue date"
		}
		if !q.ExpiryDate.IsZero() && q.ExpiryDate.Before(q.IssueDate) {
			errs["expiry_date"] = "expiry date cannot be before the issue date"
		}
	}
	if !knownCurrency(q.Currency) {
		errs["currency"] = "currency must be an ISO 4217 code"
	}
	if !q.Priority.Valid() {
		errs["priority"] = "priority must be low, medium, high or urgent"
	}
	checkPercent(errs, "global_discount_percent", q.GlobalDiscountPercent)
	checkPercent(errs, "global_tax_rate", q.GlobalTaxRate)
	if q.GlobalDiscountAmount.IsNegative() {
		errs["global_discount_amount"] = "must not be negative"
	}
	for k, msg := range q.InputErrors {
		errs[k] = msg
	}

	if len(q.Items) == 0 {
		errs["items"] = "at least one line item is required"
	}
	for i, item := range q.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(item.Description) == "" {
			errs[prefix+"description"] = "description is required"
		}
		if !item.Quantity.IsPositive() {
			errs[prefix+"quantity"] = "quantity must be greater than zero"
		}
		if item.UnitPrice.IsNegative() {
			errs[prefix+"unit_price"] = "unit price must not be negative"
		}
		if item.DiscountAmount.IsNegative() {
			errs[prefix+"discount_amount"] = "must not be negative"
		}
		checkPercent(errs, prefix+"discount_percent", item.DiscountPercent)
		checkPercent(errs, prefix+"tax_rate", item.TaxRate)
		for k, msg := range item.InputErrors {
			errs[prefix+k] = msg
		}
	}

	if !q.Totals.TotalAmount.IsPositive() {
		errs["total_amount"] = "total amount must be greater than zero"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func checkPercent(errs FieldErrors, key string, v decimal.Decimal) {
	if v.IsNegative() || v.GreaterThan(hundred) {
		errs[key] = "must be between 0 and 100"
	}
}

func knownCurrency(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}
