/*
validate.go - Field rules for directly edited values

RULES:
  any field    non-blank                       "<field> cannot be empty"
  dateOfIssue  YYYY-MM-DD shape (syntactic)    "date should be in the format yyyy-mm-dd"
               month 01-12, day 01-31; 2024-02-31 is accepted
  billTo       letters and spaces only         "<field> must contain only alphabets (and spaces)"
  billToEmail  ends with @gmail.com            "email should end with @gmail.com"
  total        digits, dot, two digits         "<field> must be numeric with two decimals"

The blank check short-circuits: a blank value gets exactly one violation.
Fields without a rule (billFrom*, billToAddress, ...) only get the blank
check. The folded item collection is not a string and is never blank;
an empty working set is a legitimate edit.

Machine-derived values (recalculated totals) are never passed through
here; the commit stage trusts them.
*/
package bulkedit

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/warp/invoice-engine/invoice"
)

var (
	datePattern   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	billToPattern = regexp.MustCompile(`^[A-Za-z ]+$`)
	totalPattern  = regexp.MustCompile(`^\d+\.\d{2}$`)
)

// RequiredEmailSuffix is the domain every billToEmail must end with.
const RequiredEmailSuffix = "@gmail.com"

// Violation is one broken rule for one field of one invoice.
type Violation struct {
	InvoiceID invoice.ID    `json:"invoiceId"`
	Field     invoice.Field `json:"field"`
	Message   string        `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("Invoice with ID %s: %s", v.InvoiceID, v.Message)
}

// ValidateChange returns the violations of a single pending change.
// It never fails; a clean change yields nil.
func ValidateChange(c invoice.PendingChange) []Violation {
	if c.IsItems() {
		return nil
	}
	msgs := ValidateField(c.Field, c.Value)
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Violation, len(msgs))
	for i, m := range msgs {
		out[i] = Violation{InvoiceID: c.InvoiceID, Field: c.Field, Message: m}
	}
	return out
}

// ValidateField applies the rules for field to a raw value and returns
// human-readable messages.
func ValidateField(field invoice.Field, value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{fmt.Sprintf("%s cannot be empty", field)}
	}

	switch field {
	case invoice.FieldDateOfIssue:
		if !datePattern.MatchString(value) {
			return []string{"date should be in the format yyyy-mm-dd"}
		}
	case invoice.FieldBillTo:
		if !billToPattern.MatchString(value) {
			return []string{fmt.Sprintf("%s must contain only alphabets (and spaces)", field)}
		}
	case invoice.FieldBillToEmail:
		if !strings.HasSuffix(value, RequiredEmailSuffix) {
			return []string{"email should end with " + RequiredEmailSuffix}
		}
	case invoice.FieldTotal:
		if !totalPattern.MatchString(value) {
			return []string{fmt.Sprintf("%s must be numeric with two decimals", field)}
		}
	}
	return nil
}

// ValidateChanges validates every change and collects all violations.
func ValidateChanges(changes []invoice.PendingChange) []Violation {
	var out []Violation
	for _, c := range changes {
		out = append(out, ValidateChange(c)...)
	}
	return out
}
