package guard

import "regexp"

type redactionRule struct {
	name        string
	expr        *regexp.Regexp
	replacement string
}

// Redactor scrubs obvious PII patterns from prompt text before it is sent
// to external collaborators or stored in the audit trail.
type Redactor struct {
	rules []redactionRule
}

// NewRedactor builds the default redaction rule set.
func NewRedactor() *Redactor {
	return &Redactor{rules: []redactionRule{
		{
			name:        "ssn",
			expr:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			replacement: "[SSN-REDACTED]",
		},
		{
			name:        "account_number",
			expr:        regexp.MustCompile(`\b\d{10,16}\b`),
			replacement: "[ACCOUNT-REDACTED]",
		},
		{
			name:        "email",
			expr:        regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`),
			replacement: "[EMAIL-REDACTED]",
		},
	}}
}

// Redact applies every rule in order and returns the scrubbed text.
func (r *Redactor) Redact(text string) string {
	redacted := text
	for _, rule := range r.rules {
		redacted = rule.expr.ReplaceAllString(redacted, rule.replacement)
	}
	return redacted
}
