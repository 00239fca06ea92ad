// Package validation checks learner-supplied input before it is stored.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"dictation/internal/models"
)

const (
	MinSubjectLength = 5
	MinMessageLength = 20
	MaxAttachments   = 3
	MaxFileSize      = 5 * 1024 * 1024
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects every problem found in one input
type Errors []ValidationError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Fields groups the messages by field name
func (e Errors) Fields() map[string][]string {
	fields := make(map[string][]string, len(e))
	for _, err := range e {
		fields[err.Field] = append(fields[err.Field], err.Message)
	}
	return fields
}

func (e *Errors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateReport checks a feedback report and returns Errors listing every
// failed rule, or nil
func ValidateReport(in models.ReportInput) error {
	var errs Errors

	if utf8.RuneCountInString(strings.TrimSpace(in.Subject)) < MinSubjectLength {
		errs.add("subject", "Subject must be at least %d characters long.", MinSubjectLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Message)) < MinMessageLength {
		errs.add("message", "Message must be at least %d characters long.", MinMessageLength)
	}
	if !validReportLanguage(in.Language) {
		errs.add("language", "Please select a language.")
	}
	if !slices.Contains(models.ProblemTypes(), in.ProblemType) {
		errs.add("problem_type", "Please select a problem type.")
	}
	if !slices.Contains(models.Priorities(), in.Priority) {
		errs.add("priority", "Please select a priority.")
	}
	if email := strings.TrimSpace(in.ContactEmail); email != "" && !emailRegex.MatchString(email) {
		errs.add("contact_email", "Invalid email address")
	}

	if len(in.Attachments) > MaxAttachments {
		errs.add("attachments", "You can upload a maximum of %d files.", MaxAttachments)
	}
	for _, a := range in.Attachments {
		switch {
		case strings.TrimSpace(a.Filename) == "":
			errs.add("attachments", "Invalid file provided.")
		case a.Size > MaxFileSize:
			errs.add("attachments", "File %q exceeds the 5MB size limit.", a.Filename)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validReportLanguage(lang string) bool {
	if lang == models.NoLanguage {
		return true
	}
	return models.Language(lang).Valid()
}
