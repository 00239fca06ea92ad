package models

import "time"

// ProblemType classifies what a feedback report is about
type ProblemType string

const (
	ProblemSpelling      ProblemType = "SPELLING"
	ProblemPronunciation ProblemType = "PRONUNCIATION"
	ProblemBadWord       ProblemType = "BAD_WORD"
	ProblemUIUX          ProblemType = "UI_UX"
	ProblemServer        ProblemType = "SERVER"
	ProblemOther         ProblemType = "OTHER"
)

// ProblemTypes returns every accepted problem type
func ProblemTypes() []ProblemType {
	return []ProblemType{ProblemSpelling, ProblemPronunciation, ProblemBadWord, ProblemUIUX, ProblemServer, ProblemOther}
}

// Priority is the reporter's urgency estimate
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities returns every accepted priority
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// ReportStatus tracks triage of a report
type ReportStatus string

const (
	ReportOpen     ReportStatus = "OPEN"
	ReportResolved ReportStatus = "RESOLVED"
)

// NoLanguage marks a report that is not about a particular word list
const NoLanguage = "nal"

// AttachmentInfo describes a file the reporter referenced. Contents are not stored.
type AttachmentInfo struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Report is a learner's feedback report
type Report struct {
	ID           string
	Subject      string
	Message      string
	Language     string
	ProblemType  ProblemType
	Priority     Priority
	ContactEmail string
	Attachments  []AttachmentInfo
	IPHash       string
	UserAgent    string
	Status       ReportStatus
	CreatedAt    time.Time
}

// ReportInput is the learner-supplied part of a report
type ReportInput struct {
	Subject      string           `json:"subject"`
	Message      string           `json:"message"`
	Language     string           `json:"language"`
	ProblemType  ProblemType      `json:"problem_type"`
	Priority     Priority         `json:"priority"`
	ContactEmail string           `json:"contact_email"`
	Attachments  []AttachmentInfo `json:"attachments"`
}
