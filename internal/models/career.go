package models

import "time"

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full-time"
	EmploymentPartTime   EmploymentType = "part-time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentInternship EmploymentType = "internship"
)

type JobOpening struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Department   string         `json:"department"`
	Location     string         `json:"location"`
	Type         EmploymentType `json:"type"`
	Description  string         `json:"description,omitempty"`
	Requirements []string       `json:"requirements,omitempty"`
	SalaryRange  string         `json:"salaryRange,omitempty"`
	Active       bool           `json:"active"`
	PostedAt     *time.Time     `json:"postedAt,omitempty"`
}

func (j JobOpening) GetID() string { return j.ID }

const (
	ApplicationSubmitted = "submitted"
	ApplicationReviewing = "reviewing"
	ApplicationInterview = "interview"
	ApplicationRejected  = "rejected"
	ApplicationHired     = "hired"
)

// JobApplication references its opening through JobID only.
type JobApplication struct {
	ID          string     `json:"id,omitempty"`
	JobID       string     `json:"jobId"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	ResumeURL   string     `json:"resumeUrl,omitempty"`
	CoverLetter string     `json:"coverLetter,omitempty"`
	Status      string     `json:"status,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

func (a JobApplication) GetID() string { return a.ID }

const JobOpeningSchema = `{
  "type": "object",
  "required": ["title", "department", "location", "type"],
  "properties": {
    "title":      {"type": "string", "minLength": 1},
    "department": {"type": "string", "minLength": 1},
    "location":   {"type": "string", "minLength": 1},
    "type":       {"type": "string", "enum": ["full-time", "part-time", "contract", "internship"]}
  }
}`

const JobApplicationSchema = `{
  "type": "object",
  "required": ["jobId", "name", "email"],
  "properties": {
    "jobId": {"type": "string", "minLength": 1},
    "name":  {"type": "string", "minLength": 1},
    "email": {"type": "string", "pattern": "^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$"},
    "status": {"type": "string", "enum": ["", "submitted", "reviewing", "interview", "rejected", "hired"]}
  }
}`
