package domain

import "time"

// =============================================================================
// JobApplication
// =============================================================================

type JobStatus string

const (
	StatusApplied   JobStatus = "applied"
	StatusInterview JobStatus = "interview"
	StatusOffer     JobStatus = "offer"
	StatusRejected  JobStatus = "rejected"
)

// Rank orders statuses for upgrade decisions. Rejected is terminal.
func (s JobStatus) Rank() int {
	switch s {
	case StatusApplied:
		return 1
	case StatusInterview:
		return 2
	case StatusOffer:
		return 3
	case StatusRejected:
		return 99
	}
	return 0
}

func (s JobStatus) Valid() bool { return s.Rank() > 0 }

// AllStatuses in rank order.
func AllStatuses() []JobStatus {
	return []JobStatus{StatusApplied, StatusInterview, StatusOffer, StatusRejected}
}

type StatusSource string

const (
	StatusSourceAuto StatusSource = "auto"
	StatusSourceUser StatusSource = "user"
)

type JobSource string

const (
	JobSourceLinkedIn JobSource = "linkedin"
	JobSourceReferral JobSource = "referral"
	JobSourceCareers  JobSource = "careers"
	JobSourceOther    JobSource = "other"
)

func (s JobSource) Valid() bool {
	switch s {
	case JobSourceLinkedIn, JobSourceReferral, JobSourceCareers, JobSourceOther:
		return true
	}
	return false
}

// ThreadState is the result of looking a thread up for a user.
type ThreadState int

const (
	ThreadNone ThreadState = iota
	ThreadActive
	ThreadDeleted
)

func (s ThreadState) String() string {
	switch s {
	case ThreadActive:
		return "active"
	case ThreadDeleted:
		return "deleted"
	default:
		return "none"
	}
}

type JobApplication struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Company        Entity       `json:"company"`
	Role           Entity       `json:"role"`
	Source         JobSource    `json:"source"`
	AppliedDate    time.Time    `json:"applied_date"`
	CurrentStatus  JobStatus    `json:"current_status"`
	StatusSource   StatusSource `json:"status_source"`
	EmailThreadID  string       `json:"email_thread_id,omitempty"`
	JobDescription string       `json:"job_description,omitempty"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (j *JobApplication) IsDeleted() bool { return j.DeletedAt != nil }

// ThreadStateOf classifies the record returned by a thread lookup.
func ThreadStateOf(j *JobApplication) ThreadState {
	switch {
	case j == nil:
		return ThreadNone
	case j.IsDeleted():
		return ThreadDeleted
	default:
		return ThreadActive
	}
}

// JobPatch is a partial update. Nil fields are left untouched.
type JobPatch struct {
	Company        *Entity
	Role           *Entity
	Source         *JobSource
	CurrentStatus  *JobStatus
	StatusSource   *StatusSource
	JobDescription *string
	ClearDeletedAt bool
}

func (p *JobPatch) IsEmpty() bool {
	return p == nil || (p.Company == nil && p.Role == nil && p.Source == nil && p.CurrentStatus == nil &&
		p.StatusSource == nil && p.JobDescription == nil && !p.ClearDeletedAt)
}

// Apply writes the patch onto a copy of job and returns it.
func (p *JobPatch) Apply(job JobApplication, now time.Time) JobApplication {
	if p == nil {
		return job
	}
	if p.Company != nil {
		job.Company = *p.Company
	}
	if p.Role != nil {
		job.Role = *p.Role
	}
	if p.Source != nil {
		job.Source = *p.Source
	}
	if p.CurrentStatus != nil {
		job.CurrentStatus = *p.CurrentStatus
	}
	if p.StatusSource != nil {
		job.StatusSource = *p.StatusSource
	}
	if p.JobDescription != nil {
		job.JobDescription = *p.JobDescription
	}
	if p.ClearDeletedAt {
		job.DeletedAt = nil
	}
	job.UpdatedAt = now
	return job
}

// UpgradeUnknown returns the incoming entity only when the current one is
// Unknown and the incoming one is not.
func UpgradeUnknown(current, incoming Entity) (Entity, bool) {
	if current.IsUnknown() && !incoming.IsUnknown() {
		return incoming, true
	}
	return current, false
}

// JobStats counts active jobs per status.
type JobStats struct {
	Total     int `json:"total"`
	Applied   int `json:"applied"`
	Interview int `json:"interview"`
	Offer     int `json:"offer"`
	Rejected  int `json:"rejected"`
}

func (s *JobStats) Add(status JobStatus) {
	s.Total++
	switch status {
	case StatusApplied:
		s.Applied++
	case StatusInterview:
		s.Interview++
	case StatusOffer:
		s.Offer++
	case StatusRejected:
		s.Rejected++
	}
}
