package domain

import "strings"

// =============================================================================
// IntentTag - classifier output
// =============================================================================

type IntentTag string

const (
	IntentApplied   IntentTag = "APPLIED"
	IntentInterview IntentTag = "INTERVIEW"
	IntentOffer     IntentTag = "OFFER"
	IntentRejected  IntentTag = "REJECTED"
	IntentUnknown   IntentTag = "UNKNOWN"
	IntentIgnore    IntentTag = "IGNORE"
	IntentMarketing IntentTag = "MARKETING"
)

// ParseIntentTag normalises a tag string. ok is false for unrecognised input.
func ParseIntentTag(s string) (IntentTag, bool) {
	tag := IntentTag(strings.ToUpper(strings.TrimSpace(s)))
	switch tag {
	case IntentApplied, IntentInterview, IntentOffer, IntentRejected,
		IntentUnknown, IntentIgnore, IntentMarketing:
		return tag, true
	}
	return "", false
}

// IsJobProducing reports whether the tag maps to a job status.
func (t IntentTag) IsJobProducing() bool {
	_, ok := t.Status()
	return ok
}

// IsDropped reports whether messages with this tag leave no trace.
func (t IntentTag) IsDropped() bool {
	return t == IntentIgnore || t == IntentMarketing
}

// Status maps a job-producing tag to its job status.
func (t IntentTag) Status() (JobStatus, bool) {
	switch t {
	case IntentApplied:
		return StatusApplied, true
	case IntentInterview:
		return StatusInterview, true
	case IntentOffer:
		return StatusOffer, true
	case IntentRejected:
		return StatusRejected, true
	}
	return "", false
}

// ParseFinalIntent validates a review decision.
// Accepted: APPLIED, INTERVIEW, OFFER, REJECTED, IGNORE.
func ParseFinalIntent(s string) (IntentTag, bool) {
	tag, ok := ParseIntentTag(s)
	if !ok {
		return "", false
	}
	if tag.IsJobProducing() || tag == IntentIgnore {
		return tag, true
	}
	return "", false
}
