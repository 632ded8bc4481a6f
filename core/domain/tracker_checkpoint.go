package domain

import "time"

// =============================================================================
// SyncCheckpoint - per user sync high-water mark
// =============================================================================

type SyncSummary struct {
	Applied   int `json:"applied" bson:"applied"`
	Interview int `json:"interview" bson:"interview"`
	Offer     int `json:"offer" bson:"offer"`
	Rejected  int `json:"rejected" bson:"rejected"`
	Unknown   int `json:"unknown" bson:"unknown"`
	Ignored   int `json:"ignored" bson:"ignored"`
}

// Count adds one message to the bucket for its intent.
func (s *SyncSummary) Count(intent IntentTag) {
	switch intent {
	case IntentApplied:
		s.Applied++
	case IntentInterview:
		s.Interview++
	case IntentOffer:
		s.Offer++
	case IntentRejected:
		s.Rejected++
	case IntentIgnore, IntentMarketing:
		s.Ignored++
	default:
		s.Unknown++
	}
}

func (s SyncSummary) Total() int {
	return s.Applied + s.Interview + s.Offer + s.Rejected + s.Unknown + s.Ignored
}

type SyncCheckpoint struct {
	UserID          string      `json:"user_id"`
	LastSyncDate    time.Time   `json:"last_sync_date"`
	LastSyncSummary SyncSummary `json:"last_sync_summary"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
