package models

import "time"

// VerificationLog names one of the two append-only audit logs.
type VerificationLog string

const (
	// LogSearched records who looked a reference up and found a diploma.
	LogSearched VerificationLog = "search_log"
	// LogVerified records who confirmed a diploma match.
	LogVerified VerificationLog = "diplomas_verified_log"
)

// TimeColumn names the column holding the event timestamp.
func (l VerificationLog) TimeColumn() string {
	if l == LogSearched {
		return "searched_at"
	}
	return "verified_at"
}

// AnonymousActor stands in for requests without an authenticated identity.
const AnonymousActor = "unknown"

// VerificationEvent is an immutable audit entry.
type VerificationEvent struct {
	ID        string    `db:"id" json:"id"`
	Reference string    `db:"reference" json:"reference"`
	Actor     string    `db:"actor" json:"actor"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
