package models

import "time"

// StatsSnapshot summarises verification activity.
type StatsSnapshot struct {
	Students      int           `json:"students"`
	VerifiedCount int           `json:"verified_count"`
	TodaySearches []SearchEntry `json:"today_searches"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// SearchEntry is one reference searched today.
type SearchEntry struct {
	Reference  string    `db:"reference" json:"reference"`
	SearchedAt time.Time `db:"searched_at" json:"searched_at"`
}
