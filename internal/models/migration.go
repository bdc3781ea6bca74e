package models

import "time"

// MigrationRecord is one entry of the persisted migration ledger.
type MigrationRecord struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"appliedAt"`
}
