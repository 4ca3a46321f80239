package models

import "time"

// Participant is a tournament entry. Created on join, immutable afterwards
// except for removal by the organizer. LicenseNumber is unique within a
// tournament; Ranking is optional and drives seeding.
type Participant struct {
	UserID        int       `json:"user_id"`
	LicenseNumber string    `json:"license_number"`
	Ranking       *int      `json:"ranking,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
}
