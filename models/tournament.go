package models

import "time"

// Tournament owns its participants and at most one bracket. The bracket is
// generated exactly once, either by the organizer or automatically when the
// start time arrives, and is never regenerated while non-empty.
type Tournament struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Discipline      string    `json:"discipline"`
	OrganizerID     int       `json:"organizer_id"`
	StartTime       time.Time `json:"start_time"`
	MaxParticipants int       `json:"max_participants"`
	CreatedAt       time.Time `json:"created_at"`
	LogoKey         *string   `json:"-"`
	LogoURL         *string   `json:"logo_url,omitempty"`

	Participants []Participant `json:"participants"`
	Bracket      Bracket       `json:"bracket"`
}

// HasParticipant reports whether the user already joined.
func (t *Tournament) HasParticipant(userID int) bool {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// HasLicenseNumber reports whether the license number is already taken
// within this tournament.
func (t *Tournament) HasLicenseNumber(license string) bool {
	for _, p := range t.Participants {
		if p.LicenseNumber == license {
			return true
		}
	}
	return false
}

// Full reports whether the participant capacity is reached.
func (t *Tournament) Full() bool {
	return len(t.Participants) >= t.MaxParticipants
}

// RegistrationOpen reports whether new joins are still accepted: the bracket
// must not exist yet and the start time must be in the future.
func (t *Tournament) RegistrationOpen(now time.Time) bool {
	return t.Bracket.IsEmpty() && now.Before(t.StartTime)
}
