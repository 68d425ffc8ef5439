package entity

import "time"

// UserPreference resolves a user into contact addresses and channel opt-outs.
// The dispatch path reads it once, at creation time; preference changes never
// affect in-flight retries of already-created records.
type UserPreference struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	PushToken string    `json:"push_token,omitempty"`
	OptedOut  []Channel `json:"opted_out,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact returns the delivery address for ch. In-app delivery is addressed
// by user ID and always resolvable.
func (p *UserPreference) Contact(ch Channel) string {
	switch ch {
	case ChannelInApp:
		return p.UserID
	case ChannelEmail:
		return p.Email
	case ChannelPush:
		return p.PushToken
	case ChannelSMS:
		return p.Phone
	}
	return ""
}

// IsOptedOut reports whether the user opted out of ch.
func (p *UserPreference) IsOptedOut(ch Channel) bool {
	for _, c := range p.OptedOut {
		if c == ch {
			return true
		}
	}
	return false
}
