package domain

import "time"

// Task is the slice of a marketplace task this service needs: who may chat on it.
type Task struct {
	ID           string
	Title        string
	ClientID     string
	FreelancerID string
	Status       string
	UpdatedAt    time.Time
}

// Participants returns the client and the assigned freelancer, if any.
func (t *Task) Participants() []string {
	ids := []string{t.ClientID}
	if t.FreelancerID != "" && t.FreelancerID != t.ClientID {
		ids = append(ids, t.FreelancerID)
	}
	return ids
}

// HasParticipant reports whether userID is the client or the freelancer.
func (t *Task) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == t.ClientID || (t.FreelancerID != "" && userID == t.FreelancerID)
}
