package model

import "time"

// Account carries the check-in state used to decide whether the dead man's
// switch has tripped. Authentication and registration live elsewhere; the
// delivery core only reads these fields.
type Account struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	LastCheckIn     time.Time     `json:"lastCheckIn"`
	CheckInInterval time.Duration `json:"checkInInterval"`
	GracePeriod     time.Duration `json:"gracePeriod"`
}

// SwitchTripped reports whether the owner has missed a check-in by more
// than the grace period.
func (a *Account) SwitchTripped(now time.Time) bool {
	if a.LastCheckIn.IsZero() {
		return false
	}
	return now.After(a.LastCheckIn.Add(a.CheckInInterval + a.GracePeriod))
}
