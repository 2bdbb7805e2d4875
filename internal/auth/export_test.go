package auth

import "time"

// SetClock replaces the time source used for issuing and validating tokens.
func SetClock(s *TokenService, now func() time.Time) {
	s.now = now
}
