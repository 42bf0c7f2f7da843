package session

// IsAllowed reports whether a caller's number is on the allowlist.
//
// This check fails closed: an empty allowlist rejects every caller. "No
// configured list" must never be read as "allow all" — arbitrary numbers can
// dial in, and full processing costs real money per turn.
func IsAllowed(number string, allowlist []string) bool {
	for _, allowed := range allowlist {
		if number == allowed {
			return true
		}
	}
	return false
}
