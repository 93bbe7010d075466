package model

import "github.com/google/uuid"

// CanonicalID returns id as a lowercase hyphenated UUID. Only the 36 character
// form is accepted; braced and urn:uuid: forms are rejected.
func CanonicalID(id string) (string, bool) {
	if len(id) != 36 {
		return "", false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
