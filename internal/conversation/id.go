// Package conversation derives conversation identifiers. A conversation is not
// stored anywhere: its id is the sorted pair of participant ids.
package conversation

import "strings"

// Separator joins the two halves of an id. User ids are UUIDs, which never
// contain it, so distinct pairs never collide.
const Separator = "_"

// Derive returns the canonical id for the pair (a, b). Derive(a, b) == Derive(b, a).
func Derive(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// Participants splits a canonical id back into its two halves.
func Participants(id string) (string, string, bool) {
	a, b, ok := strings.Cut(id, Separator)
	if !ok || a == "" || b == "" || strings.Contains(b, Separator) {
		return "", "", false
	}
	if Derive(a, b) != id {
		return "", "", false
	}
	return a, b, true
}

// Includes reports whether userID is one of the two halves of id.
func Includes(id, userID string) bool {
	a, b, ok := Participants(id)
	return ok && (a == userID || b == userID)
}

// Other returns the participant of id that is not userID.
func Other(id, userID string) (string, bool) {
	a, b, ok := Participants(id)
	switch {
	case !ok:
		return "", false
	case a == userID:
		return b, true
	case b == userID:
		return a, true
	}
	return "", false
}
