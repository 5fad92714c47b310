// Package ids mints the opaque 128-bit identifiers used for
// libraries, documents, and chunks, in their canonical 36-character
// hyphenated string form.
package ids

import "github.com/google/uuid"

// New returns a new random identifier in canonical string form, e.g.
// "f47ac10b-58cc-4372-a567-0e02b2c3d479".
func New() string {
	return uuid.New().String()
}

// Valid reports whether s is a well-formed canonical identifier.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
