package pricing

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// MaxNameLength is the longest custom name that can be printed on a shirt.
const MaxNameLength = 15

// Personalization holds the optional custom print for a product: a name, a
// number, or both. Number is a pointer because 0 is a valid shirt number and
// must be distinguishable from "no number".
type Personalization struct {
	Name   string `json:"name,omitempty"`
	Number *int   `json:"number,omitempty"`
}

// Empty reports whether the payload carries no personalization at all.
// An empty name and a nil number are treated the same as a missing payload
// and incur no surcharge.
func (p Personalization) Empty() bool {
	return p.Name == "" && p.Number == nil
}

// Validate checks field constraints: name at most MaxNameLength characters,
// number between 0 and 99.
func (p Personalization) Validate() error {
	if utf8.RuneCountInString(p.Name) > MaxNameLength {
		return &InvalidInputError{
			Field:  "personalization.name",
			Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength),
		}
	}
	if p.Number != nil && (*p.Number < 0 || *p.Number > 99) {
		return &InvalidInputError{
			Field:  "personalization.number",
			Reason: "must be between 0 and 99",
		}
	}
	return nil
}

// Fingerprint returns a stable string form used in line item keys, so two
// items differing only in personalization never merge. Keys travel in URL
// paths, so the name and number are hex-encoded rather than embedded raw.
func (p *Personalization) Fingerprint() string {
	if p == nil || p.Empty() {
		return "-"
	}
	num := "-"
	if p.Number != nil {
		num = fmt.Sprintf("%02d", *p.Number)
	}
	return hex.EncodeToString([]byte(p.Name + "#" + num))
}

// Equal reports whether two personalization payloads are the same, treating
// nil and an all-empty payload as equal.
func (p *Personalization) Equal(other *Personalization) bool {
	return p.Fingerprint() == other.Fingerprint()
}
