package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRecipients is returned when a roster would be empty.
var ErrNoRecipients = errors.New("recipient list is empty")

// Recipient is a single distribution address.
type Recipient struct {
	Email       string
	DisplayName string
}

// Roster is an ordered, non-empty recipient list. The first entry is the primary reviewer.
type Roster struct {
	recipients []Recipient
}

// NewRoster validates and copies the recipient list.
func NewRoster(recipients []Recipient) (Roster, error) {
	if len(recipients) == 0 {
		return Roster{}, ErrNoRecipients
	}
	out := make([]Recipient, 0, len(recipients))
	for i, r := range recipients {
		if strings.TrimSpace(r.Email) == "" {
			return Roster{}, fmt.Errorf("recipient %d has no email", i)
		}
		out = append(out, r)
	}
	return Roster{recipients: out}, nil
}

// Primary returns the reviewer who must approve before bulk distribution.
func (r Roster) Primary() Recipient {
	if len(r.recipients) == 0 {
		return Recipient{}
	}
	return r.recipients[0]
}

// All returns a copy of the full list, primary reviewer first.
func (r Roster) All() []Recipient {
	out := make([]Recipient, len(r.recipients))
	copy(out, r.recipients)
	return out
}

// Len reports the number of recipients.
func (r Roster) Len() int {
	return len(r.recipients)
}

