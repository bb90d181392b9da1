package domain

import (
	"fmt"
	"time"
)

// Kind identifies which reservation decision a notification reports.
type Kind string

const (
	KindApproved       Kind = "APPROVED"
	KindRejected       Kind = "REJECTED"
	KindChangeApproved Kind = "CHANGE_APPROVED"
	KindChangeRejected Kind = "CHANGE_REJECTED"
	KindCancelled      Kind = "CANCELLED"
)

var kindLabels = map[Kind]string{
	KindApproved:       "approved",
	KindRejected:       "rejected",
	KindChangeApproved: "change approved",
	KindChangeRejected: "change rejected",
	KindCancelled:      "cancelled",
}

// ParseKind converts a wire token into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// Label returns the human verb for the decision, e.g. "change approved".
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return "processed"
}

// Notification is a single delivery event for one recipient. It is passed by
// value and never mutated after construction.
type Notification struct {
	Recipient   string    `json:"recipient"`
	DisplayName string    `json:"display_name"`
	Room        string    `json:"room"`
	Date        string    `json:"date"`
	Weekday     string    `json:"weekday"`
	TimeSlot    string    `json:"time_slot"`
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewNotification builds a Notification stamped with the current time.
func NewNotification(recipient, displayName, room, date, weekday, timeSlot string, kind Kind, message string) (Notification, error) {
	n := Notification{
		Recipient:   recipient,
		DisplayName: displayName,
		Room:        room,
		Date:        date,
		Weekday:     weekday,
		TimeSlot:    timeSlot,
		Kind:        kind,
		Message:     message,
		CreatedAt:   time.Now(),
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Validate reports whether n can be routed.
func (n Notification) Validate() error {
	if n.Recipient == "" {
		return ErrEmptyRecipient
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(n.Kind))
	}
	return nil
}

// Summary renders a one-line human description of the decision.
func (n Notification) Summary() string {
	who := n.DisplayName
	if who == "" {
		who = n.Recipient
	}
	return fmt.Sprintf("[%s] %s - reservation of %s on %s (%s) %s for %s was %s.",
		n.CreatedAt.Format(time.DateTime), n.Kind, n.Room, n.Date, n.Weekday, n.TimeSlot, who, n.Kind.Label())
}
