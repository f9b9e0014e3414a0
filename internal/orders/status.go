package orders

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// forward is the nominal lifecycle. UpdateStatus does not enforce it; it is
// used to flag out-of-order jumps.
var forward = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	_, ok := forward[st]
	return st, ok
}

// Terminal states accept no further transition.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func IsForward(from, to Status) bool {
	return forward[from][to]
}
