package clock

import "time"

type Clock interface {
	Now() time.Time
}

type system struct{}

func NewSystem() Clock { return system{} }

func (system) Now() time.Time { return time.Now().UTC() }

type fixed struct{ t time.Time }

// NewFixed returns a Clock frozen at t. Used by tests.
func NewFixed(t time.Time) Clock { return fixed{t: t} }

func (f fixed) Now() time.Time { return f.t }
