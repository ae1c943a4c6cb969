package enums

import "fmt"

// FanoutState is the lifecycle of a fan-out journal entry.
type FanoutState string

const (
	FanoutStatePending          FanoutState = "pending"
	FanoutStatePartiallyApplied FanoutState = "partially_applied"
	FanoutStateCommitted        FanoutState = "committed"
	FanoutStateFailed           FanoutState = "failed"
)

var validFanoutStates = []FanoutState{
	FanoutStatePending,
	FanoutStatePartiallyApplied,
	FanoutStateCommitted,
	FanoutStateFailed,
}

// String implements fmt.Stringer.
func (v FanoutState) String() string {
	return string(v)
}

// IsValid reports whether the value is a known FanoutState.
func (v FanoutState) IsValid() bool {
	for _, candidate := range validFanoutStates {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseFanoutState converts raw input into a FanoutState.
func ParseFanoutState(value string) (FanoutState, error) {
	for _, candidate := range validFanoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fanout state %q", value)
}

// IsTerminal reports whether no further writes are expected for the entry.
func (v FanoutState) IsTerminal() bool {
	return v == FanoutStateCommitted
}
