package enums

import "fmt"

// FanoutStep names one document write of an order fan-out.
type FanoutStep string

const (
	FanoutStepOrder     FanoutStep = "order"
	FanoutStepUserRef   FanoutStep = "user_ref"
	FanoutStepStoreRef  FanoutStep = "store_ref"
	FanoutStepCartClear FanoutStep = "cart_clear"
)

var validFanoutSteps = []FanoutStep{
	FanoutStepOrder,
	FanoutStepUserRef,
	FanoutStepStoreRef,
	FanoutStepCartClear,
}

// String implements fmt.Stringer.
func (v FanoutStep) String() string {
	return string(v)
}

// IsValid reports whether the value is a known FanoutStep.
func (v FanoutStep) IsValid() bool {
	for _, candidate := range validFanoutSteps {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseFanoutStep converts raw input into a FanoutStep.
func ParseFanoutStep(value string) (FanoutStep, error) {
	for _, candidate := range validFanoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fanout step %q", value)
}
