package domain

import (
	"errors"
	"fmt"
)

// Flags is the persisted three-boolean form of a monthly bucket lifecycle
type Flags struct {
	Withdrawable  bool
	Locked        bool
	IsTransferred bool
}

// BucketState is the lifecycle of a monthly bucket
// Only three flag combinations are reachable; StateOf rejects the rest
type BucketState int

const (
	// StateMaturing buckets are locked until external progression releases them
	StateMaturing BucketState = iota + 1
	// StateAvailable buckets can be transferred
	StateAvailable
	// StateConsumed buckets were already paid out
	StateConsumed
)

var errUnreachableFlags = errors.New("unreachable bucket flag combination")

func (s BucketState) String() string {
	switch s {
	case StateMaturing:
		return "MATURING"
	case StateAvailable:
		return "AVAILABLE"
	case StateConsumed:
		return "CONSUMED"
	default:
		return "UNKNOWN"
	}
}

// Flags returns the persisted flag triple for the state
func (s BucketState) Flags() Flags {
	switch s {
	case StateAvailable:
		return Flags{Withdrawable: true}
	case StateConsumed:
		// locked is set alongside transferred to block re-use
		return Flags{Withdrawable: true, Locked: true, IsTransferred: true}
	default:
		return Flags{Locked: true}
	}
}

// Consume moves an Available bucket to Consumed
func (s BucketState) Consume() (BucketState, error) {
	if s != StateAvailable {
		return s, fmt.Errorf("%w: state is %s", ErrBucketNotAvailable, s)
	}
	return StateConsumed, nil
}

// StateOf decodes a flag triple
func StateOf(f Flags) (BucketState, error) {
	switch f {
	case StateMaturing.Flags():
		return StateMaturing, nil
	case StateAvailable.Flags():
		return StateAvailable, nil
	case StateConsumed.Flags():
		return StateConsumed, nil
	}
	return 0, fmt.Errorf("%w: withdrawable=%t locked=%t transferred=%t",
		errUnreachableFlags, f.Withdrawable, f.Locked, f.IsTransferred)
}

// InitialState returns the state a monthly bucket is created in
// Only the first month is immediately withdrawable
func InitialState(monthIndex int) BucketState {
	if monthIndex == 1 {
		return StateAvailable
	}
	return StateMaturing
}
