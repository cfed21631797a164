// Package port selects a free TCP port for the editor server on the node a
// job landed on. The occupied-port set is node-local, so allocation has to
// run inside the job, not at submission time.
package port

import (
	"fmt"
	"math/rand/v2"
	"net"

	"github.com/grovetools/hpcode/errors"
)

// Range is a closed interval of candidate port numbers.
type Range struct {
	Min int
	Max int
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// Contains reports whether p lies within the range.
func (r Range) Contains(p int) bool {
	return p >= r.Min && p <= r.Max
}

// ListenerSource reports the set of ports currently in a listening state on
// the local node. The production implementation reads /proc/net/tcp{,6};
// tests substitute a fixed set.
type ListenerSource func() (map[int]bool, error)

// Allocator picks unused ports from a configured range.
type Allocator struct {
	listeners ListenerSource
	// pick returns a random index below n. Swappable for deterministic tests.
	pick func(n int) int
}

// NewAllocator returns an Allocator backed by the local node's socket tables.
func NewAllocator() *Allocator {
	return NewAllocatorWithSource(ListeningPorts)
}

// NewAllocatorWithSource returns an Allocator using a custom listener source.
func NewAllocatorWithSource(src ListenerSource) *Allocator {
	return &Allocator{listeners: src, pick: rand.IntN}
}

// Allocate returns one currently-unused port from the range, chosen uniformly
// at random from the free set. Random choice rather than first-available
// avoids systematic collision when several sessions start on the same node at
// once. Returns NO_PORT_AVAILABLE when every port in the range is bound.
//
// Allocation is read-only: the port is claimed only when the server binds it,
// so a narrow race with other processes remains and is handled by the
// caller's retry policy.
func (a *Allocator) Allocate(r Range) (int, error) {
	if r.Min > r.Max {
		return 0, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid port range %s", r))
	}

	inUse, err := a.listeners()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to enumerate listening sockets")
	}

	candidates := make([]int, 0, r.Max-r.Min+1)
	for p := r.Min; p <= r.Max; p++ {
		if !inUse[p] {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		return 0, errors.NoPortAvailable(r.Min, r.Max)
	}

	return candidates[a.pick(len(candidates))], nil
}

// AllocateVerified allocates a port and, when probe is true, confirms it can
// actually be bound before handing it out. A candidate that loses the bind
// race is retried up to maxAttempts times. The probe listener is closed
// immediately, so the server's own bind can still lose a (much narrower)
// race; callers treat that as retriable, not fatal.
func (a *Allocator) AllocateVerified(r Range, probe bool, maxAttempts int) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		p, err := a.Allocate(r)
		if err != nil {
			return 0, err
		}
		if !probe {
			return p, nil
		}

		l, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err != nil {
			// Someone bound it between the scan and the probe; rescan.
			lastErr = err
			continue
		}
		l.Close()
		return p, nil
	}

	return 0, errors.Wrap(lastErr, errors.ErrCodeNoPortAvailable,
		fmt.Sprintf("no port in range %s survived %d bind attempts", r, maxAttempts))
}
