package ais

import (
	"strings"
	"time"
)

const DefaultFragmentMaxAge = 10 * time.Second

type partial struct {
	count   int
	next    int
	payload strings.Builder
	started time.Time
}

// Assembler joins multi-fragment sentences. It holds per-stream state and is
// not safe for concurrent use; each feeder worker owns its own instance.
type Assembler struct {
	partials map[string]*partial
	maxAge   time.Duration
	now      func() time.Time
}

func NewAssembler() *Assembler {
	return &Assembler{
		partials: make(map[string]*partial),
		maxAge:   DefaultFragmentMaxAge,
		now:      time.Now,
	}
}

// Add feeds one sentence. complete is true when a whole payload is available;
// payload and fill are then ready for Decode.
func (a *Assembler) Add(s Sentence) (payload string, fill int, complete bool, err error) {
	if s.Single() {
		return s.Payload, s.FillBits, true, nil
	}

	now := a.now()
	a.expire(now)

	key := s.SequenceID + "|" + s.Channel
	p, ok := a.partials[key]

	if s.FragmentNumber == 1 {
		p = &partial{count: s.FragmentCount, next: 2, started: now}
		p.payload.WriteString(s.Payload)
		a.partials[key] = p
		return "", 0, false, nil
	}

	if !ok {
		return "", 0, false, decodeErr(ErrFragment, "fragment %d/%d without start", s.FragmentNumber, s.FragmentCount)
	}
	if p.count != s.FragmentCount || p.next != s.FragmentNumber {
		delete(a.partials, key)
		return "", 0, false, decodeErr(ErrFragment, "fragment %d/%d out of order", s.FragmentNumber, s.FragmentCount)
	}

	p.payload.WriteString(s.Payload)
	p.next++
	if s.FragmentNumber < s.FragmentCount {
		return "", 0, false, nil
	}

	delete(a.partials, key)
	return p.payload.String(), s.FillBits, true, nil
}

// Pending is the number of incomplete messages being held.
func (a *Assembler) Pending() int {
	return len(a.partials)
}

func (a *Assembler) expire(now time.Time) {
	for key, p := range a.partials {
		if now.Sub(p.started) > a.maxAge {
			delete(a.partials, key)
		}
	}
}
