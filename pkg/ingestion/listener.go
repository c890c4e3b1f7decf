package ingestion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/observability/metrics"
	"github.com/aistrack/platform/pkg/vessel"
	"github.com/sirupsen/logrus"
)

const (
	EventPosition = "ais.position"
	EventStatic   = "ais.static"

	sideEffectTimeout = 2 * time.Second
)

// Recorder receives per-sentence counters.
type Recorder interface {
	ObserveSentence(feeder, outcome string)
	ObserveDecodeError(reason string)
	ObserveUpsert(kind, result string)
	SetFeederConnected(feeder string, connected bool)
}

// Mirror receives every vessel record that changed.
type Mirror interface {
	Publish(ctx context.Context, rec vessel.Record) error
}

// Publisher forwards decoded reports to a downstream stream.
type Publisher interface {
	Publish(ctx context.Context, eventType, source, key string, data interface{}) error
}

type Options struct {
	Metrics    Recorder
	Mirror     Mirror
	Publisher  Publisher
	StaleAfter time.Duration
}

// FeederStats counts what one feeder delivered.
type FeederStats struct {
	Feeder       string    `json:"feeder"`
	Connected    bool      `json:"connected"`
	Connections  int       `json:"connections"`
	Received     uint64    `json:"received"`
	Positions    uint64    `json:"positions"`
	Static       uint64    `json:"static"`
	Unhandled    uint64    `json:"unhandled"`
	Fragments    uint64    `json:"fragments"`
	Invalid      uint64    `json:"invalid"`
	Rejected     uint64    `json:"rejected"`
	OutOfOrder   uint64    `json:"out_of_order"`
	LastReceived time.Time `json:"last_received"`
}

// fragments assembles multi-part sentences for one stream. Streams never
// share a buffer, so interleaved fragments from two connections cannot mix.
type fragments struct {
	mu        sync.Mutex
	assembler *ais.Assembler
}

func newFragments() *fragments {
	return &fragments{assembler: ais.NewAssembler()}
}

func (f *fragments) add(s ais.Sentence) (string, int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assembler.Add(s)
}

type feederState struct {
	mu        sync.Mutex
	stats     FeederStats
	fragments *fragments
}

// Listener turns raw sentences from any number of feeders into store updates.
// A malformed sentence is counted and dropped; it never stops the stream.
type Listener struct {
	store *vessel.Store
	opts  Options
	now   func() time.Time

	mu      sync.Mutex
	feeders map[string]*feederState
}

func NewListener(store *vessel.Store, opts Options) *Listener {
	if opts.Metrics == nil {
		opts.Metrics = (*metrics.Metrics)(nil)
	}
	return &Listener{
		store:   store,
		opts:    opts,
		now:     time.Now,
		feeders: make(map[string]*feederState),
	}
}

// HandleSentence processes one line from feeder and reports what happened to it.
func (l *Listener) HandleSentence(ctx context.Context, feeder, line string) string {
	st := l.feeder(feeder)
	return l.handleLine(ctx, st, st.fragments, feeder, line)
}

// Session is one connection of a feeder. It assembles fragments on its own
// but counts under the feeder name, so reconnects do not add feeders.
type Session struct {
	l         *Listener
	feeder    string
	st        *feederState
	fragments *fragments
	closed    bool
}

// OpenSession marks a new connection of feeder. Close must be called when the
// connection ends.
func (l *Listener) OpenSession(feeder string) *Session {
	l.SetConnected(feeder, true)
	return &Session{l: l, feeder: feeder, st: l.feeder(feeder), fragments: newFragments()}
}

func (s *Session) HandleSentence(ctx context.Context, line string) string {
	return s.l.handleLine(ctx, s.st, s.fragments, s.feeder, line)
}

func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.l.SetConnected(s.feeder, false)
}

func (l *Listener) handleLine(ctx context.Context, st *feederState, frags *fragments, feeder, line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	receivedAt := l.now().UTC()
	outcome := l.handle(ctx, st, frags, feeder, line, receivedAt)

	st.mu.Lock()
	st.stats.Received++
	st.stats.LastReceived = receivedAt
	switch outcome {
	case metrics.OutcomePosition:
		st.stats.Positions++
	case metrics.OutcomeStatic:
		st.stats.Static++
	case metrics.OutcomeUnhandled:
		st.stats.Unhandled++
	case metrics.OutcomeFragment:
		st.stats.Fragments++
	case metrics.OutcomeInvalid:
		st.stats.Invalid++
	case metrics.OutcomeRejected:
		st.stats.Rejected++
	}
	st.mu.Unlock()

	l.opts.Metrics.ObserveSentence(feeder, outcome)
	return outcome
}

func (l *Listener) handle(ctx context.Context, st *feederState, frags *fragments, feeder, line string, receivedAt time.Time) string {
	log := logger.WithFeeder(feeder)

	sentence, err := ais.ParseSentence(line)
	if err != nil {
		l.decodeFailed(log.WithField("sentence", line), err)
		return metrics.OutcomeInvalid
	}

	payload, fill, complete, err := frags.add(sentence)
	if err != nil {
		l.decodeFailed(log.WithField("sentence", line), err)
		return metrics.OutcomeInvalid
	}
	if !complete {
		return metrics.OutcomeFragment
	}

	msg, err := ais.Decode(payload, fill, receivedAt)
	if err != nil {
		l.decodeFailed(log.WithField("payload", payload), err)
		return metrics.OutcomeInvalid
	}

	switch m := msg.(type) {
	case *ais.PositionReport:
		applied, err := l.store.UpsertPosition(m)
		if err != nil {
			l.opts.Metrics.ObserveUpsert("position", metrics.UpsertRejected)
			log.WithError(err).Warn("Rejected position report")
			return metrics.OutcomeRejected
		}
		if !applied {
			l.opts.Metrics.ObserveUpsert("position", metrics.UpsertDropped)
			st.mu.Lock()
			st.stats.OutOfOrder++
			st.mu.Unlock()
		} else {
			l.opts.Metrics.ObserveUpsert("position", metrics.UpsertApplied)
		}
		if m.Static != nil {
			if err := l.store.UpsertStatic(m.Static); err == nil {
				l.opts.Metrics.ObserveUpsert("static", metrics.UpsertApplied)
			}
		}
		if applied {
			l.propagate(ctx, feeder, EventPosition, m.MMSI)
		}
		return metrics.OutcomePosition

	case *ais.StaticInfo:
		if err := l.store.UpsertStatic(m); err != nil {
			l.opts.Metrics.ObserveUpsert("static", metrics.UpsertRejected)
			log.WithError(err).Warn("Rejected static report")
			return metrics.OutcomeRejected
		}
		l.opts.Metrics.ObserveUpsert("static", metrics.UpsertApplied)
		l.propagate(ctx, feeder, EventStatic, m.MMSI)
		return metrics.OutcomeStatic

	default:
		return metrics.OutcomeUnhandled
	}
}

func (l *Listener) decodeFailed(entry *logrus.Entry, err error) {
	reason := "unknown"
	var de *ais.DecodeError
	if errors.As(err, &de) {
		reason = de.Label()
	}
	l.opts.Metrics.ObserveDecodeError(reason)
	entry.WithError(err).Debug("Dropped undecodable sentence")
}

// propagate pushes the updated record to the mirror and the decoded stream.
// Failures there are logged and never affect the store.
func (l *Listener) propagate(ctx context.Context, feeder, eventType string, mmsi ais.MMSI) {
	if l.opts.Mirror == nil && l.opts.Publisher == nil {
		return
	}
	rec, ok := l.store.Get(mmsi)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	if l.opts.Mirror != nil {
		if err := l.opts.Mirror.Publish(ctx, rec); err != nil {
			logger.WithFeeder(feeder).WithError(err).Warn("Failed to mirror vessel")
		}
	}
	if l.opts.Publisher != nil {
		view := vessel.NewRecordJSON(rec, l.now(), l.opts.StaleAfter)
		if err := l.opts.Publisher.Publish(ctx, eventType, feeder, mmsi.String(), view); err != nil {
			logger.WithFeeder(feeder).WithError(err).Warn("Failed to publish decoded report")
		}
	}
}

func (l *Listener) feeder(name string) *feederState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.feeders[name]
	if !ok {
		st = &feederState{
			stats:     FeederStats{Feeder: name},
			fragments: newFragments(),
		}
		l.feeders[name] = st
	}
	return st
}

// SetConnected records a connection of a stream feeder opening or closing.
// The feeder stays connected while any of its connections is open.
func (l *Listener) SetConnected(feeder string, connected bool) {
	st := l.feeder(feeder)
	st.mu.Lock()
	if connected {
		st.stats.Connections++
	} else if st.stats.Connections > 0 {
		st.stats.Connections--
	}
	st.stats.Connected = st.stats.Connections > 0
	up := st.stats.Connected
	st.mu.Unlock()
	l.opts.Metrics.SetFeederConnected(feeder, up)
}

// Stats returns a copy of every feeder's counters ordered by name.
func (l *Listener) Stats() []FeederStats {
	l.mu.Lock()
	states := make([]*feederState, 0, len(l.feeders))
	for _, st := range l.feeders {
		states = append(states, st)
	}
	l.mu.Unlock()

	out := make([]FeederStats, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.stats)
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Feeder < out[j].Feeder })
	return out
}
