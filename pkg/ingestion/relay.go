package ingestion

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aistrack/platform/pkg/common/logger"
)

// Relay reads sentences from an upstream TCP stream and forwards every
// non-empty line as its own UDP datagram. It bridges TCP-only AIS services
// to a tracker listening on UDP.
type Relay struct {
	source    string
	target    string
	retryWait time.Duration
	dialer    net.Dialer

	forwarded atomic.Uint64
}

func NewRelay(source, target string, retryWait time.Duration) *Relay {
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}
	return &Relay{
		source:    source,
		target:    target,
		retryWait: retryWait,
		dialer:    net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
	}
}

// Forwarded is the number of datagrams sent so far.
func (r *Relay) Forwarded() uint64 {
	return r.forwarded.Load()
}

// Run relays until ctx is done, reconnecting to the source after retryWait.
func (r *Relay) Run(ctx context.Context) error {
	out, err := net.Dial("udp", r.target)
	if err != nil {
		return fmt.Errorf("dial udp %s: %w", r.target, err)
	}
	defer out.Close()

	log := logger.WithFields(map[string]interface{}{
		"source": r.source,
		"target": r.target,
	})

	for {
		conn, err := r.dialer.DialContext(ctx, "tcp", r.source)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("Relay source unreachable, retrying")
		} else {
			log.Info("Relay connected")
			r.pump(ctx, conn, out)
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("Relay source closed, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.retryWait):
		}
	}
}

func (r *Relay) pump(ctx context.Context, conn net.Conn, out net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	err := readLines(ctx, conn, func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		if _, err := out.Write([]byte(line)); err != nil {
			logger.WithField("target", r.target).WithError(err).Debug("Relay send failed")
			return
		}
		r.forwarded.Add(1)
	})
	if err != nil && ctx.Err() == nil {
		logger.WithField("source", r.source).WithError(err).Warn("Relay read failed")
	}
}
