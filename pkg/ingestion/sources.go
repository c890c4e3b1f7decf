package ingestion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/aistrack/platform/pkg/common/kafka"
	"github.com/aistrack/platform/pkg/common/logger"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	maxDatagram      = 64 * 1024
	maxLineLength    = 64 * 1024
	DefaultRetryWait = 5 * time.Second
)

// Source is a running feeder. Run blocks until ctx is done or the source
// cannot continue.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// UDPSource receives datagrams of newline-separated sentences. Each sending
// host is its own feeder.
type UDPSource struct {
	name     string
	conn     net.PacketConn
	listener *Listener
}

func ListenUDP(name, addr string, listener *Listener) (*UDPSource, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return &UDPSource{name: name, conn: conn, listener: listener}, nil
}

func (s *UDPSource) Name() string   { return s.name }
func (s *UDPSource) Addr() net.Addr { return s.conn.LocalAddr() }
func (s *UDPSource) Close() error   { return s.conn.Close() }

func (s *UDPSource) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	defer s.conn.Close()

	logger.WithFields(map[string]interface{}{
		"feeder": s.name,
		"addr":   s.Addr().String(),
	}).Info("UDP feeder listening")

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.WithFeeder(s.name).WithError(err).Warn("UDP read failed")
			continue
		}

		feeder := s.name + "/" + hostOf(addr)
		for _, line := range strings.Split(string(buf[:n]), "\n") {
			s.listener.HandleSentence(ctx, feeder, line)
		}
	}
}

// TCPServerSource accepts feeder connections and runs one worker per
// connection.
type TCPServerSource struct {
	name     string
	ln       net.Listener
	listener *Listener
}

func ListenTCP(name, addr string, listener *Listener) (*TCPServerSource, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	return &TCPServerSource{name: name, ln: ln, listener: listener}, nil
}

func (s *TCPServerSource) Name() string   { return s.name }
func (s *TCPServerSource) Addr() net.Addr { return s.ln.Addr() }
func (s *TCPServerSource) Close() error   { return s.ln.Close() }

func (s *TCPServerSource) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.ln.Close() })
	defer stop()

	logger.WithFields(map[string]interface{}{
		"feeder": s.name,
		"addr":   s.Addr().String(),
	}).Info("TCP feeder listening")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.WithFeeder(s.name).WithError(err).Warn("TCP accept failed")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

func (s *TCPServerSource) serve(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	session := s.listener.OpenSession(s.name)
	defer session.Close()

	if err := readLines(ctx, conn, func(line string) {
		session.HandleSentence(ctx, line)
	}); err != nil && ctx.Err() == nil {
		logger.WithFeeder(s.name).WithField("remote_addr", conn.RemoteAddr().String()).
			WithError(err).Info("Feeder connection closed")
	}
}

// TCPClientSource dials an upstream AIS stream and reconnects after
// RetryWait whenever the connection drops.
type TCPClientSource struct {
	name      string
	addr      string
	retryWait time.Duration
	listener  *Listener
	dialer    net.Dialer
}

func NewTCPClientSource(name, addr string, retryWait time.Duration, listener *Listener) *TCPClientSource {
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}
	return &TCPClientSource{
		name:      name,
		addr:      addr,
		retryWait: retryWait,
		listener:  listener,
		dialer:    net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
	}
}

func (s *TCPClientSource) Name() string { return s.name }

func (s *TCPClientSource) Run(ctx context.Context) error {
	log := logger.WithFeeder(s.name).WithField("addr", s.addr)
	for {
		conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("Feeder connection failed, retrying")
		} else {
			log.Info("Feeder connected")
			s.consume(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("Feeder disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retryWait):
		}
	}
}

func (s *TCPClientSource) consume(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	s.listener.SetConnected(s.name, true)
	defer s.listener.SetConnected(s.name, false)

	if err := readLines(ctx, conn, func(line string) {
		s.listener.HandleSentence(ctx, s.name, line)
	}); err != nil && ctx.Err() == nil {
		logger.WithFeeder(s.name).WithError(err).Warn("Feeder read failed")
	}
}

// KafkaSource consumes raw sentences from a topic. A message may hold several
// newline-separated sentences.
type KafkaSource struct {
	name     string
	consumer *kafka.Consumer
	listener *Listener
}

func NewKafkaSource(name string, brokers []string, topic, groupID string, listener *Listener) *KafkaSource {
	return &KafkaSource{
		name:     name,
		consumer: kafka.NewConsumer(brokers, topic, groupID),
		listener: listener,
	}
}

func (s *KafkaSource) Name() string { return s.name }

func (s *KafkaSource) Run(ctx context.Context) error {
	defer s.consumer.Close()

	s.listener.SetConnected(s.name, true)
	defer s.listener.SetConnected(s.name, false)

	err := s.consumer.Consume(ctx, func(ctx context.Context, msg kafkago.Message) error {
		for _, line := range strings.Split(string(msg.Value), "\n") {
			s.listener.HandleSentence(ctx, s.name, line)
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func readLines(ctx context.Context, r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxLineLength)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fn(scanner.Text())
	}
	return scanner.Err()
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
