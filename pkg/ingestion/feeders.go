package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aistrack/platform/pkg/common/config"
	"github.com/aistrack/platform/pkg/common/logger"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	KindUDP       = "udp"
	KindTCPListen = "tcp_listen"
	KindTCPDial   = "tcp_dial"
	KindKafka     = "kafka"
)

// FeederConfig describes one sentence source.
type FeederConfig struct {
	Name       string        `yaml:"name"`
	Kind       string        `yaml:"kind"`
	Address    string        `yaml:"address"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Brokers    []string      `yaml:"brokers"`
	Topic      string        `yaml:"topic"`
	GroupID    string        `yaml:"group_id"`
}

type feedersFile struct {
	Feeders []FeederConfig `yaml:"feeders"`
}

func (f FeederConfig) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("feeder without name")
	}
	switch f.Kind {
	case KindUDP, KindTCPListen, KindTCPDial:
		if f.Address == "" {
			return fmt.Errorf("feeder %s: address required for %s", f.Name, f.Kind)
		}
	case KindKafka:
		if f.Topic == "" || len(f.Brokers) == 0 {
			return fmt.Errorf("feeder %s: kafka needs brokers and topic", f.Name)
		}
	default:
		return fmt.Errorf("feeder %s: unknown kind %q", f.Name, f.Kind)
	}
	return nil
}

// LoadFeeders reads a YAML feeder list.
func LoadFeeders(path string) ([]FeederConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeders file: %w", err)
	}

	var file feedersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse feeders file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Feeders))
	for _, f := range file.Feeders {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate feeder name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return file.Feeders, nil
}

// FeedersFromConfig returns the file's feeders when FEEDERS_FILE is set and
// otherwise the feeders implied by the listen addresses and raw topic.
func FeedersFromConfig(cfg *config.Config) ([]FeederConfig, error) {
	if cfg.FeedersFile != "" {
		return LoadFeeders(cfg.FeedersFile)
	}

	var feeders []FeederConfig
	if cfg.UDPListenAddr != "" {
		feeders = append(feeders, FeederConfig{Name: "udp", Kind: KindUDP, Address: cfg.UDPListenAddr})
	}
	if cfg.TCPListenAddr != "" {
		feeders = append(feeders, FeederConfig{Name: "tcp", Kind: KindTCPListen, Address: cfg.TCPListenAddr})
	}
	if cfg.KafkaRawTopic != "" {
		feeders = append(feeders, FeederConfig{
			Name:    "kafka:" + cfg.KafkaRawTopic,
			Kind:    KindKafka,
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaRawTopic,
			GroupID: cfg.KafkaGroupID,
		})
	}
	return feeders, nil
}

// Open binds or prepares every feeder. Listen errors are returned before any
// source starts.
func (l *Listener) Open(feeders []FeederConfig) ([]Source, error) {
	sources := make([]Source, 0, len(feeders))
	closeAll := func() {
		for _, s := range sources {
			if c, ok := s.(interface{ Close() error }); ok {
				c.Close()
			}
		}
	}

	for _, f := range feeders {
		if err := f.Validate(); err != nil {
			closeAll()
			return nil, err
		}
		switch f.Kind {
		case KindUDP:
			src, err := ListenUDP(f.Name, f.Address, l)
			if err != nil {
				closeAll()
				return nil, err
			}
			sources = append(sources, src)
		case KindTCPListen:
			src, err := ListenTCP(f.Name, f.Address, l)
			if err != nil {
				closeAll()
				return nil, err
			}
			sources = append(sources, src)
		case KindTCPDial:
			sources = append(sources, NewTCPClientSource(f.Name, f.Address, f.RetryDelay, l))
		case KindKafka:
			groupID := f.GroupID
			if groupID == "" {
				groupID = "aistrack"
			}
			sources = append(sources, NewKafkaSource(f.Name, f.Brokers, f.Topic, groupID, l))
		}
	}
	return sources, nil
}

// Run runs every source until ctx is done. A source that fails is logged and
// the others keep running. The failures are returned once every source has
// stopped.
func Run(ctx context.Context, sources []Source) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := src.Run(ctx); err != nil {
				logger.WithFeeder(src.Name()).WithError(err).Error("Feeder stopped, other feeders keep running")
				mu.Lock()
				errs = append(errs, fmt.Errorf("feeder %s: %w", src.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
