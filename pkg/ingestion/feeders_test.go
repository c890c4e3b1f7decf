package ingestion

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aistrack/platform/pkg/common/config"
	"github.com/aistrack/platform/pkg/vessel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeeders(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeders.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFeeders(t *testing.T) {
	path := writeFeeders(t, `
feeders:
  - name: local
    kind: udp
    address: 0.0.0.0:10110
  - name: kystverket
    kind: tcp_dial
    address: 153.44.253.27:5631
    retry_delay: 5s
  - name: raw
    kind: kafka
    brokers: [kafka-1:9092, kafka-2:9092]
    topic: ais.raw
`)

	feeders, err := LoadFeeders(path)
	require.NoError(t, err)
	require.Len(t, feeders, 3)

	assert.Equal(t, FeederConfig{Name: "local", Kind: KindUDP, Address: "0.0.0.0:10110"}, feeders[0])
	assert.Equal(t, 5*time.Second, feeders[1].RetryDelay)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, feeders[2].Brokers)
	assert.Equal(t, "ais.raw", feeders[2].Topic)
}

func TestLoadFeedersRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown kind",
			body: "feeders:\n  - name: a\n    kind: serial\n    address: /dev/ttyUSB0\n",
			want: `unknown kind "serial"`,
		},
		{
			name: "missing address",
			body: "feeders:\n  - name: a\n    kind: tcp_listen\n",
			want: "address required",
		},
		{
			name: "kafka without topic",
			body: "feeders:\n  - name: a\n    kind: kafka\n    brokers: [localhost:9092]\n",
			want: "kafka needs brokers and topic",
		},
		{
			name: "duplicate name",
			body: "feeders:\n  - name: a\n    kind: udp\n    address: :1\n  - name: a\n    kind: udp\n    address: :2\n",
			want: `duplicate feeder name "a"`,
		},
		{
			name: "unnamed",
			body: "feeders:\n  - kind: udp\n    address: :1\n",
			want: "feeder without name",
		},
		{
			name: "bad yaml",
			body: "feeders: [",
			want: "parse feeders file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFeeders(writeFeeders(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFeedersMissingFile(t *testing.T) {
	_, err := LoadFeeders(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFeedersFromConfig(t *testing.T) {
	cfg := &config.Config{
		UDPListenAddr: "0.0.0.0:10110",
		TCPListenAddr: "0.0.0.0:10111",
		KafkaBrokers:  []string{"localhost:9092"},
		KafkaGroupID:  "aistrack",
		KafkaRawTopic: "ais.raw",
	}

	feeders, err := FeedersFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []FeederConfig{
		{Name: "udp", Kind: KindUDP, Address: "0.0.0.0:10110"},
		{Name: "tcp", Kind: KindTCPListen, Address: "0.0.0.0:10111"},
		{Name: "kafka:ais.raw", Kind: KindKafka, Brokers: []string{"localhost:9092"}, Topic: "ais.raw", GroupID: "aistrack"},
	}, feeders)

	cfg.FeedersFile = writeFeeders(t, "feeders:\n  - name: only\n    kind: udp\n    address: :9\n")
	feeders, err = FeedersFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, feeders, 1)
	assert.Equal(t, "only", feeders[0].Name)
}

func TestOpenClosesSourcesOnError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	l := NewListener(vessel.NewStore(1), Options{})
	_, err = l.Open([]FeederConfig{
		{Name: "first", Kind: KindUDP, Address: "127.0.0.1:0"},
		{Name: "clash", Kind: KindTCPListen, Address: busy.Addr().String()},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen tcp")
}

func TestOpenDefaultsKafkaGroup(t *testing.T) {
	l := NewListener(vessel.NewStore(1), Options{})
	sources, err := l.Open([]FeederConfig{
		{Name: "raw", Kind: KindKafka, Brokers: []string{"localhost:9092"}, Topic: "ais.raw"},
		{Name: "dial", Kind: KindTCPDial, Address: "localhost:5631"},
	})
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "raw", sources[0].Name())
	assert.IsType(t, &KafkaSource{}, sources[0])
	assert.IsType(t, &TCPClientSource{}, sources[1])
	assert.Equal(t, DefaultRetryWait, sources[1].(*TCPClientSource).retryWait)

	sources[0].(*KafkaSource).consumer.Close()
}
