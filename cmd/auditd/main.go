package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/ward/pkg/audit"
	"github.com/cuemby/ward/pkg/delivery"
	"github.com/cuemby/ward/pkg/log"
	"github.com/cuemby/ward/pkg/metrics"
	"github.com/cuemby/ward/pkg/raftobserver"
	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set via -ldflags at release build time.
var Version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "auditd",
	Short:   "Consensus audit node: a passive safety and liveness observer",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().String("node-id", "", "node identity (default: a random UUID)")
	rootCmd.Flags().String("mode", "", "consensus mode: raft or pbft")
	rootCmd.Flags().Int("memory-ceiling", 0, "per-history bounded memory ceiling")
	rootCmd.Flags().String("monitor-endpoint", "", "UDP address:port of the external monitor; empty disables metric emission")
	rootCmd.Flags().String("listen-udp", "", "UDP address:port to accept inbound audit-event envelopes on; empty keeps delivery in-process only")
	rootCmd.Flags().String("http-addr", "", "HTTP address for the Prometheus and health surface")
	rootCmd.Flags().String("log-level", "", "log level (debug, info, error)")
	rootCmd.Flags().Bool("log-json", false, "emit JSON logs")
	rootCmd.Flags().Bool("raft-demo", false, "bootstrap a single-node raft.Raft and bridge its observations into the audit")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := defaultConfig()
	if err := loadConfigFile(configPath, &cfg); err != nil {
		return fmt.Errorf("auditd: load config: %w", err)
	}
	applyFlagOverrides(cmd, &cfg)

	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	logger := log.WithComponent("audit").With().Str("node_id", cfg.NodeID).Logger()

	mode, err := parseMode(cfg.Mode)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer, cfg.NodeID)

	broker := delivery.NewBroker()
	broker.Start()
	defer broker.Stop()

	var node delivery.Node = broker
	var udpListener *delivery.UDPListener
	if cfg.ListenUDP != "" {
		udpListener, err = delivery.NewUDPListener(cfg.ListenUDP, logger)
		if err != nil {
			return fmt.Errorf("auditd: udp listener: %w", err)
		}
		udpListener.Start()
		defer udpListener.Close()
		node = udpListener
	}

	coordinator, err := audit.NewCoordinator(node, audit.Config{
		NodeID:                cfg.NodeID,
		Mode:                  mode,
		MemoryCeiling:         cfg.MemoryCeiling,
		MonitorEndpoint:       cfg.MonitorEndpoint,
		LeaderAliveTimeout:    cfg.LeaderAliveTimeout,
		PrimaryAliveTimeout:   cfg.PrimaryAliveTimeout,
		LeaderProgressTimeout: cfg.LeaderProgressTimeout,
		Logger:                logger,
		Metrics:               reg,
	})
	if err != nil {
		return fmt.Errorf("auditd: coordinator: %w", err)
	}
	defer coordinator.Close()
	coordinator.Start()

	if cfg.RaftDemo && mode == audit.ModeRaft {
		if cfg.ListenUDP != "" {
			logger.Error().Msg("auditd: raft-demo requires in-process delivery; ignoring it since listen-udp is set")
		} else {
			demo, err := startRaftDemo(cfg.NodeID, broker, logger)
			if err != nil {
				return fmt.Errorf("auditd: raft demo: %w", err)
			}
			defer demo.Close()
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())

	logger.Info().Str("http_addr", cfg.HTTPAddr).Msg("auditd http surface listening")
	return http.ListenAndServe(cfg.HTTPAddr, mux)
}

func parseMode(s string) (audit.Mode, error) {
	switch s {
	case "", "raft":
		return audit.ModeRaft, nil
	case "pbft":
		return audit.ModePBFT, nil
	default:
		return 0, fmt.Errorf("auditd: unknown mode %q (want raft or pbft)", s)
	}
}

func applyFlagOverrides(cmd *cobra.Command, cfg *Config) {
	if v, _ := cmd.Flags().GetString("node-id"); v != "" {
		cfg.NodeID = v
	}
	if v, _ := cmd.Flags().GetString("mode"); v != "" {
		cfg.Mode = v
	}
	if v, _ := cmd.Flags().GetInt("memory-ceiling"); v != 0 {
		cfg.MemoryCeiling = v
	}
	if v, _ := cmd.Flags().GetString("monitor-endpoint"); v != "" {
		cfg.MonitorEndpoint = v
	}
	if v, _ := cmd.Flags().GetString("listen-udp"); v != "" {
		cfg.ListenUDP = v
	}
	if v, _ := cmd.Flags().GetString("http-addr"); v != "" {
		cfg.HTTPAddr = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetBool("log-json"); v {
		cfg.LogJSON = v
	}
	if v, _ := cmd.Flags().GetBool("raft-demo"); v {
		cfg.RaftDemo = v
	}
}

// raftDemo bootstraps a single-node hashicorp/raft cluster purely to drive
// pkg/raftobserver with real leader-election and log-index activity. It
// never stores keys; demoFSM discards every entry it is handed.
type raftDemo struct {
	raft   *raft.Raft
	bridge *raftobserver.Bridge
}

func startRaftDemo(nodeID string, node delivery.Submitter, logger zerolog.Logger) (*raftDemo, error) {
	dataDir := filepath.Join(os.TempDir(), "ward-auditd-raft-"+nodeID)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	bindAddr := "127.0.0.1:0"
	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, err
	}

	snapshots, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, err
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return nil, err
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return nil, err
	}

	r, err := raft.NewRaft(config, demoFSM{}, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, err
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return nil, err
	}

	bridge := raftobserver.New(r, node, logger)
	bridge.Start()

	return &raftDemo{raft: r, bridge: bridge}, nil
}

func (d *raftDemo) Close() error {
	d.bridge.Close()
	return d.raft.Shutdown().Error()
}

type demoFSM struct{}

func (demoFSM) Apply(*raft.Log) interface{}         { return nil }
func (demoFSM) Snapshot() (raft.FSMSnapshot, error) { return demoSnapshot{}, nil }
func (demoFSM) Restore(rc io.ReadCloser) error       { return rc.Close() }

type demoSnapshot struct{}

func (demoSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (demoSnapshot) Release()                             {}
