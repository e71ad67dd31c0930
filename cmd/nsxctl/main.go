package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/nsx-orchestrator/pkg/config"
	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/metrics"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx"
	"github.com/cuemby/nsx-orchestrator/pkg/security"
	"github.com/cuemby/nsx-orchestrator/pkg/storage"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded before every command runs
var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nsxctl",
	Short: "nsxctl - provision tenant networks on an NSX controller",
	Long: `nsxctl provisions tenant networking on an NSX policy API controller:
tier-1 gateways, segments, NAT, load balancers, distributed firewall
policies and DHCP relays.

Every command is idempotent. Creating an object that exists is a no-op and
deleting an object that is gone succeeds.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"nsxctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file")
	flags.String("data-dir", "", "Directory of the provider store (overrides the configuration)")
	flags.Int64("zone", 1, "Zone ID")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("json-logs", false, "Write logs as JSON")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")

	rootCmd.AddCommand(providerCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(natCmd)
	rootCmd.AddCommand(lbCmd)
	rootCmd.AddCommand(dfwCmd)
	rootCmd.AddCommand(dhcpRelayCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if cmd.Flags().Changed("json-logs") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("json-logs")
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := log.WithComponent("metrics")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
}

func openStore() (*storage.BoltStore, error) {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open provider store: %w", err)
	}
	if cfg.SecretKey != "" {
		sm, err := security.NewSecretsManagerFromPassword(cfg.SecretKey)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store.SetSecretsManager(sm)
	}
	return store, nil
}

// resolveProvider returns the controller registered for a zone, falling back
// to the controller of the configuration file
func resolveProvider(zoneID int64) (*types.Provider, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	provider, err := store.GetProvider(zoneID)
	if err == nil {
		return provider, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if !cfg.HasController() {
		return nil, fmt.Errorf("no provider registered for zone %d and no controller configured", zoneID)
	}
	return cfg.ToProvider(zoneID)
}

// runWithClient connects to the zone's controller and runs fn. Lifecycle
// events published while fn runs are logged.
func runWithClient(cmd *cobra.Command, fn func(ctx context.Context, client *nsx.Client) error) error {
	zoneID, _ := cmd.Flags().GetInt64("zone")

	provider, err := resolveProvider(zoneID)
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	done := make(chan struct{})
	go logEvents(zoneID, sub, done)

	client, err := nsx.Connect(provider, broker)
	if err != nil {
		broker.Unsubscribe(sub)
		<-done
		return err
	}

	err = fn(cmd.Context(), client)
	broker.Unsubscribe(sub)
	<-done
	return err
}

func logEvents(zoneID int64, sub events.Subscriber, done chan<- struct{}) {
	defer close(done)
	logger := log.WithZone(zoneID)
	for event := range sub {
		logger.Info().
			Str("type", string(event.Type)).
			Str("resource", event.Resource).
			Msg(event.Message)
	}
}

// addNetworkFlags adds the flags identifying a network
func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("domain", 0, "Domain ID")
	cmd.Flags().Int64("account", 0, "Account ID")
	cmd.Flags().Int64("vpc", 0, "VPC ID (0 for networks outside a VPC)")
	cmd.Flags().Int64("network", 0, "Network ID")
}

func networkRef(cmd *cobra.Command) types.NetworkRef {
	zone, _ := cmd.Flags().GetInt64("zone")
	domain, _ := cmd.Flags().GetInt64("domain")
	account, _ := cmd.Flags().GetInt64("account")
	vpc, _ := cmd.Flags().GetInt64("vpc")
	network, _ := cmd.Flags().GetInt64("network")
	return types.NetworkRef{
		ZoneID:    zone,
		DomainID:  domain,
		AccountID: account,
		VpcID:     vpc,
		NetworkID: network,
	}
}
