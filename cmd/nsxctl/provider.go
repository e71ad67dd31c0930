package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cuemby/nsx-orchestrator/pkg/health"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/transport"
	"github.com/cuemby/nsx-orchestrator/pkg/storage"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Provider commands
var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage the controllers registered per zone",
}

var providerAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register the controller of a zone",
	Long: `Register the controller serving a zone. Registering a zone again
replaces its controller.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		zone, _ := flags.GetInt64("zone")
		hostname, _ := flags.GetString("hostname")
		port, _ := flags.GetInt("port")
		username, _ := flags.GetString("username")
		password, _ := flags.GetString("password")
		tier0, _ := flags.GetString("tier0-gateway")
		edgeCluster, _ := flags.GetString("edge-cluster")
		transportZone, _ := flags.GetString("transport-zone")
		insecure, _ := flags.GetBool("insecure")
		caFile, _ := flags.GetString("ca-file")
		timeout, _ := flags.GetDuration("timeout")
		retries, _ := flags.GetInt("api-retries")
		interval, _ := flags.GetInt("api-retry-interval")

		if retries < 0 || interval < 0 {
			return fmt.Errorf("--api-retries and --api-retry-interval must not be negative")
		}

		provider := &types.Provider{
			ZoneID:             zone,
			Name:               args[0],
			Hostname:           hostname,
			Port:               port,
			Username:           username,
			Password:           password,
			Tier0Gateway:       tier0,
			EdgeCluster:        edgeCluster,
			TransportZone:      transportZone,
			InsecureSkipVerify: insecure,
			CAFile:             caFile,
			Timeout:            timeout,
			Settings: types.ZoneSettings{
				APIRetries:       retries,
				APIRetryInterval: interval,
			},
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		existing, err := store.GetProvider(zone)
		switch {
		case err == nil:
			provider.CreatedAt = existing.CreatedAt
			if err := store.UpdateProvider(provider); err != nil {
				return fmt.Errorf("failed to update provider: %w", err)
			}
			fmt.Printf("✓ Provider updated: %s (zone %d)\n", provider.Name, zone)
		case errors.Is(err, storage.ErrNotFound):
			if err := store.CreateProvider(provider); err != nil {
				return fmt.Errorf("failed to register provider: %w", err)
			}
			fmt.Printf("✓ Provider registered: %s (zone %d)\n", provider.Name, zone)
		default:
			return err
		}
		return nil
	},
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered controllers",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		providers, err := store.ListProviders()
		if err != nil {
			return fmt.Errorf("failed to list providers: %w", err)
		}
		if len(providers) == 0 {
			fmt.Println("No providers registered")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ZONE\tNAME\tHOSTNAME\tTIER-0\tRETRIES\tINTERVAL")
		for _, p := range providers {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%ds\n",
				p.ZoneID, p.Name, p.Hostname, p.Tier0Gateway,
				p.Settings.APIRetries, p.Settings.APIRetryInterval)
		}
		return w.Flush()
	},
}

var providerRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the controller registered for a zone",
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, _ := cmd.Flags().GetInt64("zone")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteProvider(zone); err != nil {
			return fmt.Errorf("failed to remove provider: %w", err)
		}
		fmt.Printf("✓ Provider removed (zone %d)\n", zone)
		return nil
	},
}

var providerCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that controllers are reachable",
	Long: `Check the controller of a zone, or of every registered zone with --all.
A controller is healthy when its API port accepts connections and an
authenticated API call succeeds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		var providers []*types.Provider
		if all {
			store, err := openStore()
			if err != nil {
				return err
			}
			providers, err = store.ListProviders()
			store.Close()
			if err != nil {
				return fmt.Errorf("failed to list providers: %w", err)
			}
		} else {
			zone, _ := cmd.Flags().GetInt64("zone")
			provider, err := resolveProvider(zone)
			if err != nil {
				return err
			}
			providers = []*types.Provider{provider}
		}
		if len(providers) == 0 {
			fmt.Println("No providers registered")
			return nil
		}

		reports := make([]health.Report, len(providers))
		g, ctx := errgroup.WithContext(cmd.Context())
		for i, provider := range providers {
			i, provider := i, provider
			g.Go(func() error {
				report, err := checkProvider(ctx, provider)
				reports[i] = report
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		unhealthy := 0
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ZONE\tNAME\tCHECK\tSTATUS\tDURATION\tMESSAGE")
		for i, report := range reports {
			if !report.Healthy() {
				unhealthy++
			}
			for _, checkType := range []health.CheckType{health.CheckTypeTCP, health.CheckTypeAPI} {
				result, ok := report.Results[checkType]
				if !ok {
					continue
				}
				status := "healthy"
				if !result.Healthy {
					status = "unhealthy"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					providers[i].ZoneID, providers[i].Name, checkType, status,
					result.Duration.Round(time.Millisecond), result.Message)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if unhealthy > 0 {
			return fmt.Errorf("%d of %d controllers unhealthy", unhealthy, len(providers))
		}
		return nil
	},
}

// checkProvider probes one controller. Only a bad provider definition is
// returned as an error; an unreachable controller is reported unhealthy.
func checkProvider(ctx context.Context, provider *types.Provider) (health.Report, error) {
	api, err := transport.New(nsx.TransportConfig(provider))
	if err != nil {
		return health.Report{}, fmt.Errorf("invalid provider of zone %d: %w", provider.ZoneID, err)
	}

	port := provider.Port
	if port == 0 {
		port = 443
	}
	address := net.JoinHostPort(provider.Hostname, strconv.Itoa(port))

	return health.Run(ctx, address,
		health.NewTCPChecker(address),
		health.NewAPIChecker(api),
	), nil
}

func init() {
	providerCmd.AddCommand(providerAddCmd)
	providerCmd.AddCommand(providerCheckCmd)
	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerRemoveCmd)

	providerCheckCmd.Flags().Bool("all", false, "Check every registered controller")

	flags := providerAddCmd.Flags()
	flags.String("hostname", "", "Controller hostname")
	flags.Int("port", 443, "Controller port")
	flags.String("username", "", "Controller username")
	flags.String("password", "", "Controller password")
	flags.String("tier0-gateway", "", "Tier-0 gateway tenant gateways attach to")
	flags.String("edge-cluster", "", "Edge cluster tenant gateways are bound to")
	flags.String("transport-zone", "", "Overlay transport zone for segments (default: first overlay zone)")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.String("ca-file", "", "PEM bundle trusted for the controller certificate")
	flags.Duration("timeout", 0, "Timeout of every controller call")
	flags.Int("api-retries", types.DefaultAPIRetries, "Polls while waiting for a teardown")
	flags.Int("api-retry-interval", types.DefaultAPIRetryInterval, "Seconds between teardown polls")
	_ = providerAddCmd.MarkFlagRequired("hostname")
	_ = providerAddCmd.MarkFlagRequired("username")
	_ = providerAddCmd.MarkFlagRequired("password")
	_ = providerAddCmd.MarkFlagRequired("tier0-gateway")
}
