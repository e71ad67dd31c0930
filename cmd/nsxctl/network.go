package main

import (
	"context"
	"fmt"

	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx"
	"github.com/spf13/cobra"
)

// Gateway commands
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Manage the tier-1 gateway of a network or VPC",
}

var gatewayCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a gateway and bind it to the edge cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		sourceNat, _ := cmd.Flags().GetBool("source-nat")

		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.CreateGateway(ctx, ref, sourceNat); err != nil {
				return err
			}
			fmt.Printf("✓ Gateway ready: %s\n", naming.GatewayNameFor(ref))
			return nil
		})
	},
}

var gatewaySourceNatCmd = &cobra.Command{
	Use:   "source-nat",
	Short: "Update the route advertisement of a gateway after toggling source NAT",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		enabled, _ := cmd.Flags().GetBool("enabled")

		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.UpdateGatewaySourceNat(ctx, ref, enabled); err != nil {
				return err
			}
			fmt.Printf("✓ Gateway updated: %s (source NAT %t)\n", naming.GatewayNameFor(ref), enabled)
			return nil
		})
	},
}

var gatewayDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a gateway with its NAT rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.DeleteGateway(ctx, ref); err != nil {
				return err
			}
			fmt.Printf("✓ Gateway deleted: %s\n", naming.GatewayNameFor(ref))
			return nil
		})
	},
}

func init() {
	gatewayCmd.AddCommand(gatewayCreateCmd)
	gatewayCmd.AddCommand(gatewaySourceNatCmd)
	gatewayCmd.AddCommand(gatewayDeleteCmd)

	for _, cmd := range []*cobra.Command{gatewayCreateCmd, gatewaySourceNatCmd, gatewayDeleteCmd} {
		addNetworkFlags(cmd)
	}
	gatewayCreateCmd.Flags().Bool("source-nat", false, "Source NAT is enabled on the network")
	gatewaySourceNatCmd.Flags().Bool("enabled", false, "Source NAT is enabled on the network")
}

// Segment commands
var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Manage the segment of a network",
}

var segmentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a segment on its gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		cidr, _ := cmd.Flags().GetString("gateway-cidr")

		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.CreateSegment(ctx, ref, cidr); err != nil {
				return err
			}
			fmt.Printf("✓ Segment ready: %s\n", naming.SegmentNameFor(ref))
			return nil
		})
	},
}

var segmentDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a segment once its ports are detached",
	Long: `Delete a segment with its firewall policy and DHCP relay. Networks
outside a VPC lose their gateway's load balancer too.

The command waits for attached ports to go away, polling on the zone's retry
interval, and fails when ports are still attached after the retry budget.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.DeleteSegment(ctx, ref); err != nil {
				return err
			}
			fmt.Printf("✓ Segment deleted: %s\n", naming.SegmentNameFor(ref))
			return nil
		})
	},
}

var segmentPortsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Count the ports attached to a segment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			name := naming.SegmentNameFor(ref)
			count, err := client.SegmentPortCount(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d ports\n", name, count)
			return nil
		})
	},
}

func init() {
	segmentCmd.AddCommand(segmentCreateCmd)
	segmentCmd.AddCommand(segmentDeleteCmd)
	segmentCmd.AddCommand(segmentPortsCmd)

	for _, cmd := range []*cobra.Command{segmentCreateCmd, segmentDeleteCmd, segmentPortsCmd} {
		addNetworkFlags(cmd)
	}
	segmentCreateCmd.Flags().String("gateway-cidr", "", "Gateway address in prefix notation, e.g. 10.1.1.1/24")
	_ = segmentCreateCmd.MarkFlagRequired("gateway-cidr")
}

// DHCP relay commands
var dhcpRelayCmd = &cobra.Command{
	Use:   "dhcp-relay",
	Short: "Manage the DHCP relay of a network",
}

var dhcpRelaySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Relay DHCP requests of a network to servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		servers, _ := cmd.Flags().GetStringSlice("server")

		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.CreateDHCPRelayConfig(ctx, ref, servers); err != nil {
				return err
			}
			fmt.Printf("✓ DHCP relay set: %s\n", naming.DHCPRelayConfigIDFor(ref))
			return nil
		})
	},
}

var dhcpRelayDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the DHCP relay of a network",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.DeleteDHCPRelayConfig(ctx, ref); err != nil {
				return err
			}
			fmt.Printf("✓ DHCP relay deleted: %s\n", naming.DHCPRelayConfigIDFor(ref))
			return nil
		})
	},
}

func init() {
	dhcpRelayCmd.AddCommand(dhcpRelaySetCmd)
	dhcpRelayCmd.AddCommand(dhcpRelayDeleteCmd)

	addNetworkFlags(dhcpRelaySetCmd)
	addNetworkFlags(dhcpRelayDeleteCmd)
	dhcpRelaySetCmd.Flags().StringSlice("server", nil, "DHCP server address (repeatable)")
	_ = dhcpRelaySetCmd.MarkFlagRequired("server")
}
