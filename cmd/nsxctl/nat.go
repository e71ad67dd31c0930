package main

import (
	"context"
	"fmt"

	"github.com/cuemby/nsx-orchestrator/pkg/nsx"
	"github.com/spf13/cobra"
)

// NAT commands
var natCmd = &cobra.Command{
	Use:   "nat",
	Short: "Manage NAT rules of a network's gateway",
}

var natStaticCmd = &cobra.Command{
	Use:   "static",
	Short: "Map a public IP one-to-one onto a VM",
	RunE: func(cmd *cobra.Command, args []string) error {
		nat := staticNatFromFlags(cmd)
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.CreateStaticNatRule(ctx, nat); err != nil {
				return err
			}
			fmt.Printf("✓ Static NAT rule ready: %s\n", nat.RuleName())
			return nil
		})
	},
}

var natForwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Forward a public port onto a VM",
	RunE: func(cmd *cobra.Command, args []string) error {
		pf := portForwardFromFlags(cmd)
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.CreatePortForwardRule(ctx, pf); err != nil {
				return err
			}
			fmt.Printf("✓ Port forward ready: %s\n", pf.RuleName())
			return nil
		})
	},
}

var natSourceCmd = &cobra.Command{
	Use:   "snat",
	Short: "Translate traffic leaving a network to a public IP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := networkRef(cmd)
		cidr, _ := cmd.Flags().GetString("source-cidr")
		publicIP, _ := cmd.Flags().GetString("public-ip")

		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.CreateSourceNatRule(ctx, ref, cidr, publicIP); err != nil {
				return err
			}
			fmt.Println("✓ Source NAT rule ready")
			return nil
		})
	},
}

var natDeleteCmd = &cobra.Command{
	Use:       "delete static|forward|snat",
	Short:     "Delete a NAT rule",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"static", "forward", "snat"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := args[0]
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			var err error
			switch kind {
			case "static":
				err = client.DeleteStaticNatRule(ctx, staticNatFromFlags(cmd))
			case "forward":
				err = client.DeletePortForwardRule(ctx, portForwardFromFlags(cmd))
			case "snat":
				err = client.DeleteSourceNatRule(ctx, networkRef(cmd))
			}
			if err != nil {
				return err
			}
			fmt.Printf("✓ %s NAT rule deleted\n", kind)
			return nil
		})
	},
}

func staticNatFromFlags(cmd *cobra.Command) nsx.StaticNat {
	publicIPID, _ := cmd.Flags().GetInt64("public-ip-id")
	publicIP, _ := cmd.Flags().GetString("public-ip")
	vmIP, _ := cmd.Flags().GetString("vm-ip")
	return nsx.StaticNat{
		Network:    networkRef(cmd),
		PublicIPID: publicIPID,
		PublicIP:   publicIP,
		VMIP:       vmIP,
	}
}

func portForwardFromFlags(cmd *cobra.Command) nsx.PortForward {
	flags := cmd.Flags()
	ruleID, _ := flags.GetInt64("rule-id")
	publicIP, _ := flags.GetString("public-ip")
	publicPort, _ := flags.GetString("public-port")
	vmIP, _ := flags.GetString("vm-ip")
	privatePort, _ := flags.GetString("private-port")
	protocol, _ := flags.GetString("protocol")
	return nsx.PortForward{
		Network:     networkRef(cmd),
		RuleID:      ruleID,
		PublicIP:    publicIP,
		PublicPort:  publicPort,
		VMIP:        vmIP,
		PrivatePort: privatePort,
		Protocol:    protocol,
	}
}

func init() {
	natCmd.AddCommand(natStaticCmd)
	natCmd.AddCommand(natForwardCmd)
	natCmd.AddCommand(natSourceCmd)
	natCmd.AddCommand(natDeleteCmd)

	for _, cmd := range []*cobra.Command{natStaticCmd, natForwardCmd, natSourceCmd, natDeleteCmd} {
		addNetworkFlags(cmd)
		cmd.Flags().String("public-ip", "", "Public IP address")
	}
	for _, cmd := range []*cobra.Command{natStaticCmd, natForwardCmd, natDeleteCmd} {
		cmd.Flags().String("vm-ip", "", "VM IP address")
	}
	for _, cmd := range []*cobra.Command{natForwardCmd, natDeleteCmd} {
		cmd.Flags().Int64("rule-id", 0, "Port forwarding rule ID")
		cmd.Flags().String("public-port", "", "Public port or port range")
		cmd.Flags().String("private-port", "", "Private port or port range")
		cmd.Flags().String("protocol", "tcp", "Protocol (tcp, udp)")
	}
	for _, cmd := range []*cobra.Command{natStaticCmd, natDeleteCmd} {
		cmd.Flags().Int64("public-ip-id", 0, "ID of the public IP a static NAT is bound to")
	}
	natSourceCmd.Flags().String("source-cidr", "", "Subnet of the network")

	_ = natStaticCmd.MarkFlagRequired("public-ip-id")
	_ = natStaticCmd.MarkFlagRequired("public-ip")
	_ = natStaticCmd.MarkFlagRequired("vm-ip")
	_ = natForwardCmd.MarkFlagRequired("public-ip")
	_ = natForwardCmd.MarkFlagRequired("public-port")
	_ = natForwardCmd.MarkFlagRequired("vm-ip")
	_ = natSourceCmd.MarkFlagRequired("source-cidr")
	_ = natSourceCmd.MarkFlagRequired("public-ip")
}
