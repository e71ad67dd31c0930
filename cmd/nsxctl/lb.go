package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/spf13/cobra"
)

// Load balancer commands
var lbCmd = &cobra.Command{
	Use:   "lb",
	Short: "Manage load balancer rules of a network's gateway",
}

var lbAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Expose a set of VMs on a public IP and port",
	Long: `Expose a set of VMs on a public IP and port.

Members are given as VMID=IP or VMID=IP:PORT; members without a port receive
traffic on the private port.

Example:
  nsxctl lb add --domain 1 --account 2 --network 10 --rule-id 5 \
    --public-ip 203.0.113.10 --public-port 80 --private-port 8080 \
    --member 100=10.1.1.10 --member 101=10.1.1.11:8081`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := lbRuleFromFlags(cmd)
		if err != nil {
			return err
		}
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if err := client.CreateAndAddLbVirtualServer(ctx, rule); err != nil {
				return err
			}
			fmt.Printf("✓ Load balancer rule ready: %s\n", rule.VirtualServerName())
			return nil
		})
	},
}

var lbDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a load balancer rule",
	Long: `Delete a load balancer rule. Without --rule-id the whole load
balancer of the gateway is deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := lbRuleFromFlags(cmd)
		if err != nil {
			return err
		}
		return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
			if rule.RuleID == 0 {
				if err := client.DeleteLoadBalancer(ctx, rule.Gateway()); err != nil {
					return err
				}
				fmt.Printf("✓ Load balancer deleted: %s\n", naming.LoadBalancerName(rule.Gateway()))
				return nil
			}
			if err := client.DeleteLbResources(ctx, rule); err != nil {
				return err
			}
			fmt.Printf("✓ Load balancer rule deleted: %s\n", rule.VirtualServerName())
			return nil
		})
	},
}

func lbRuleFromFlags(cmd *cobra.Command) (nsx.LoadBalancerRule, error) {
	flags := cmd.Flags()
	ruleID, _ := flags.GetInt64("rule-id")
	publicIP, _ := flags.GetString("public-ip")
	publicPort, _ := flags.GetString("public-port")
	privatePort, _ := flags.GetString("private-port")
	protocol, _ := flags.GetString("protocol")
	algorithm, _ := flags.GetString("algorithm")
	specs, _ := flags.GetStringSlice("member")

	members := make([]types.LbMember, 0, len(specs))
	for _, spec := range specs {
		member, err := parseMember(spec)
		if err != nil {
			return nsx.LoadBalancerRule{}, err
		}
		members = append(members, member)
	}

	return nsx.LoadBalancerRule{
		Network:     networkRef(cmd),
		RuleID:      ruleID,
		PublicIP:    publicIP,
		PublicPort:  publicPort,
		PrivatePort: privatePort,
		Protocol:    protocol,
		Algorithm:   algorithm,
		Members:     members,
	}, nil
}

// parseMember parses VMID=IP or VMID=IP:PORT
func parseMember(spec string) (types.LbMember, error) {
	id, address, ok := strings.Cut(spec, "=")
	if !ok || address == "" {
		return types.LbMember{}, fmt.Errorf("invalid member %q: expected VMID=IP[:PORT]", spec)
	}
	vmID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return types.LbMember{}, fmt.Errorf("invalid member %q: %w", spec, err)
	}

	member := types.LbMember{VMID: vmID, VMIP: address}
	if ip, port, ok := strings.Cut(address, ":"); ok {
		if _, err := strconv.Atoi(port); err != nil {
			return types.LbMember{}, fmt.Errorf("invalid member port in %q", spec)
		}
		member.VMIP = ip
		member.Port = port
	}
	return member, nil
}

func init() {
	lbCmd.AddCommand(lbAddCmd)
	lbCmd.AddCommand(lbDeleteCmd)

	for _, cmd := range []*cobra.Command{lbAddCmd, lbDeleteCmd} {
		addNetworkFlags(cmd)
		cmd.Flags().Int64("rule-id", 0, "Load balancer rule ID")
		cmd.Flags().String("public-ip", "", "Virtual IP address")
		cmd.Flags().String("public-port", "", "Virtual server port")
		cmd.Flags().String("private-port", "", "Default member port")
		cmd.Flags().String("protocol", "tcp", "Protocol (tcp, udp, http, https)")
		cmd.Flags().String("algorithm", "roundrobin", "Algorithm (roundrobin, leastconn, source)")
		cmd.Flags().StringSlice("member", nil, "Pool member VMID=IP[:PORT] (repeatable)")
	}

	_ = lbAddCmd.MarkFlagRequired("rule-id")
	_ = lbAddCmd.MarkFlagRequired("public-ip")
	_ = lbAddCmd.MarkFlagRequired("public-port")
	_ = lbAddCmd.MarkFlagRequired("private-port")
}
