package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/nsx-orchestrator/pkg/nsx"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply network resources from a YAML file",
	Long: `Apply network resources described in a YAML file. A file may hold
several documents separated by ---; they are applied in order, or in reverse
order with --delete.

Examples:
  # Provision a network
  nsxctl apply -f network.yaml

  # Tear it down again
  nsxctl apply -f network.yaml --delete

Example document:
  kind: Segment
  network:
    domain_id: 1
    account_id: 2
    network_id: 10
  spec:
    gateway_cidr: 10.1.1.1/24`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	applyCmd.Flags().Bool("delete", false, "Delete the resources instead of creating them")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is one document of an apply file
type Resource struct {
	Kind    string           `yaml:"kind"`
	Network types.NetworkRef `yaml:"network"`
	Spec    yaml.Node        `yaml:"spec"`
}

// Resource kinds
const (
	KindGateway        = "Gateway"
	KindSegment        = "Segment"
	KindStaticNat      = "StaticNat"
	KindPortForward    = "PortForward"
	KindSourceNat      = "SourceNat"
	KindLoadBalancer   = "LoadBalancer"
	KindFirewallPolicy = "FirewallPolicy"
	KindDhcpRelay      = "DhcpRelay"
)

type gatewaySpec struct {
	SourceNat bool `yaml:"source_nat"`
}

type segmentSpec struct {
	GatewayCIDR string `yaml:"gateway_cidr"`
}

type staticNatSpec struct {
	PublicIPID int64  `yaml:"public_ip_id"`
	PublicIP   string `yaml:"public_ip"`
	VMIP       string `yaml:"vm_ip"`
}

type portForwardSpec struct {
	RuleID      int64  `yaml:"rule_id"`
	PublicIP    string `yaml:"public_ip"`
	PublicPort  string `yaml:"public_port"`
	VMIP        string `yaml:"vm_ip"`
	PrivatePort string `yaml:"private_port"`
	Protocol    string `yaml:"protocol"`
}

type sourceNatSpec struct {
	SourceCIDR string `yaml:"source_cidr"`
	PublicIP   string `yaml:"public_ip"`
}

type loadBalancerSpec struct {
	RuleID      int64            `yaml:"rule_id"`
	PublicIP    string           `yaml:"public_ip"`
	PublicPort  string           `yaml:"public_port"`
	PrivatePort string           `yaml:"private_port"`
	Protocol    string           `yaml:"protocol"`
	Algorithm   string           `yaml:"algorithm"`
	Members     []types.LbMember `yaml:"members"`
}

type firewallPolicySpec struct {
	Rules []types.NetworkRule `yaml:"rules"`
}

type dhcpRelaySpec struct {
	Servers []string `yaml:"servers"`
}

// action is one applied document
type action struct {
	kind   string
	create func(ctx context.Context, client *nsx.Client) error
	delete func(ctx context.Context, client *nsx.Client) error
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	remove, _ := cmd.Flags().GetBool("delete")
	zone, _ := cmd.Flags().GetInt64("zone")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	resources, err := parseResources(data)
	if err != nil {
		return err
	}

	actions := make([]action, 0, len(resources))
	for i := range resources {
		if resources[i].Network.ZoneID == 0 {
			resources[i].Network.ZoneID = zone
		}
		if resources[i].Network.ZoneID != zone {
			return fmt.Errorf("document %d targets zone %d, expected zone %d", i+1, resources[i].Network.ZoneID, zone)
		}
		a, err := buildAction(&resources[i])
		if err != nil {
			return fmt.Errorf("document %d: %w", i+1, err)
		}
		actions = append(actions, a)
	}

	return runWithClient(cmd, func(ctx context.Context, client *nsx.Client) error {
		if remove {
			for i := len(actions) - 1; i >= 0; i-- {
				if err := actions[i].delete(ctx, client); err != nil {
					return fmt.Errorf("failed to delete %s: %w", actions[i].kind, err)
				}
				fmt.Printf("✓ %s deleted\n", actions[i].kind)
			}
			return nil
		}

		for _, a := range actions {
			if err := a.create(ctx, client); err != nil {
				return fmt.Errorf("failed to apply %s: %w", a.kind, err)
			}
			fmt.Printf("✓ %s applied\n", a.kind)
		}
		return nil
	})
}

// parseResources splits a multi-document YAML file
func parseResources(data []byte) ([]Resource, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	var resources []Resource
	for {
		var resource Resource
		err := decoder.Decode(&resource)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if resource.Kind == "" {
			continue
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

func buildAction(resource *Resource) (action, error) {
	ref := resource.Network
	a := action{kind: resource.Kind}

	switch resource.Kind {
	case KindGateway:
		var spec gatewaySpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		a.create = func(ctx context.Context, c *nsx.Client) error { return c.CreateGateway(ctx, ref, spec.SourceNat) }
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeleteGateway(ctx, ref) }

	case KindSegment:
		var spec segmentSpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		if spec.GatewayCIDR == "" {
			return a, errors.New("segment gateway_cidr is required")
		}
		a.create = func(ctx context.Context, c *nsx.Client) error { return c.CreateSegment(ctx, ref, spec.GatewayCIDR) }
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeleteSegment(ctx, ref) }

	case KindStaticNat:
		var spec staticNatSpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		nat := nsx.StaticNat{Network: ref, PublicIPID: spec.PublicIPID, PublicIP: spec.PublicIP, VMIP: spec.VMIP}
		if err := nat.Validate(); err != nil {
			return a, err
		}
		a.create = func(ctx context.Context, c *nsx.Client) error { return c.CreateStaticNatRule(ctx, nat) }
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeleteStaticNatRule(ctx, nat) }

	case KindPortForward:
		var spec portForwardSpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		pf := nsx.PortForward{
			Network:     ref,
			RuleID:      spec.RuleID,
			PublicIP:    spec.PublicIP,
			PublicPort:  spec.PublicPort,
			VMIP:        spec.VMIP,
			PrivatePort: spec.PrivatePort,
			Protocol:    spec.Protocol,
		}
		a.create = func(ctx context.Context, c *nsx.Client) error { return c.CreatePortForwardRule(ctx, pf) }
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeletePortForwardRule(ctx, pf) }

	case KindSourceNat:
		var spec sourceNatSpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		a.create = func(ctx context.Context, c *nsx.Client) error {
			return c.CreateSourceNatRule(ctx, ref, spec.SourceCIDR, spec.PublicIP)
		}
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeleteSourceNatRule(ctx, ref) }

	case KindLoadBalancer:
		var spec loadBalancerSpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		rule := nsx.LoadBalancerRule{
			Network:     ref,
			RuleID:      spec.RuleID,
			PublicIP:    spec.PublicIP,
			PublicPort:  spec.PublicPort,
			PrivatePort: spec.PrivatePort,
			Protocol:    spec.Protocol,
			Algorithm:   spec.Algorithm,
			Members:     spec.Members,
		}
		a.create = func(ctx context.Context, c *nsx.Client) error { return c.CreateAndAddLbVirtualServer(ctx, rule) }
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeleteLbResources(ctx, rule) }

	case KindFirewallPolicy:
		var spec firewallPolicySpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		a.create = func(ctx context.Context, c *nsx.Client) error {
			return c.CreateSegmentDistributedFirewall(ctx, ref, spec.Rules)
		}
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeleteSegmentDistributedFirewall(ctx, ref) }

	case KindDhcpRelay:
		var spec dhcpRelaySpec
		if err := decodeSpec(resource, &spec); err != nil {
			return a, err
		}
		if len(spec.Servers) == 0 {
			return a, errors.New("dhcp relay servers are required")
		}
		a.create = func(ctx context.Context, c *nsx.Client) error { return c.CreateDHCPRelayConfig(ctx, ref, spec.Servers) }
		a.delete = func(ctx context.Context, c *nsx.Client) error { return c.DeleteDHCPRelayConfig(ctx, ref) }

	default:
		return a, fmt.Errorf("unsupported resource kind: %s", resource.Kind)
	}

	return a, nil
}

func decodeSpec(resource *Resource, out any) error {
	if resource.Spec.Kind == 0 {
		return nil
	}
	if err := resource.Spec.Decode(out); err != nil {
		return fmt.Errorf("invalid %s spec: %w", resource.Kind, err)
	}
	return nil
}
