package nsx

import (
	"context"
	"fmt"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

const kindNatRule = "nat-rule"

// StaticNat maps a public IP one-to-one onto a VM
type StaticNat struct {
	Network    types.NetworkRef
	PublicIPID int64
	PublicIP   string
	VMIP       string
}

// PortForward forwards a public port onto a VM's private port
type PortForward struct {
	Network     types.NetworkRef
	RuleID      int64
	PublicIP    string
	PublicPort  string
	VMIP        string
	PrivatePort string
	Protocol    string
}

// RuleName returns the rule ID of a static NAT
func (s StaticNat) RuleName() string {
	n := s.Network
	return naming.StaticNatRuleName(n.ZoneID, n.DomainID, n.AccountID, n.RouterID(), s.PublicIPID, n.IsVpc())
}

// Validate checks that the static NAT names a public IP
func (s StaticNat) Validate() error {
	if s.PublicIPID <= 0 {
		return fmt.Errorf("static NAT of %s requires a public IP ID", s.PublicIP)
	}
	return nil
}

// RuleName returns the rule ID of a port forward
func (p PortForward) RuleName() string {
	n := p.Network
	return naming.PortForwardRuleName(n.ZoneID, n.DomainID, n.AccountID, n.RouterID(), p.RuleID, n.IsVpc())
}

// CreateStaticNatRule creates or replaces the static NAT rule of one public
// IP of a network
func (c *Client) CreateStaticNatRule(ctx context.Context, nat StaticNat) error {
	if err := nat.Validate(); err != nil {
		return err
	}
	gateway := naming.GatewayNameFor(nat.Network)
	name := nat.RuleName()

	rule := model.PolicyNatRule{
		Resource: model.Resource{
			ID:           name,
			DisplayName:  name,
			ResourceType: model.ResourcePolicyNatRule,
		},
		Action:             model.NatActionDNAT,
		DestinationNetwork: nat.PublicIP,
		TranslatedNetwork:  nat.VMIP,
		Enabled:            true,
	}
	if err := c.api.Patch(ctx, model.NatRulePath(gateway, name), rule); err != nil {
		return fmt.Errorf("failed to create static NAT rule %s on gateway %s: %w", name, gateway, err)
	}

	c.created(kindNatRule, events.EventNatRuleCreated, name)
	logger := log.WithGateway(gateway)
	logger.Info().
		Str("rule", name).
		Str("public_ip", nat.PublicIP).
		Str("vm_ip", nat.VMIP).
		Msg("Static NAT rule created")
	return nil
}

// CreatePortForwardRule creates or replaces a port forwarding rule along
// with the service describing its public port
func (c *Client) CreatePortForwardRule(ctx context.Context, pf PortForward) error {
	gateway := naming.GatewayNameFor(pf.Network)
	name := pf.RuleName()

	service, err := c.ResolveService(ctx, name, pf.PublicPort, pf.Protocol, -1, -1)
	if err != nil {
		return fmt.Errorf("failed to resolve service of port forward %s: %w", name, err)
	}

	rule := model.PolicyNatRule{
		Resource: model.Resource{
			ID:           name,
			DisplayName:  name,
			ResourceType: model.ResourcePolicyNatRule,
		},
		Action:             model.NatActionDNAT,
		DestinationNetwork: pf.PublicIP,
		TranslatedNetwork:  pf.VMIP,
		TranslatedPorts:    pf.PrivatePort,
		Service:            service,
		FirewallMatch:      model.MatchExternalAddress,
		Enabled:            true,
	}
	if err := c.api.Patch(ctx, model.NatRulePath(gateway, name), rule); err != nil {
		return fmt.Errorf("failed to create port forward %s on gateway %s: %w", name, gateway, err)
	}

	c.created(kindNatRule, events.EventNatRuleCreated, name)
	logger := log.WithGateway(gateway)
	logger.Info().
		Str("rule", name).
		Str("public", pf.PublicIP+":"+pf.PublicPort).
		Str("private", pf.VMIP+":"+pf.PrivatePort).
		Msg("Port forward created")
	return nil
}

// CreateSourceNatRule translates traffic leaving a network's subnet to the
// gateway's public IP
func (c *Client) CreateSourceNatRule(ctx context.Context, ref types.NetworkRef, sourceCIDR, publicIP string) error {
	gateway := naming.GatewayNameFor(ref)
	name := naming.SourceNatRuleName(gateway)

	rule := model.PolicyNatRule{
		Resource: model.Resource{
			ID:           name,
			DisplayName:  name,
			ResourceType: model.ResourcePolicyNatRule,
		},
		Action:            model.NatActionSNAT,
		SourceNetwork:     sourceCIDR,
		TranslatedNetwork: publicIP,
		FirewallMatch:     model.MatchInternalAddress,
		Enabled:           true,
	}
	if err := c.api.Patch(ctx, model.NatRulePath(gateway, name), rule); err != nil {
		return fmt.Errorf("failed to create source NAT rule on gateway %s: %w", gateway, err)
	}

	c.created(kindNatRule, events.EventNatRuleCreated, name)
	return nil
}

// DeleteStaticNatRule removes the static NAT rule of one public IP
func (c *Client) DeleteStaticNatRule(ctx context.Context, nat StaticNat) error {
	if err := nat.Validate(); err != nil {
		return err
	}
	_, err := c.deleteNatRule(ctx, naming.GatewayNameFor(nat.Network), nat.RuleName())
	return err
}

// DeleteSourceNatRule removes the source NAT rule of a network's gateway
func (c *Client) DeleteSourceNatRule(ctx context.Context, ref types.NetworkRef) error {
	gateway := naming.GatewayNameFor(ref)
	_, err := c.deleteNatRule(ctx, gateway, naming.SourceNatRuleName(gateway))
	return err
}

// DeletePortForwardRule removes a port forward, then its service once no
// other NAT rule of the gateway uses it
func (c *Client) DeletePortForwardRule(ctx context.Context, pf PortForward) error {
	gateway := naming.GatewayNameFor(pf.Network)

	rule, err := c.deleteNatRule(ctx, gateway, pf.RuleName())
	if err != nil || rule == nil || rule.Service == "" {
		return err
	}

	remaining, err := listAll[model.PolicyNatRule](ctx, c.api, model.NatRulesPath(gateway), nil)
	if err != nil {
		return fmt.Errorf("failed to list NAT rules of gateway %s: %w", gateway, err)
	}
	for _, other := range remaining {
		if other.Service == rule.Service {
			c.logger.Debug().
				Str("service", rule.Service).
				Str("rule", other.ID).
				Msg("Service still used by another NAT rule")
			return nil
		}
	}

	return c.DeleteService(ctx, serviceID(rule.Service))
}

// deleteNatRule removes a rule and returns what it held. A missing rule
// returns nil without error.
func (c *Client) deleteNatRule(ctx context.Context, gateway, name string) (*model.PolicyNatRule, error) {
	path := model.NatRulePath(gateway, name)

	var rule model.PolicyNatRule
	found, err := c.lookup(ctx, path, &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to look up NAT rule %s on gateway %s: %w", name, gateway, err)
	}
	if !found {
		logger := log.WithGateway(gateway)
		logger.Debug().Str("rule", name).Msg("NAT rule not found, nothing to delete")
		return nil, nil
	}

	if err := c.remove(ctx, path, kindNatRule, events.EventNatRuleDeleted, name); err != nil {
		return nil, fmt.Errorf("failed to delete NAT rule %s on gateway %s: %w", name, gateway, err)
	}
	return &rule, nil
}
