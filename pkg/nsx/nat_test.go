package nsx

import (
	"context"
	"net/http"
	"testing"

	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticNatRule(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	gateway := naming.GatewayNameFor(vpcNetwork)
	nat := StaticNat{Network: vpcNetwork, PublicIPID: 5, PublicIP: "203.0.113.5", VMIP: "10.1.1.5"}
	path := model.NatRulePath(gateway, nat.RuleName())

	require.NoError(t, client.CreateStaticNatRule(ctx, nat))

	var rule model.PolicyNatRule
	require.True(t, server.Get(path, &rule))
	assert.Equal(t, "D2-A3-Z1-V4-STATICNAT-IP5", rule.ID)
	assert.Equal(t, model.NatActionDNAT, rule.Action)
	assert.Equal(t, "203.0.113.5", rule.DestinationNetwork)
	assert.Equal(t, "10.1.1.5", rule.TranslatedNetwork)
	assert.True(t, rule.Enabled)

	require.NoError(t, client.DeleteStaticNatRule(ctx, nat))
	require.NoError(t, client.DeleteStaticNatRule(ctx, nat))
	assert.False(t, server.Has(path))
	assert.Equal(t, 1, server.Mutations(http.MethodDelete, path))
}

func TestStaticNatRulesOnOneNetwork(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	gateway := naming.GatewayNameFor(vpcNetwork)

	first := StaticNat{Network: vpcNetwork, PublicIPID: 5, PublicIP: "203.0.113.5", VMIP: "10.1.1.5"}
	second := StaticNat{Network: vpcNetwork, PublicIPID: 6, PublicIP: "203.0.113.6", VMIP: "10.1.1.6"}
	require.NotEqual(t, first.RuleName(), second.RuleName())

	require.NoError(t, client.CreateStaticNatRule(ctx, first))
	require.NoError(t, client.CreateStaticNatRule(ctx, second))

	var rule model.PolicyNatRule
	require.True(t, server.Get(model.NatRulePath(gateway, first.RuleName()), &rule))
	assert.Equal(t, "203.0.113.5", rule.DestinationNetwork)
	assert.Equal(t, "10.1.1.5", rule.TranslatedNetwork)
	require.True(t, server.Get(model.NatRulePath(gateway, second.RuleName()), &rule))
	assert.Equal(t, "203.0.113.6", rule.DestinationNetwork)

	require.NoError(t, client.DeleteStaticNatRule(ctx, second))
	assert.False(t, server.Has(model.NatRulePath(gateway, second.RuleName())))
	require.True(t, server.Get(model.NatRulePath(gateway, first.RuleName()), &rule))
	assert.Equal(t, "10.1.1.5", rule.TranslatedNetwork)
}

func TestStaticNatRuleRequiresPublicIPID(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	nat := StaticNat{Network: vpcNetwork, PublicIP: "203.0.113.5", VMIP: "10.1.1.5"}

	assert.Error(t, client.CreateStaticNatRule(ctx, nat))
	assert.Error(t, client.DeleteStaticNatRule(ctx, nat))
	assert.Zero(t, server.TotalMutations())
}

func TestPortForwardRule(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	gateway := naming.GatewayNameFor(isolated)
	pf := PortForward{
		Network:     isolated,
		RuleID:      12,
		PublicIP:    "203.0.113.6",
		PublicPort:  "2222",
		VMIP:        "10.2.0.7",
		PrivatePort: "22",
		Protocol:    "tcp",
	}
	path := model.NatRulePath(gateway, pf.RuleName())
	servicePath := model.ServicePath(naming.ServiceName(pf.RuleName(), "2222", "tcp", -1, -1))

	require.NoError(t, client.CreatePortForwardRule(ctx, pf))

	var rule model.PolicyNatRule
	require.True(t, server.Get(path, &rule))
	assert.Equal(t, model.NatActionDNAT, rule.Action)
	assert.Equal(t, "22", rule.TranslatedPorts)
	assert.Equal(t, servicePath, rule.Service)
	assert.Equal(t, model.MatchExternalAddress, rule.FirewallMatch)
	assert.True(t, server.Has(servicePath))

	require.NoError(t, client.DeletePortForwardRule(ctx, pf))
	assert.False(t, server.Has(path))
	assert.False(t, server.Has(servicePath))
}

func TestPortForwardKeepsDefaultService(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	pf := PortForward{
		Network: isolated, RuleID: 1, PublicIP: "203.0.113.6", PublicPort: "80",
		VMIP: "10.2.0.7", PrivatePort: "8080", Protocol: "TCP",
	}

	require.NoError(t, client.CreatePortForwardRule(ctx, pf))
	require.NoError(t, client.DeletePortForwardRule(ctx, pf))

	assert.True(t, server.Has(model.ServicePath("HTTP")))
	assert.Equal(t, 0, server.Mutations(http.MethodDelete, model.ServicePath("HTTP")))
}

func TestPortForwardServiceStillReferenced(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	gateway := naming.GatewayNameFor(isolated)
	pf := PortForward{
		Network: isolated, RuleID: 3, PublicIP: "203.0.113.6", PublicPort: "2222",
		VMIP: "10.2.0.7", PrivatePort: "22", Protocol: "tcp",
	}
	require.NoError(t, client.CreatePortForwardRule(ctx, pf))

	var rule model.PolicyNatRule
	require.True(t, server.Get(model.NatRulePath(gateway, pf.RuleName()), &rule))
	server.Put(model.NatRulePath(gateway, "shared"), map[string]any{
		"action":  "DNAT",
		"service": rule.Service,
		"enabled": true,
	})

	require.NoError(t, client.DeletePortForwardRule(ctx, pf))
	assert.True(t, server.Has(rule.Service))
}

func TestSourceNatRule(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	gateway := naming.GatewayNameFor(isolated)
	path := model.NatRulePath(gateway, naming.SourceNatRuleName(gateway))

	require.NoError(t, client.CreateSourceNatRule(ctx, isolated, "10.2.0.0/24", "203.0.113.1"))

	var rule model.PolicyNatRule
	require.True(t, server.Get(path, &rule))
	assert.Equal(t, model.NatActionSNAT, rule.Action)
	assert.Equal(t, "10.2.0.0/24", rule.SourceNetwork)
	assert.Equal(t, "203.0.113.1", rule.TranslatedNetwork)
	assert.Equal(t, model.MatchInternalAddress, rule.FirewallMatch)

	require.NoError(t, client.DeleteSourceNatRule(ctx, isolated))
	assert.False(t, server.Has(path))
}
