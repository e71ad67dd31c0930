package main

import (
	"testing"

	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const networkDocuments = `
kind: Gateway
network: {zone_id: 1, domain_id: 2, account_id: 3, network_id: 10}
spec:
  source_nat: true
---
kind: Segment
network: {domain_id: 2, account_id: 3, network_id: 10}
spec:
  gateway_cidr: 10.1.1.1/24
---
kind: LoadBalancer
network: {domain_id: 2, account_id: 3, network_id: 10}
spec:
  rule_id: 5
  public_ip: 203.0.113.10
  public_port: "80"
  private_port: "8080"
  protocol: tcp
  members:
    - {vm_id: 100, vm_ip: 10.1.1.10}
---
kind: FirewallPolicy
network: {domain_id: 2, account_id: 3, network_id: 10}
spec:
  rules:
    - rule_id: 1
      traffic_type: Ingress
      service: NetworkACL
      protocol: tcp
      source_cidrs: [0.0.0.0/0]
      start_port: 22
      action: Allow
---
kind: StaticNat
network: {domain_id: 2, account_id: 3, network_id: 10}
spec:
  public_ip_id: 31
  public_ip: 203.0.113.31
  vm_ip: 10.1.1.31
`

func TestParseResources(t *testing.T) {
	resources, err := parseResources([]byte(networkDocuments))
	require.NoError(t, err)
	require.Len(t, resources, 5)

	assert.Equal(t, KindGateway, resources[0].Kind)
	assert.Equal(t, types.NetworkRef{ZoneID: 1, DomainID: 2, AccountID: 3, NetworkID: 10}, resources[0].Network)

	var lb loadBalancerSpec
	require.NoError(t, decodeSpec(&resources[2], &lb))
	assert.Equal(t, int64(5), lb.RuleID)
	assert.Equal(t, "80", lb.PublicPort)
	assert.Equal(t, []types.LbMember{{VMID: 100, VMIP: "10.1.1.10"}}, lb.Members)

	var policy firewallPolicySpec
	require.NoError(t, decodeSpec(&resources[3], &policy))
	require.Len(t, policy.Rules, 1)
	assert.Equal(t, types.TrafficIngress, policy.Rules[0].TrafficType)
	assert.Equal(t, types.ServiceNetworkACL, policy.Rules[0].Service)
	assert.Equal(t, []string{"0.0.0.0/0"}, policy.Rules[0].SourceCIDRs)

	var nat staticNatSpec
	require.NoError(t, decodeSpec(&resources[4], &nat))
	assert.Equal(t, int64(31), nat.PublicIPID)
	assert.Equal(t, "10.1.1.31", nat.VMIP)
}

func TestBuildAction(t *testing.T) {
	resources, err := parseResources([]byte(networkDocuments))
	require.NoError(t, err)

	for i := range resources {
		a, err := buildAction(&resources[i])
		require.NoError(t, err)
		assert.Equal(t, resources[i].Kind, a.kind)
		assert.NotNil(t, a.create)
		assert.NotNil(t, a.delete)
	}
}

func TestBuildActionErrors(t *testing.T) {
	tests := []struct {
		name     string
		document string
	}{
		{name: "unknown kind", document: "kind: Router\n"},
		{name: "segment without cidr", document: "kind: Segment\nspec: {}\n"},
		{name: "relay without servers", document: "kind: DhcpRelay\nspec: {servers: []}\n"},
		{name: "malformed spec", document: "kind: StaticNat\nspec: [1, 2]\n"},
		{name: "static NAT without public IP ID", document: "kind: StaticNat\nspec: {public_ip: 203.0.113.5, vm_ip: 10.1.1.5}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources, err := parseResources([]byte(tt.document))
			require.NoError(t, err)
			require.Len(t, resources, 1)

			_, err = buildAction(&resources[0])
			assert.Error(t, err)
		})
	}
}

func TestParseMember(t *testing.T) {
	member, err := parseMember("100=10.1.1.10")
	require.NoError(t, err)
	assert.Equal(t, types.LbMember{VMID: 100, VMIP: "10.1.1.10"}, member)

	member, err = parseMember("101=10.1.1.11:8081")
	require.NoError(t, err)
	assert.Equal(t, types.LbMember{VMID: 101, VMIP: "10.1.1.11", Port: "8081"}, member)

	for _, bad := range []string{"10.1.1.10", "vm=10.1.1.10", "100=", "100=10.1.1.10:http"} {
		_, err := parseMember(bad)
		assert.Error(t, err, bad)
	}
}
