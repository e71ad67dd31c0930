package nsx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/nsxtest"
	"github.com/cuemby/nsx-orchestrator/pkg/reconciler"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSegmentIsIdempotent(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	name := naming.SegmentNameFor(vpcNetwork)

	require.NoError(t, client.CreateSegment(ctx, vpcNetwork, "10.1.1.1/24"))

	var segment model.Segment
	require.True(t, server.Get(model.SegmentPath(name), &segment))
	assert.Equal(t, nsxtest.OverlayTransportZone, segment.TransportZonePath)
	assert.Equal(t, model.Tier1Path(naming.GatewayNameFor(vpcNetwork)), segment.ConnectivityPath)
	assert.Equal(t, model.AdminStateUp, segment.AdminState)
	require.Len(t, segment.Subnets, 1)
	assert.Equal(t, "10.1.1.1/24", segment.Subnets[0].GatewayAddress)

	var group model.Group
	require.True(t, server.Get(model.GroupPath(name), &group))
	require.Len(t, group.Expression, 1)
	assert.Equal(t, model.ResourcePathExpression, group.Expression[0].ResourceType)
	assert.Equal(t, []string{model.SegmentPath(name)}, group.Expression[0].Paths)

	before := server.TotalMutations()
	require.NoError(t, client.CreateSegment(ctx, vpcNetwork, "10.1.1.1/24"))
	assert.Equal(t, before, server.TotalMutations())
}

func TestCreateSegmentConfiguredTransportZone(t *testing.T) {
	client, server := newTestClientWith(t, Config{TransportZone: "overlay-tz"})
	name := naming.SegmentNameFor(isolated)

	require.NoError(t, client.CreateSegment(context.Background(), isolated, "10.2.0.1/24"))

	var segment model.Segment
	require.True(t, server.Get(model.SegmentPath(name), &segment))
	assert.Equal(t, nsxtest.OverlayTransportZone, segment.TransportZonePath)
}

func TestCreateSegmentUnknownTransportZone(t *testing.T) {
	client, server := newTestClientWith(t, Config{TransportZone: "edge-vlan-tz"})

	err := client.CreateSegment(context.Background(), isolated, "10.2.0.1/24")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "edge-vlan-tz")
	assert.Equal(t, 0, server.TotalMutations())
}

func TestDeleteSegmentWaitsForPorts(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	name := naming.SegmentNameFor(vpcNetwork)
	require.NoError(t, client.CreateSegment(ctx, vpcNetwork, "10.1.1.1/24"))

	server.SetPortCounts(name, 2, 2, 0)

	require.NoError(t, client.DeleteSegment(ctx, vpcNetwork))
	assert.False(t, server.Has(model.SegmentPath(name)))
	assert.False(t, server.Has(model.GroupPath(name)))
	assert.Equal(t, 3, server.PortCountCalls(name))
	assert.Equal(t, 1, server.Mutations(http.MethodDelete, model.SegmentPath(name)))
}

func TestDeleteSegmentExhausted(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	client, server := newTestClientWith(t, Config{Events: broker})
	ctx := context.Background()
	name := naming.SegmentNameFor(vpcNetwork)
	require.NoError(t, client.CreateSegment(ctx, vpcNetwork, "10.1.1.1/24"))
	server.SetPortCounts(name, 1)

	err := client.DeleteSegment(ctx, vpcNetwork)
	require.Error(t, err)
	assert.True(t, errors.Is(err, reconciler.ErrExhausted))

	var exhausted *reconciler.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, int64(1), exhausted.Remaining)
	assert.Equal(t, 3, exhausted.Polls)

	assert.True(t, server.Has(model.SegmentPath(name)))
	assert.Equal(t, 0, server.Mutations(http.MethodDelete, model.SegmentPath(name)))
	assert.Equal(t, 4, server.PortCountCalls(name))

	deadline := time.After(time.Second)
	for {
		select {
		case event := <-sub:
			if event.Type == events.EventTeardownExhausted {
				assert.Equal(t, name, event.Resource)
				return
			}
		case <-deadline:
			t.Fatal("no teardown exhausted event published")
		}
	}
}

func TestDeleteSegmentMissing(t *testing.T) {
	client, server := newTestClient(t)

	require.NoError(t, client.DeleteSegment(context.Background(), isolated))
	assert.Equal(t, 0, server.TotalMutations())
}

func TestDeleteSegmentRemovesAttachedResources(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	gateway := naming.GatewayNameFor(isolated)
	segment := naming.SegmentNameFor(isolated)

	require.NoError(t, client.CreateGateway(ctx, isolated, true))
	require.NoError(t, client.CreateSegment(ctx, isolated, "10.2.0.1/24"))
	require.NoError(t, client.CreateDHCPRelayConfig(ctx, isolated, []string{"10.0.0.53"}))
	require.NoError(t, client.CreateSegmentDistributedFirewall(ctx, isolated, []types.NetworkRule{
		{
			RuleID:      1,
			TrafficType: types.TrafficIngress,
			Service:     types.ServiceNetworkACL,
			Protocol:    "tcp",
			SourceCIDRs: []string{"0.0.0.0/0"},
			StartPort:   8443,
			EndPort:     8443,
			Action:      types.ActionAllow,
			Priority:    1,
		},
	}))
	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, LoadBalancerRule{
		Network:     isolated,
		RuleID:      7,
		PublicIP:    "203.0.113.20",
		PublicPort:  "80",
		PrivatePort: "8080",
		Protocol:    "tcp",
		Algorithm:   "roundrobin",
		Members:     []types.LbMember{{VMID: 100, VMIP: "10.2.0.10"}},
	}))

	ruleService := model.ServicePath(naming.ServiceName(naming.DistributedFirewallRuleID(segment, 1), "8443", "tcp", 0, 0))
	require.True(t, server.Has(ruleService))

	require.NoError(t, client.DeleteSegment(ctx, isolated))

	assert.False(t, server.Has(model.SegmentPath(segment)))
	assert.False(t, server.Has(model.SecurityPolicyPath(segment)))
	assert.False(t, server.Has(ruleService))
	assert.False(t, server.Has(model.LBServicePath(naming.LoadBalancerName(gateway))))
	assert.False(t, server.Has(model.LBPoolPath(naming.ServerPoolName(gateway, 7))))
	assert.False(t, server.Has(model.DhcpRelayConfigPath(naming.DHCPRelayConfigIDFor(isolated))))
	assert.True(t, server.Has(model.Tier1Path(gateway)))
}

func TestSegmentPortCount(t *testing.T) {
	client, server := newTestClient(t)
	name := naming.SegmentNameFor(vpcNetwork)
	server.SetPortCounts(name, 4)

	count, err := client.SegmentPortCount(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
