package nsx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/metrics"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lbRule(id int64, protocol string) LoadBalancerRule {
	return LoadBalancerRule{
		Network:     vpcNetwork,
		RuleID:      id,
		PublicIP:    "203.0.113.30",
		PublicPort:  "80",
		PrivatePort: "8080",
		Protocol:    protocol,
		Algorithm:   "leastconn",
		Members: []types.LbMember{
			{VMID: 100, VMIP: "10.1.1.10"},
			{VMID: 101, VMIP: "10.1.1.11", Port: "9090"},
		},
	}
}

func TestCreateAndAddLbVirtualServer(t *testing.T) {
	client, server := newTestClient(t)
	rule := lbRule(1, "tcp")
	gateway := rule.Gateway()
	lbName := naming.LoadBalancerName(gateway)

	require.NoError(t, client.CreateAndAddLbVirtualServer(context.Background(), rule))

	monitorPath := model.LBMonitorProfilePath(naming.ActiveMonitorProfileName(rule.PoolName(), "8080", "TCP"))
	var monitor model.LBMonitorProfile
	require.True(t, server.Get(monitorPath, &monitor))
	assert.Equal(t, model.ResourceLBTcpMonitorProfile, monitor.ResourceType)
	assert.Equal(t, 8080, monitor.MonitorPort)
	assert.True(t, model.HasTag(monitor.Tags, TagScopeLBPool, rule.PoolName()))

	var pool model.LBPool
	require.True(t, server.Get(model.LBPoolPath(rule.PoolName()), &pool))
	assert.Equal(t, model.AlgorithmLeastConnection, pool.Algorithm)
	assert.Equal(t, []string{monitorPath}, pool.ActiveMonitorPaths)
	assert.Equal(t, model.DefaultPassiveMonitorPath, pool.PassiveMonitorPath)
	assert.True(t, model.HasTag(pool.Tags, TagScopeLBService, lbName))
	assert.Equal(t, []model.LBPoolMember{
		{DisplayName: naming.ServerPoolMemberName(gateway, 100), IPAddress: "10.1.1.10", Port: "8080"},
		{DisplayName: naming.ServerPoolMemberName(gateway, 101), IPAddress: "10.1.1.11", Port: "9090"},
	}, pool.Members)

	var service model.LBService
	require.True(t, server.Get(model.LBServicePath(lbName), &service))
	assert.Equal(t, model.Tier1Path(gateway), service.ConnectivityPath)
	assert.Equal(t, model.LBSizeSmall, service.Size)
	assert.True(t, service.Enabled)

	var vs model.LBVirtualServer
	require.True(t, server.Get(model.LBVirtualServerPath(rule.VirtualServerName()), &vs))
	assert.Equal(t, "203.0.113.30", vs.IPAddress)
	assert.Equal(t, []string{"80"}, vs.Ports)
	assert.Equal(t, model.LBPoolPath(rule.PoolName()), vs.PoolPath)
	assert.Equal(t, model.LBServicePath(lbName), vs.LBServicePath)
	assert.Equal(t, model.LBAppProfilesPath+"/default-tcp-lb-app-profile", vs.ApplicationProfilePath)
}

func TestLbServiceSharedAcrossRules(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	first, second := lbRule(1, "tcp"), lbRule(2, "http")
	servicePath := model.LBServicePath(naming.LoadBalancerName(first.Gateway()))

	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, first))
	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, second))
	assert.Equal(t, 1, server.Mutations(http.MethodPatch, servicePath))

	var vs model.LBVirtualServer
	require.True(t, server.Get(model.LBVirtualServerPath(second.VirtualServerName()), &vs))
	assert.Equal(t, model.LBAppProfilesPath+"/default-http-lb-app-profile", vs.ApplicationProfilePath)
}

func TestDeleteLbResourcesKeepsServiceInUse(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	first, second := lbRule(1, "tcp"), lbRule(2, "tcp")
	servicePath := model.LBServicePath(naming.LoadBalancerName(first.Gateway()))
	firstMonitor := model.LBMonitorProfilePath(naming.ActiveMonitorProfileName(first.PoolName(), "8080", "TCP"))
	secondMonitor := model.LBMonitorProfilePath(naming.ActiveMonitorProfileName(second.PoolName(), "8080", "TCP"))

	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, first))
	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, second))

	require.NoError(t, client.DeleteLbResources(ctx, first))
	assert.False(t, server.Has(model.LBVirtualServerPath(first.VirtualServerName())))
	assert.False(t, server.Has(model.LBPoolPath(first.PoolName())))
	assert.False(t, server.Has(firstMonitor))
	assert.True(t, server.Has(secondMonitor))
	assert.True(t, server.Has(servicePath))
	assert.True(t, server.Has(model.LBVirtualServerPath(second.VirtualServerName())))

	require.NoError(t, client.DeleteLbResources(ctx, second))
	assert.False(t, server.Has(servicePath))
	assert.False(t, server.Has(secondMonitor))
}

func TestCreateLbUDPUsesICMPMonitor(t *testing.T) {
	client, server := newTestClient(t)
	rule := lbRule(3, "udp")

	require.NoError(t, client.CreateAndAddLbVirtualServer(context.Background(), rule))

	var monitor model.LBMonitorProfile
	require.True(t, server.Get(model.LBMonitorProfilePath(naming.ActiveMonitorProfileName(rule.PoolName(), "8080", "UDP")), &monitor))
	assert.Equal(t, model.ResourceLBIcmpMonitorProfile, monitor.ResourceType)
	assert.Zero(t, monitor.MonitorPort)

	var vs model.LBVirtualServer
	require.True(t, server.Get(model.LBVirtualServerPath(rule.VirtualServerName()), &vs))
	assert.Equal(t, model.LBAppProfilesPath+"/default-udp-lb-app-profile", vs.ApplicationProfilePath)
}

func TestCreateLbUnknownProtocol(t *testing.T) {
	client, server := newTestClient(t)
	rule := lbRule(4, "sctp")

	err := client.CreateAndAddLbVirtualServer(context.Background(), rule)
	require.Error(t, err)
	assert.False(t, server.Has(model.LBVirtualServerPath(rule.VirtualServerName())))
}

func TestDeleteLoadBalancer(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	first, second := lbRule(1, "tcp"), lbRule(2, "udp")
	gateway := first.Gateway()

	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, first))
	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, second))

	require.NoError(t, client.DeleteLoadBalancer(ctx, gateway))

	assert.False(t, server.Has(model.LBServicePath(naming.LoadBalancerName(gateway))))
	for _, rule := range []LoadBalancerRule{first, second} {
		assert.False(t, server.Has(model.LBVirtualServerPath(rule.VirtualServerName())))
		assert.False(t, server.Has(model.LBPoolPath(rule.PoolName())))
	}
	assert.True(t, server.Has(model.DefaultPassiveMonitorPath))

	before := server.TotalMutations()
	require.NoError(t, client.DeleteLoadBalancer(ctx, gateway))
	assert.Equal(t, before, server.TotalMutations())
}

// lbDeletedEvents counts the load balancer deletions published before a
// marker event
func lbDeletedEvents(t *testing.T, broker *events.Broker, sub events.Subscriber) int {
	t.Helper()
	marker := events.NewEvent("test.marker", "", "")
	broker.Publish(marker)

	count := 0
	deadline := time.After(time.Second)
	for {
		select {
		case event := <-sub:
			if event.ID == marker.ID {
				return count
			}
			if event.Type == events.EventLoadBalancerDeleted {
				count++
			}
		case <-deadline:
			t.Fatal("marker event not delivered")
			return count
		}
	}
}

func TestDeleteLbResourcesRecordsOnlyRemovals(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	client, server := newTestClientWith(t, Config{Events: broker})
	ctx := context.Background()
	rule := lbRule(1, "tcp")
	require.NoError(t, client.CreateAndAddLbVirtualServer(ctx, rule))

	deletedServers := metrics.ResourcesDeleted.WithLabelValues(kindLBVirtualServer)
	deletedPools := metrics.ResourcesDeleted.WithLabelValues(kindLBPool)
	deletedMonitors := metrics.ResourcesDeleted.WithLabelValues(kindLBMonitor)
	servers := testutil.ToFloat64(deletedServers)
	pools := testutil.ToFloat64(deletedPools)
	monitors := testutil.ToFloat64(deletedMonitors)

	require.NoError(t, client.DeleteLbResources(ctx, rule))
	assert.False(t, server.Has(model.LBPoolPath(rule.PoolName())))
	assert.Equal(t, 2, lbDeletedEvents(t, broker, sub), "virtual server and load balancer service")
	assert.Equal(t, servers+1, testutil.ToFloat64(deletedServers))
	assert.Equal(t, pools+1, testutil.ToFloat64(deletedPools))
	assert.Equal(t, monitors+1, testutil.ToFloat64(deletedMonitors))

	require.NoError(t, client.DeleteLbResources(ctx, rule))
	assert.Equal(t, 0, lbDeletedEvents(t, broker, sub))
	assert.Equal(t, servers+1, testutil.ToFloat64(deletedServers))
	assert.Equal(t, pools+1, testutil.ToFloat64(deletedPools))
	assert.Equal(t, monitors+1, testutil.ToFloat64(deletedMonitors))
}
