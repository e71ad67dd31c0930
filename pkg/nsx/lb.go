package nsx

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/metrics"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

const (
	kindLBService       = "lb-service"
	kindLBPool          = "lb-pool"
	kindLBVirtualServer = "lb-virtual-server"
	kindLBMonitor       = "lb-monitor-profile"
)

// Tag scopes linking load balancer objects to their owner
const (
	TagScopeLBPool    = "nsx-lb-pool"
	TagScopeLBService = "nsx-lb-service"
)

// appProfileTypes selects the application profile of a virtual server by
// protocol
var appProfileTypes = map[string]string{
	"TCP":   model.ResourceLBFastTcpProfile,
	"UDP":   model.ResourceLBFastUdpProfile,
	"HTTP":  model.ResourceLBHttpProfile,
	"HTTPS": model.ResourceLBHttpProfile,
}

// LoadBalancerRule exposes a set of VMs on a public IP and port
type LoadBalancerRule struct {
	Network     types.NetworkRef
	RuleID      int64
	PublicIP    string
	PublicPort  string
	PrivatePort string
	Protocol    string
	Algorithm   string
	Members     []types.LbMember
}

// Gateway returns the name of the gateway owning the load balancer
func (r LoadBalancerRule) Gateway() string {
	return naming.GatewayNameFor(r.Network)
}

// PoolName returns the ID of the rule's server pool
func (r LoadBalancerRule) PoolName() string {
	return naming.ServerPoolName(r.Gateway(), r.RuleID)
}

// VirtualServerName returns the ID of the rule's virtual server
func (r LoadBalancerRule) VirtualServerName() string {
	return naming.VirtualServerName(r.Gateway(), r.RuleID)
}

// CreateAndAddLbVirtualServer provisions a load balancer rule in dependency
// order: the pool's health monitor, the pool, the gateway's load balancer
// service when it does not exist yet, and finally the virtual server
// referencing all of them.
func (c *Client) CreateAndAddLbVirtualServer(ctx context.Context, rule LoadBalancerRule) error {
	gateway := rule.Gateway()
	lbName := naming.LoadBalancerName(gateway)
	poolName := rule.PoolName()
	vsName := rule.VirtualServerName()
	protocol := strings.ToUpper(rule.Protocol)
	logger := log.WithGateway(gateway)

	monitorPath, err := c.createMonitorProfile(ctx, poolName, rule.PrivatePort, protocol)
	if err != nil {
		return err
	}

	members := make([]model.LBPoolMember, 0, len(rule.Members))
	for _, m := range rule.Members {
		port := m.Port
		if port == "" {
			port = rule.PrivatePort
		}
		members = append(members, model.LBPoolMember{
			DisplayName: naming.ServerPoolMemberName(gateway, m.VMID),
			IPAddress:   m.VMIP,
			Port:        port,
		})
	}

	pool := model.LBPool{
		Resource: model.Resource{
			ID:           poolName,
			DisplayName:  poolName,
			ResourceType: model.ResourceLBPool,
			Tags:         []model.Tag{{Scope: TagScopeLBService, Tag: lbName}},
		},
		Algorithm:          model.ParseLBAlgorithm(rule.Algorithm),
		Members:            members,
		ActiveMonitorPaths: []string{monitorPath},
		PassiveMonitorPath: model.DefaultPassiveMonitorPath,
	}
	if err := c.api.Patch(ctx, model.LBPoolPath(poolName), pool); err != nil {
		return fmt.Errorf("failed to create pool %s: %w", poolName, err)
	}
	metrics.ResourcesCreated.WithLabelValues(kindLBPool).Inc()

	if err := c.ensureLBService(ctx, gateway); err != nil {
		return err
	}

	poolPath, err := c.resolvePath(ctx, model.LBPoolPath(poolName))
	if err != nil {
		return fmt.Errorf("failed to get pool %s: %w", poolName, err)
	}
	servicePath, err := c.resolvePath(ctx, model.LBServicePath(lbName))
	if err != nil {
		return fmt.Errorf("failed to get load balancer %s: %w", lbName, err)
	}

	profilePath, err := c.appProfile(ctx, protocol)
	if err != nil {
		return err
	}

	vs := model.LBVirtualServer{
		Resource: model.Resource{
			ID:           vsName,
			DisplayName:  vsName,
			ResourceType: model.ResourceLBVirtualServer,
		},
		IPAddress:              rule.PublicIP,
		Ports:                  []string{rule.PublicPort},
		PoolPath:               poolPath,
		LBServicePath:          servicePath,
		ApplicationProfilePath: profilePath,
	}
	if err := c.api.Patch(ctx, model.LBVirtualServerPath(vsName), vs); err != nil {
		return fmt.Errorf("failed to create virtual server %s: %w", vsName, err)
	}
	c.created(kindLBVirtualServer, events.EventLoadBalancerCreated, vsName)

	logger.Info().
		Str("virtual_server", vsName).
		Str("pool", poolName).
		Int("members", len(members)).
		Msg("Load balancer rule provisioned")
	return nil
}

// createMonitorProfile creates the active monitor of a pool: a TCP check on
// the private port for TCP based protocols, an ICMP check otherwise
func (c *Client) createMonitorProfile(ctx context.Context, poolName, port, protocol string) (string, error) {
	name := naming.ActiveMonitorProfileName(poolName, port, protocol)
	profile := model.LBMonitorProfile{
		Resource: model.Resource{
			ID:           name,
			DisplayName:  name,
			ResourceType: model.ResourceLBIcmpMonitorProfile,
			Tags:         []model.Tag{{Scope: TagScopeLBPool, Tag: poolName}},
		},
	}

	if protocol != "UDP" && protocol != protocolICMP && port != "" {
		monitorPort, err := strconv.Atoi(port)
		if err != nil {
			return "", fmt.Errorf("invalid monitor port %q for pool %s: %w", port, poolName, err)
		}
		profile.ResourceType = model.ResourceLBTcpMonitorProfile
		profile.MonitorPort = monitorPort
	}

	path := model.LBMonitorProfilePath(name)
	if err := c.api.Patch(ctx, path, profile); err != nil {
		return "", fmt.Errorf("failed to create monitor profile %s: %w", name, err)
	}
	metrics.ResourcesCreated.WithLabelValues(kindLBMonitor).Inc()

	resolved, err := c.resolvePath(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to get monitor profile %s: %w", name, err)
	}
	return resolved, nil
}

// ensureLBService creates the load balancer of a gateway when it is missing
func (c *Client) ensureLBService(ctx context.Context, gateway string) error {
	name := naming.LoadBalancerName(gateway)
	path := model.LBServicePath(name)

	var existing model.LBService
	found, err := c.lookup(ctx, path, &existing)
	if err != nil {
		return fmt.Errorf("failed to look up load balancer %s: %w", name, err)
	}
	if found {
		return nil
	}

	service := model.LBService{
		Resource: model.Resource{
			ID:           name,
			DisplayName:  name,
			ResourceType: model.ResourceLBService,
		},
		ConnectivityPath: model.Tier1Path(gateway),
		Enabled:          true,
		Size:             model.LBSizeSmall,
	}
	if err := c.api.Patch(ctx, path, service); err != nil {
		return fmt.Errorf("failed to create load balancer %s: %w", name, err)
	}
	c.created(kindLBService, events.EventLoadBalancerCreated, name)
	return nil
}

// appProfile returns the first application profile of the type serving
// protocol
func (c *Client) appProfile(ctx context.Context, protocol string) (string, error) {
	profileType, ok := appProfileTypes[protocol]
	if !ok {
		return "", fmt.Errorf("no application profile type for protocol %s", protocol)
	}

	profiles, err := listAll[model.LBAppProfile](ctx, c.api, model.LBAppProfilesPath, nil)
	if err != nil {
		return "", err
	}
	for _, p := range profiles {
		if p.ResourceType == profileType {
			return p.Path, nil
		}
	}
	return "", fmt.Errorf("no %s application profile found", profileType)
}

// DeleteLbResources removes a load balancer rule: its virtual server, pool
// and the monitors owned by the pool. The gateway's load balancer service is
// removed too once no virtual server or pool of it is left.
func (c *Client) DeleteLbResources(ctx context.Context, rule LoadBalancerRule) error {
	gateway := rule.Gateway()
	poolName := rule.PoolName()
	vsName := rule.VirtualServerName()

	if err := c.remove(ctx, model.LBVirtualServerPath(vsName), kindLBVirtualServer, events.EventLoadBalancerDeleted, vsName); err != nil {
		return fmt.Errorf("failed to delete virtual server %s: %w", vsName, err)
	}

	if err := c.deletePool(ctx, poolName); err != nil {
		return err
	}

	lbName := naming.LoadBalancerName(gateway)
	var service model.LBService
	found, err := c.lookup(ctx, model.LBServicePath(lbName), &service)
	if err != nil {
		return fmt.Errorf("failed to look up load balancer %s: %w", lbName, err)
	}
	if !found {
		return nil
	}

	servers, pools, err := c.lbChildren(ctx, lbName, pathOr(service.Path, model.LBServicePath(lbName)))
	if err != nil {
		return err
	}
	if len(servers) > 0 || len(pools) > 0 {
		logger := log.WithGateway(gateway)
		logger.Debug().
			Int("virtual_servers", len(servers)).
			Int("pools", len(pools)).
			Msg("Load balancer still in use")
		return nil
	}

	return c.deleteLBService(ctx, lbName)
}

// DeleteLoadBalancer removes the load balancer of a gateway with every
// virtual server, pool and monitor attached to it. A missing load balancer
// is not an error.
func (c *Client) DeleteLoadBalancer(ctx context.Context, gateway string) error {
	lbName := naming.LoadBalancerName(gateway)

	var service model.LBService
	found, err := c.lookup(ctx, model.LBServicePath(lbName), &service)
	if err != nil {
		return fmt.Errorf("failed to look up load balancer %s: %w", lbName, err)
	}
	if !found {
		return nil
	}

	servers, pools, err := c.lbChildren(ctx, lbName, pathOr(service.Path, model.LBServicePath(lbName)))
	if err != nil {
		return err
	}
	for _, vs := range servers {
		if err := c.remove(ctx, model.LBVirtualServerPath(vs.ID), kindLBVirtualServer, events.EventLoadBalancerDeleted, vs.ID); err != nil {
			return fmt.Errorf("failed to delete virtual server %s: %w", vs.ID, err)
		}
	}
	for _, pool := range pools {
		if err := c.deletePool(ctx, pool.ID); err != nil {
			return err
		}
	}

	return c.deleteLBService(ctx, lbName)
}

// deletePool removes a pool and the monitors tagged with it
func (c *Client) deletePool(ctx context.Context, poolName string) error {
	if err := c.remove(ctx, model.LBPoolPath(poolName), kindLBPool, "", poolName); err != nil {
		return fmt.Errorf("failed to delete pool %s: %w", poolName, err)
	}

	monitors, err := listAll[model.LBMonitorProfile](ctx, c.api, model.LBMonitorProfilesPath, nil)
	if err != nil {
		return err
	}
	for _, m := range monitors {
		if !model.HasTag(m.Tags, TagScopeLBPool, poolName) {
			continue
		}
		if err := c.remove(ctx, model.LBMonitorProfilePath(m.ID), kindLBMonitor, "", m.ID); err != nil {
			return fmt.Errorf("failed to delete monitor profile %s: %w", m.ID, err)
		}
	}
	return nil
}

// lbChildren lists the virtual servers and pools still attached to a load
// balancer service
func (c *Client) lbChildren(ctx context.Context, lbName, servicePath string) ([]model.LBVirtualServer, []model.LBPool, error) {
	allServers, err := listAll[model.LBVirtualServer](ctx, c.api, model.LBVirtualServersPath, nil)
	if err != nil {
		return nil, nil, err
	}
	var servers []model.LBVirtualServer
	for _, vs := range allServers {
		if vs.LBServicePath == servicePath {
			servers = append(servers, vs)
		}
	}

	allPools, err := listAll[model.LBPool](ctx, c.api, model.LBPoolsPath, nil)
	if err != nil {
		return nil, nil, err
	}
	var pools []model.LBPool
	for _, p := range allPools {
		if model.HasTag(p.Tags, TagScopeLBService, lbName) {
			pools = append(pools, p)
		}
	}
	return servers, pools, nil
}

func (c *Client) deleteLBService(ctx context.Context, lbName string) error {
	if err := c.remove(ctx, model.LBServicePath(lbName), kindLBService, events.EventLoadBalancerDeleted, lbName); err != nil {
		return fmt.Errorf("failed to delete load balancer %s: %w", lbName, err)
	}
	return nil
}
