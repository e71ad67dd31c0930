package nsx

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/metrics"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/reconciler"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

const (
	kindSegment = "segment"
	kindGroup   = "group"
)

// CreateSegment creates the segment of a network on its gateway, then the
// group firewall policies of the segment are scoped to. gatewayCIDR is the
// gateway address in prefix notation, e.g. 10.1.1.1/24.
func (c *Client) CreateSegment(ctx context.Context, ref types.NetworkRef, gatewayCIDR string) error {
	name := naming.SegmentNameFor(ref)
	logger := log.WithSegment(name)
	path := model.SegmentPath(name)

	var existing model.Segment
	found, err := c.lookup(ctx, path, &existing)
	if err != nil {
		return fmt.Errorf("failed to look up segment %s: %w", name, err)
	}

	if found {
		logger.Debug().Msg("Segment already exists")
	} else {
		transportZone, err := c.overlayTransportZone(ctx)
		if err != nil {
			return fmt.Errorf("failed to create segment %s: %w", name, err)
		}

		segment := model.Segment{
			Resource: model.Resource{
				ID:           name,
				DisplayName:  name,
				ResourceType: model.ResourceSegment,
			},
			ConnectivityPath:  model.Tier1Path(naming.GatewayNameFor(ref)),
			TransportZonePath: transportZone,
			AdminState:        model.AdminStateUp,
			Subnets:           []model.SegmentSubnet{{GatewayAddress: gatewayCIDR}},
		}
		if err := c.api.Patch(ctx, path, segment); err != nil {
			return fmt.Errorf("failed to create segment %s: %w", name, err)
		}
		c.created(kindSegment, events.EventSegmentCreated, name)
		logger.Info().
			Str("transport_zone", transportZone).
			Str("gateway_cidr", gatewayCIDR).
			Msg("Segment created")
	}

	if err := c.ensureGroup(ctx, name); err != nil {
		return fmt.Errorf("failed to create group of segment %s: %w", name, err)
	}
	return nil
}

// ensureGroup creates the group whose only member is the segment
func (c *Client) ensureGroup(ctx context.Context, segment string) error {
	path := model.GroupPath(segment)

	var existing model.Group
	found, err := c.lookup(ctx, path, &existing)
	if err != nil || found {
		return err
	}

	group := model.Group{
		Resource: model.Resource{
			ID:           segment,
			DisplayName:  segment,
			ResourceType: model.ResourceGroup,
		},
		Expression: []model.Expression{{
			ResourceType: model.ResourcePathExpression,
			Paths:        []string{model.SegmentPath(segment)},
		}},
	}
	if err := c.api.Patch(ctx, path, group); err != nil {
		return err
	}
	metrics.ResourcesCreated.WithLabelValues(kindGroup).Inc()
	return nil
}

// enforcementPoint returns the first enforcement point of the first site.
// Deployments with several sites or enforcement points are not supported.
func (c *Client) enforcementPoint(ctx context.Context) (string, error) {
	sites, err := listAll[model.Site](ctx, c.api, model.SitesPath, nil)
	if err != nil {
		return "", err
	}
	if len(sites) == 0 {
		return "", errors.New("controller has no sites")
	}

	points, err := listAll[model.EnforcementPoint](ctx, c.api, model.EnforcementPointsPath(sites[0].ID), nil)
	if err != nil {
		return "", err
	}
	if len(points) == 0 {
		return "", fmt.Errorf("site %s has no enforcement points", sites[0].ID)
	}
	return points[0].Path, nil
}

// overlayTransportZone returns the configured overlay transport zone, or the
// first overlay zone of the enforcement point when none is configured
func (c *Client) overlayTransportZone(ctx context.Context) (string, error) {
	enforcementPoint, err := c.enforcementPoint(ctx)
	if err != nil {
		return "", err
	}

	zones, err := listAll[model.TransportZone](ctx, c.api, model.TransportZonesPath(enforcementPoint), nil)
	if err != nil {
		return "", err
	}
	for _, zone := range zones {
		if !zone.IsOverlay() {
			continue
		}
		if c.cfg.TransportZone == "" || c.cfg.TransportZone == zone.ID || c.cfg.TransportZone == zone.DisplayName {
			return zone.Path, nil
		}
	}

	if c.cfg.TransportZone != "" {
		return "", fmt.Errorf("overlay transport zone %s not found on %s", c.cfg.TransportZone, enforcementPoint)
	}
	return "", fmt.Errorf("no overlay transport zone found on %s", enforcementPoint)
}

// SegmentPortCount returns the number of ports attached to a segment
func (c *Client) SegmentPortCount(ctx context.Context, segment string) (int64, error) {
	enforcementPoint, err := c.enforcementPoint(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count ports of segment %s: %w", segment, err)
	}
	return c.countPorts(ctx, segment, enforcementPoint)
}

func (c *Client) countPorts(ctx context.Context, segment, enforcementPoint string) (int64, error) {
	query := url.Values{"enforcement_point_path": {enforcementPoint}}
	var ports model.ListResult[model.Resource]
	if err := c.api.Get(ctx, model.GroupSegmentPortsPath(segment), query, &ports); err != nil {
		return 0, fmt.Errorf("failed to count ports of segment %s: %w", segment, err)
	}
	return ports.ResultCount, nil
}

// DeleteSegment tears a network's segment down: its firewall policy, the
// gateway's load balancer for networks outside a VPC, then, once no port is
// attached anymore, its group and the segment itself. The network's DHCP
// relay is removed last. A missing segment is not an error.
//
// Ports detach asynchronously; the segment is re-polled on the zone's retry
// interval and the delete fails with reconciler.ErrExhausted when ports are
// still attached after the retry budget.
func (c *Client) DeleteSegment(ctx context.Context, ref types.NetworkRef) error {
	name := naming.SegmentNameFor(ref)
	logger := log.WithSegment(name)
	path := model.SegmentPath(name)

	var existing model.Segment
	found, err := c.lookup(ctx, path, &existing)
	if err != nil {
		return fmt.Errorf("failed to look up segment %s: %w", name, err)
	}
	if !found {
		logger.Info().Msg("Segment not found, nothing to delete")
		return nil
	}

	if err := c.DeleteSegmentDistributedFirewall(ctx, ref); err != nil {
		return err
	}

	if !ref.IsVpc() {
		if err := c.DeleteLoadBalancer(ctx, naming.GatewayNameFor(ref)); err != nil {
			return err
		}
	}

	enforcementPoint, err := c.enforcementPoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete segment %s: %w", name, err)
	}
	count := func(ctx context.Context) (int64, error) {
		return c.countPorts(ctx, name, enforcementPoint)
	}
	ports, err := count(ctx)
	if err != nil {
		return err
	}

	polls, err := c.reconciler.WaitForZero(ctx, name, ports, count)
	if err != nil {
		if errors.Is(err, reconciler.ErrExhausted) {
			c.cfg.Events.Publish(events.NewEvent(events.EventTeardownExhausted, name, err.Error()))
		}
		return fmt.Errorf("failed to delete segment %s: %w", name, err)
	}

	if err := c.remove(ctx, model.GroupPath(name), kindGroup, "", name); err != nil {
		return fmt.Errorf("failed to delete group of segment %s: %w", name, err)
	}

	if err := c.remove(ctx, path, kindSegment, events.EventSegmentDeleted, name); err != nil {
		return fmt.Errorf("failed to delete segment %s: %w", name, err)
	}
	logger.Info().Int("polls", polls).Msg("Segment deleted")

	return c.DeleteDHCPRelayConfig(ctx, ref)
}
