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

const kindDHCPRelay = "dhcp-relay"

// CreateDHCPRelayConfig creates or updates the DHCP relay of a network and
// attaches it to the network's segment
func (c *Client) CreateDHCPRelayConfig(ctx context.Context, ref types.NetworkRef, servers []string) error {
	id := naming.DHCPRelayConfigIDFor(ref)
	segmentName := naming.SegmentNameFor(ref)
	path := model.DhcpRelayConfigPath(id)

	relay := model.DhcpRelayConfig{
		Resource: model.Resource{
			ID:           id,
			DisplayName:  id,
			ResourceType: model.ResourceDhcpRelayConfig,
		},
		ServerAddresses: servers,
	}
	if err := c.api.Patch(ctx, path, relay); err != nil {
		return fmt.Errorf("failed to create DHCP relay %s: %w", id, err)
	}
	c.created(kindDHCPRelay, events.EventDHCPRelayCreated, id)

	relayPath, err := c.resolvePath(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to get DHCP relay %s: %w", id, err)
	}

	var segment model.Segment
	if err := c.api.Get(ctx, model.SegmentPath(segmentName), nil, &segment); err != nil {
		return fmt.Errorf("failed to get segment %s: %w", segmentName, err)
	}
	if segment.DhcpConfigPath == relayPath {
		return nil
	}
	segment.DhcpConfigPath = relayPath
	if err := c.api.Patch(ctx, model.SegmentPath(segmentName), segment); err != nil {
		return fmt.Errorf("failed to attach DHCP relay %s to segment %s: %w", id, segmentName, err)
	}

	logger := log.WithSegment(segmentName)
	logger.Info().Strs("servers", servers).Msg("DHCP relay attached")
	return nil
}

// DeleteDHCPRelayConfig removes the DHCP relay of a network. A missing relay
// is not an error.
func (c *Client) DeleteDHCPRelayConfig(ctx context.Context, ref types.NetworkRef) error {
	id := naming.DHCPRelayConfigIDFor(ref)
	path := model.DhcpRelayConfigPath(id)

	var relay model.DhcpRelayConfig
	found, err := c.lookup(ctx, path, &relay)
	if err != nil {
		return fmt.Errorf("failed to look up DHCP relay %s: %w", id, err)
	}
	if !found {
		return nil
	}

	if err := c.remove(ctx, path, kindDHCPRelay, events.EventDHCPRelayDeleted, id); err != nil {
		return fmt.Errorf("failed to delete DHCP relay %s: %w", id, err)
	}
	return nil
}
