package nsx

import (
	"context"
	"net/http"
	"testing"

	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/nsxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDHCPRelayConfig(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	segmentPath := model.SegmentPath(naming.SegmentNameFor(vpcNetwork))
	relayPath := model.DhcpRelayConfigPath(naming.DHCPRelayConfigIDFor(vpcNetwork))

	require.NoError(t, client.CreateSegment(ctx, vpcNetwork, "10.1.1.1/24"))
	require.NoError(t, client.CreateDHCPRelayConfig(ctx, vpcNetwork, []string{"10.0.0.53", "10.0.0.54"}))

	var relay model.DhcpRelayConfig
	require.True(t, server.Get(relayPath, &relay))
	assert.Equal(t, []string{"10.0.0.53", "10.0.0.54"}, relay.ServerAddresses)

	var segment model.Segment
	require.True(t, server.Get(segmentPath, &segment))
	assert.Equal(t, relayPath, segment.DhcpConfigPath)
	assert.Equal(t, nsxtest.OverlayTransportZone, segment.TransportZonePath)

	// re-applying refreshes the relay without touching the segment again
	require.NoError(t, client.CreateDHCPRelayConfig(ctx, vpcNetwork, []string{"10.0.0.55"}))
	assert.Equal(t, 2, server.Mutations(http.MethodPatch, segmentPath))
	require.True(t, server.Get(relayPath, &relay))
	assert.Equal(t, []string{"10.0.0.55"}, relay.ServerAddresses)

	require.NoError(t, client.DeleteDHCPRelayConfig(ctx, vpcNetwork))
	require.NoError(t, client.DeleteDHCPRelayConfig(ctx, vpcNetwork))
	assert.False(t, server.Has(relayPath))
	assert.Equal(t, 1, server.Mutations(http.MethodDelete, relayPath))
}

func TestDHCPRelayConfigMissingSegment(t *testing.T) {
	client, server := newTestClient(t)

	err := client.CreateDHCPRelayConfig(context.Background(), isolated, []string{"10.0.0.53"})
	require.Error(t, err)
	assert.True(t, server.Has(model.DhcpRelayConfigPath(naming.DHCPRelayConfigIDFor(isolated))))
}
