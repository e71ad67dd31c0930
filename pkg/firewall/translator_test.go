package firewall

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	ruleName, port, protocol string
	icmpType, icmpCode       int
}

type fakeResolver struct {
	calls []call
	err   error
}

func (f *fakeResolver) ResolveService(ctx context.Context, ruleName, port, protocol string, icmpType, icmpCode int) (string, error) {
	f.calls = append(f.calls, call{ruleName, port, protocol, icmpType, icmpCode})
	if f.err != nil {
		return "", f.err
	}
	return model.ServicePath(fmt.Sprintf("%s-svc", ruleName)), nil
}

const segmentGroup = "/infra/domains/default/groups/S"

func TestResolveGroupsDirectionAsymmetry(t *testing.T) {
	src := []string{"10.0.0.0/24"}
	dst := []string{"10.0.1.0/24"}

	tests := []struct {
		name         string
		traffic      types.TrafficType
		service      types.NetworkService
		sources      []string
		destinations []string
	}{
		{
			name:         "ingress network acl",
			traffic:      types.TrafficIngress,
			service:      types.ServiceNetworkACL,
			sources:      []string{"10.0.0.0/24"},
			destinations: []string{segmentGroup},
		},
		{
			name:         "ingress firewall",
			traffic:      types.TrafficIngress,
			service:      types.ServiceFirewall,
			sources:      []string{"10.0.0.0/24"},
			destinations: []string{"10.0.1.0/24"},
		},
		{
			name:         "egress network acl",
			traffic:      types.TrafficEgress,
			service:      types.ServiceNetworkACL,
			sources:      []string{segmentGroup},
			destinations: []string{"10.0.0.0/24"},
		},
		{
			name:         "egress firewall",
			traffic:      types.TrafficEgress,
			service:      types.ServiceFirewall,
			sources:      []string{segmentGroup},
			destinations: []string{"10.0.1.0/24"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := types.NetworkRule{
				TrafficType:      tt.traffic,
				Service:          tt.service,
				SourceCIDRs:      src,
				DestinationCIDRs: dst,
			}
			sources, destinations, err := ResolveGroups(segmentGroup, rule)
			require.NoError(t, err)
			assert.Equal(t, tt.sources, sources)
			assert.Equal(t, tt.destinations, destinations)
		})
	}
}

func TestResolveGroupsEmptyCIDRsMatchAny(t *testing.T) {
	sources, destinations, err := ResolveGroups(segmentGroup, types.NetworkRule{
		TrafficType: types.TrafficIngress,
		Service:     types.ServiceFirewall,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{model.AnyGroup}, sources)
	assert.Equal(t, []string{model.AnyGroup}, destinations)
}

func TestResolveGroupsUnsupportedTraffic(t *testing.T) {
	_, _, err := ResolveGroups(segmentGroup, types.NetworkRule{TrafficType: "Sideways"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedTrafficType))
}

func TestResolveGroupsDoesNotAliasInput(t *testing.T) {
	rule := types.NetworkRule{
		TrafficType:      types.TrafficIngress,
		Service:          types.ServiceFirewall,
		SourceCIDRs:      []string{"10.0.0.0/24"},
		DestinationCIDRs: []string{"10.0.1.0/24"},
	}
	sources, _, err := ResolveGroups(segmentGroup, rule)
	require.NoError(t, err)
	sources[0] = "changed"
	assert.Equal(t, "10.0.0.0/24", rule.SourceCIDRs[0])
}

func TestTranslate(t *testing.T) {
	resolver := &fakeResolver{}
	translator := NewTranslator(resolver)

	rules := []types.NetworkRule{
		{
			RuleID:           1,
			TrafficType:      types.TrafficIngress,
			Service:          types.ServiceNetworkACL,
			Protocol:         "tcp",
			SourceCIDRs:      []string{"10.0.0.0/24"},
			DestinationCIDRs: []string{"10.0.1.0/24"},
			StartPort:        80,
			EndPort:          80,
			Action:           types.ActionAllow,
			Priority:         10,
		},
		{
			RuleID:      2,
			TrafficType: types.TrafficEgress,
			Service:     types.ServiceNetworkACL,
			Protocol:    "all",
			Action:      types.ActionDeny,
			Priority:    20,
		},
		{
			RuleID:      3,
			TrafficType: types.TrafficIngress,
			Service:     types.ServiceFirewall,
			Protocol:    "icmp",
			SourceCIDRs: []string{"0.0.0.0/0"},
			ICMPType:    8,
			ICMPCode:    0,
		},
	}

	out, err := translator.Translate(context.Background(), "S", rules)
	require.NoError(t, err)
	require.Len(t, out, 3)

	first := out[0]
	assert.Equal(t, "S-R1", first.ID)
	assert.Equal(t, model.ResourceRule, first.ResourceType)
	assert.Equal(t, model.RuleAllow, first.Action)
	assert.Equal(t, model.DirectionIn, first.Direction)
	assert.Equal(t, []string{"10.0.0.0/24"}, first.SourceGroups)
	assert.Equal(t, []string{segmentGroup}, first.DestinationGroups)
	assert.Equal(t, []string{"/infra/services/S-R1-svc"}, first.Services)
	assert.Equal(t, []string{segmentGroup}, first.Scope)
	assert.Equal(t, 10, first.SequenceNumber)

	second := out[1]
	assert.Equal(t, "S-R2", second.ID)
	assert.Equal(t, model.RuleDrop, second.Action)
	assert.Equal(t, model.DirectionOut, second.Direction)
	assert.Equal(t, []string{model.AnyGroup}, second.Services)
	assert.Equal(t, []string{segmentGroup}, second.SourceGroups)

	third := out[2]
	assert.Equal(t, model.RuleAllow, third.Action)
	assert.Equal(t, []string{model.AnyGroup}, third.DestinationGroups)

	// all-protocol rules never touch the resolver
	require.Len(t, resolver.calls, 2)
	assert.Equal(t, call{"S-R1", "80", "tcp", 0, 0}, resolver.calls[0])
	assert.Equal(t, call{"S-R3", "", "icmp", 8, 0}, resolver.calls[1])
}

func TestTranslateResolverError(t *testing.T) {
	boom := errors.New("controller unavailable")
	translator := NewTranslator(&fakeResolver{err: boom})

	_, err := translator.Translate(context.Background(), "S", []types.NetworkRule{{
		RuleID:      1,
		TrafficType: types.TrafficIngress,
		Protocol:    "udp",
		StartPort:   53,
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "S-R1")
}

func TestTranslateUnsupportedAction(t *testing.T) {
	translator := NewTranslator(&fakeResolver{})

	_, err := translator.Translate(context.Background(), "S", []types.NetworkRule{{
		RuleID:      1,
		TrafficType: types.TrafficIngress,
		Protocol:    "all",
		Action:      "Maybe",
	}})
	assert.Error(t, err)
}
