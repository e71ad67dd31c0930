package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier1WireFormat(t *testing.T) {
	tier1 := Tier1{
		Resource:                Resource{ID: "gw", ResourceType: ResourceTier1},
		PoolAllocation:          PoolAllocationRouting,
		HAMode:                  HAModeActiveStandby,
		FailoverMode:            FailoverPreemptive,
		RouteAdvertisementTypes: []RouteAdvertisementType{RouteAdvertiseNAT, RouteAdvertiseConnected},
	}

	data, err := json.Marshal(tier1)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "gw",
		"resource_type": "Tier1",
		"pool_allocation": "ROUTING",
		"ha_mode": "ACTIVE_STANDBY",
		"failover_mode": "PREEMPTIVE",
		"route_advertisement_types": ["TIER1_NAT", "TIER1_CONNECTED"]
	}`, string(data))

	var decoded Tier1
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tier1, decoded)
}

func TestUnsetEnumsAreOmitted(t *testing.T) {
	data, err := json.Marshal(Segment{Resource: Resource{ID: "seg"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "seg"}`, string(data))
}

func TestUnknownEnumValue(t *testing.T) {
	var action NatAction
	err := json.Unmarshal([]byte(`"MASQUERADE"`), &action)
	assert.Error(t, err)

	_, err = json.Marshal(RuleAction(42))
	assert.Error(t, err)
}

func TestParseLBAlgorithm(t *testing.T) {
	tests := map[string]LBAlgorithm{
		"roundrobin": AlgorithmRoundRobin,
		"leastconn":  AlgorithmLeastConnection,
		"source":     AlgorithmIPHash,
		"weighted":   AlgorithmRoundRobin,
		"":           AlgorithmRoundRobin,
	}
	for name, expected := range tests {
		assert.Equal(t, expected, ParseLBAlgorithm(name), name)
	}
}

func TestTransportZoneIsOverlay(t *testing.T) {
	assert.True(t, TransportZone{TzType: TzTypeOverlayStandard}.IsOverlay())
	assert.True(t, TransportZone{TzType: TzTypeOverlayEnhanced}.IsOverlay())
	assert.False(t, TransportZone{TzType: TzTypeVlanBacked}.IsOverlay())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/infra/tier-1s/gw/locale-services/default", Tier1LocaleServicePath("gw"))
	assert.Equal(t, "/infra/tier-1s/gw/nat/USER/nat-rules/r1", NatRulePath("gw", "r1"))
	assert.Equal(t, "/infra/domains/default/groups/seg/members/segment-ports", GroupSegmentPortsPath("seg"))
	assert.Equal(t, "/infra/domains/default/security-policies/seg/rules/r1", SecurityRulePath("seg", "r1"))
	assert.Equal(t, "/infra/sites/default/enforcement-points", EnforcementPointsPath(DefaultSite))
}
