package model

import "fmt"

// Controller enums are variants with an explicit wire table, so a Go name
// never leaks onto the wire and renaming a variant cannot change a payload.

func marshalEnum[E comparable](table map[E]string, v E, kind string) ([]byte, error) {
	s, ok := table[v]
	if !ok {
		return nil, fmt.Errorf("invalid %s: %v", kind, v)
	}
	return []byte(s), nil
}

func unmarshalEnum[E comparable](table map[E]string, b []byte, dst *E, kind string) error {
	for v, s := range table {
		if s == string(b) {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", kind, string(b))
}

// AdminState of a segment
type AdminState int

const (
	AdminStateUp AdminState = iota + 1
	AdminStateDown
)

var adminStateWire = map[AdminState]string{
	AdminStateUp:   "UP",
	AdminStateDown: "DOWN",
}

func (a AdminState) String() string { return adminStateWire[a] }
func (a AdminState) MarshalText() ([]byte, error) {
	return marshalEnum(adminStateWire, a, "admin state")
}
func (a *AdminState) UnmarshalText(b []byte) error {
	return unmarshalEnum(adminStateWire, b, a, "admin state")
}

// HAMode of a gateway
type HAMode int

const (
	HAModeActiveStandby HAMode = iota + 1
	HAModeActiveActive
)

var haModeWire = map[HAMode]string{
	HAModeActiveStandby: "ACTIVE_STANDBY",
	HAModeActiveActive:  "ACTIVE_ACTIVE",
}

func (h HAMode) String() string               { return haModeWire[h] }
func (h HAMode) MarshalText() ([]byte, error) { return marshalEnum(haModeWire, h, "ha mode") }
func (h *HAMode) UnmarshalText(b []byte) error {
	return unmarshalEnum(haModeWire, b, h, "ha mode")
}

// FailoverMode of a gateway
type FailoverMode int

const (
	FailoverPreemptive FailoverMode = iota + 1
	FailoverNonPreemptive
)

var failoverModeWire = map[FailoverMode]string{
	FailoverPreemptive:    "PREEMPTIVE",
	FailoverNonPreemptive: "NON_PREEMPTIVE",
}

func (f FailoverMode) String() string { return failoverModeWire[f] }
func (f FailoverMode) MarshalText() ([]byte, error) {
	return marshalEnum(failoverModeWire, f, "failover mode")
}
func (f *FailoverMode) UnmarshalText(b []byte) error {
	return unmarshalEnum(failoverModeWire, b, f, "failover mode")
}

// PoolAllocation class of a gateway's edge resources
type PoolAllocation int

const (
	PoolAllocationRouting PoolAllocation = iota + 1
	PoolAllocationLBSmall
	PoolAllocationLBMedium
	PoolAllocationLBLarge
)

var poolAllocationWire = map[PoolAllocation]string{
	PoolAllocationRouting:  "ROUTING",
	PoolAllocationLBSmall:  "LB_SMALL",
	PoolAllocationLBMedium: "LB_MEDIUM",
	PoolAllocationLBLarge:  "LB_LARGE",
}

func (p PoolAllocation) String() string { return poolAllocationWire[p] }
func (p PoolAllocation) MarshalText() ([]byte, error) {
	return marshalEnum(poolAllocationWire, p, "pool allocation")
}
func (p *PoolAllocation) UnmarshalText(b []byte) error {
	return unmarshalEnum(poolAllocationWire, b, p, "pool allocation")
}

// RouteAdvertisementType a gateway announces upstream
type RouteAdvertisementType int

const (
	RouteAdvertiseIPSecLocalEndpoint RouteAdvertisementType = iota + 1
	RouteAdvertiseLBVIP
	RouteAdvertiseNAT
	RouteAdvertiseConnected
	RouteAdvertiseLBSNAT
	RouteAdvertiseStaticRoutes
	RouteAdvertiseDNSForwarderIP
)

var routeAdvertisementWire = map[RouteAdvertisementType]string{
	RouteAdvertiseIPSecLocalEndpoint: "TIER1_IPSEC_LOCAL_ENDPOINT",
	RouteAdvertiseLBVIP:              "TIER1_LB_VIP",
	RouteAdvertiseNAT:                "TIER1_NAT",
	RouteAdvertiseConnected:          "TIER1_CONNECTED",
	RouteAdvertiseLBSNAT:             "TIER1_LB_SNAT",
	RouteAdvertiseStaticRoutes:       "TIER1_STATIC_ROUTES",
	RouteAdvertiseDNSForwarderIP:     "TIER1_DNS_FORWARDER_IP",
}

func (r RouteAdvertisementType) String() string { return routeAdvertisementWire[r] }
func (r RouteAdvertisementType) MarshalText() ([]byte, error) {
	return marshalEnum(routeAdvertisementWire, r, "route advertisement type")
}
func (r *RouteAdvertisementType) UnmarshalText(b []byte) error {
	return unmarshalEnum(routeAdvertisementWire, b, r, "route advertisement type")
}

// NatAction of a NAT rule
type NatAction int

const (
	NatActionSNAT NatAction = iota + 1
	NatActionDNAT
	NatActionReflexive
)

var natActionWire = map[NatAction]string{
	NatActionSNAT:      "SNAT",
	NatActionDNAT:      "DNAT",
	NatActionReflexive: "REFLEXIVE",
}

func (n NatAction) String() string               { return natActionWire[n] }
func (n NatAction) MarshalText() ([]byte, error) { return marshalEnum(natActionWire, n, "nat action") }
func (n *NatAction) UnmarshalText(b []byte) error {
	return unmarshalEnum(natActionWire, b, n, "nat action")
}

// FirewallMatch selects which address a NAT rule's gateway firewall matches
type FirewallMatch int

const (
	MatchExternalAddress FirewallMatch = iota + 1
	MatchInternalAddress
	MatchBypass
)

var firewallMatchWire = map[FirewallMatch]string{
	MatchExternalAddress: "MATCH_EXTERNAL_ADDRESS",
	MatchInternalAddress: "MATCH_INTERNAL_ADDRESS",
	MatchBypass:          "BYPASS",
}

func (f FirewallMatch) String() string { return firewallMatchWire[f] }
func (f FirewallMatch) MarshalText() ([]byte, error) {
	return marshalEnum(firewallMatchWire, f, "firewall match")
}
func (f *FirewallMatch) UnmarshalText(b []byte) error {
	return unmarshalEnum(firewallMatchWire, b, f, "firewall match")
}

// RuleAction of a distributed firewall rule
type RuleAction int

const (
	RuleAllow RuleAction = iota + 1
	RuleDrop
	RuleReject
)

var ruleActionWire = map[RuleAction]string{
	RuleAllow:  "ALLOW",
	RuleDrop:   "DROP",
	RuleReject: "REJECT",
}

func (r RuleAction) String() string               { return ruleActionWire[r] }
func (r RuleAction) MarshalText() ([]byte, error) { return marshalEnum(ruleActionWire, r, "rule action") }
func (r *RuleAction) UnmarshalText(b []byte) error {
	return unmarshalEnum(ruleActionWire, b, r, "rule action")
}

// RuleDirection of a distributed firewall rule
type RuleDirection int

const (
	DirectionIn RuleDirection = iota + 1
	DirectionOut
	DirectionInOut
)

var ruleDirectionWire = map[RuleDirection]string{
	DirectionIn:    "IN",
	DirectionOut:   "OUT",
	DirectionInOut: "IN_OUT",
}

func (r RuleDirection) String() string { return ruleDirectionWire[r] }
func (r RuleDirection) MarshalText() ([]byte, error) {
	return marshalEnum(ruleDirectionWire, r, "rule direction")
}
func (r *RuleDirection) UnmarshalText(b []byte) error {
	return unmarshalEnum(ruleDirectionWire, b, r, "rule direction")
}

// LBSize of a load balancer service
type LBSize int

const (
	LBSizeSmall LBSize = iota + 1
	LBSizeMedium
	LBSizeLarge
)

var lbSizeWire = map[LBSize]string{
	LBSizeSmall:  "SMALL",
	LBSizeMedium: "MEDIUM",
	LBSizeLarge:  "LARGE",
}

func (l LBSize) String() string               { return lbSizeWire[l] }
func (l LBSize) MarshalText() ([]byte, error) { return marshalEnum(lbSizeWire, l, "lb size") }
func (l *LBSize) UnmarshalText(b []byte) error {
	return unmarshalEnum(lbSizeWire, b, l, "lb size")
}

// LBAlgorithm used by a pool to pick a member
type LBAlgorithm int

const (
	AlgorithmRoundRobin LBAlgorithm = iota + 1
	AlgorithmLeastConnection
	AlgorithmIPHash
)

var lbAlgorithmWire = map[LBAlgorithm]string{
	AlgorithmRoundRobin:      "ROUND_ROBIN",
	AlgorithmLeastConnection: "LEAST_CONNECTION",
	AlgorithmIPHash:          "IP_HASH",
}

func (l LBAlgorithm) String() string { return lbAlgorithmWire[l] }
func (l LBAlgorithm) MarshalText() ([]byte, error) {
	return marshalEnum(lbAlgorithmWire, l, "lb algorithm")
}
func (l *LBAlgorithm) UnmarshalText(b []byte) error {
	return unmarshalEnum(lbAlgorithmWire, b, l, "lb algorithm")
}

// orchestrationAlgorithms maps orchestration algorithm names to pool algorithms
var orchestrationAlgorithms = map[string]LBAlgorithm{
	"roundrobin": AlgorithmRoundRobin,
	"leastconn":  AlgorithmLeastConnection,
	"source":     AlgorithmIPHash,
}

// ParseLBAlgorithm maps an orchestration algorithm name; unknown names fall
// back to round robin
func ParseLBAlgorithm(name string) LBAlgorithm {
	if a, ok := orchestrationAlgorithms[name]; ok {
		return a
	}
	return AlgorithmRoundRobin
}
