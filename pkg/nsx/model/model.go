// Package model holds the typed objects of the controller's declarative
// policy API.
package model

// Resource types sent on the wire
const (
	ResourceTier1                = "Tier1"
	ResourceLocaleServices       = "LocaleServices"
	ResourceSegment              = "Segment"
	ResourceGroup                = "Group"
	ResourcePathExpression       = "PathExpression"
	ResourcePolicyNatRule        = "PolicyNatRule"
	ResourceService              = "Service"
	ResourceL4PortSetEntry       = "L4PortSetServiceEntry"
	ResourceICMPTypeEntry        = "ICMPTypeServiceEntry"
	ResourceSecurityPolicy       = "SecurityPolicy"
	ResourceRule                 = "Rule"
	ResourceLBService            = "LBService"
	ResourceLBPool               = "LBPool"
	ResourceLBVirtualServer      = "LBVirtualServer"
	ResourceLBTcpMonitorProfile  = "LBTcpMonitorProfile"
	ResourceLBIcmpMonitorProfile = "LBIcmpMonitorProfile"
	ResourceLBFastTcpProfile     = "LBFastTcpProfile"
	ResourceLBFastUdpProfile     = "LBFastUdpProfile"
	ResourceLBHttpProfile        = "LBHttpProfile"
	ResourceDhcpRelayConfig      = "DhcpRelayConfig"
)

// Tag is a scoped label attached to an object
type Tag struct {
	Scope string `json:"scope,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// HasTag reports whether tags contain the exact scope/value pair
func HasTag(tags []Tag, scope, value string) bool {
	for _, t := range tags {
		if t.Scope == scope && t.Tag == value {
			return true
		}
	}
	return false
}

// Resource holds the fields shared by every policy object. Path is minted by
// the controller and is only known after the object has been read back.
type Resource struct {
	ID              string `json:"id,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	Path            string `json:"path,omitempty"`
	ParentPath      string `json:"parent_path,omitempty"`
	ResourceType    string `json:"resource_type,omitempty"`
	Tags            []Tag  `json:"tags,omitempty"`
	MarkedForDelete bool   `json:"marked_for_delete,omitempty"`
}

// ListResult is one page of a list call
type ListResult[T any] struct {
	Results     []T    `json:"results"`
	ResultCount int64  `json:"result_count"`
	Cursor      string `json:"cursor,omitempty"`
}

// Tier1 is a tenant gateway
type Tier1 struct {
	Resource
	Tier0Path               string                   `json:"tier0_path,omitempty"`
	PoolAllocation          PoolAllocation           `json:"pool_allocation,omitempty"`
	HAMode                  HAMode                   `json:"ha_mode,omitempty"`
	FailoverMode            FailoverMode             `json:"failover_mode,omitempty"`
	RouteAdvertisementTypes []RouteAdvertisementType `json:"route_advertisement_types"`
}

// LocaleServices binds a gateway to an edge cluster
type LocaleServices struct {
	Resource
	EdgeClusterPath string `json:"edge_cluster_path,omitempty"`
}

// SegmentSubnet is a subnet served on a segment
type SegmentSubnet struct {
	GatewayAddress string `json:"gateway_address,omitempty"`
	Network        string `json:"network,omitempty"`
}

// Segment is an L2 broadcast domain
type Segment struct {
	Resource
	ConnectivityPath  string          `json:"connectivity_path,omitempty"`
	TransportZonePath string          `json:"transport_zone_path,omitempty"`
	AdminState        AdminState      `json:"admin_state,omitempty"`
	Subnets           []SegmentSubnet `json:"subnets,omitempty"`
	DhcpConfigPath    string          `json:"dhcp_config_path,omitempty"`
}

// Expression is a group membership criterion
type Expression struct {
	ResourceType string   `json:"resource_type"`
	Paths        []string `json:"paths,omitempty"`
}

// Group is a membership set used as a firewall match target
type Group struct {
	Resource
	Expression []Expression `json:"expression,omitempty"`
}

// PolicyNatRule is a NAT rule on a gateway's NAT table
type PolicyNatRule struct {
	Resource
	Action             NatAction     `json:"action,omitempty"`
	SourceNetwork      string        `json:"source_network,omitempty"`
	DestinationNetwork string        `json:"destination_network,omitempty"`
	TranslatedNetwork  string        `json:"translated_network,omitempty"`
	TranslatedPorts    string        `json:"translated_ports,omitempty"`
	Service            string        `json:"service,omitempty"`
	FirewallMatch      FirewallMatch `json:"firewall_match,omitempty"`
	Enabled            bool          `json:"enabled"`
	SequenceNumber     int           `json:"sequence_number,omitempty"`
}

// ServiceEntry is a protocol/port definition inside a service
type ServiceEntry struct {
	Resource
	DestinationPorts []string `json:"destination_ports,omitempty"`
	L4Protocol       string   `json:"l4_protocol,omitempty"`
	Protocol         string   `json:"protocol,omitempty"`
	ICMPType         *int     `json:"icmp_type,omitempty"`
	ICMPCode         *int     `json:"icmp_code,omitempty"`
}

// Service groups service entries. Default services are shipped by the
// controller and must never be deleted.
type Service struct {
	Resource
	IsDefault      bool           `json:"is_default,omitempty"`
	ServiceEntries []ServiceEntry `json:"service_entries,omitempty"`
}

// LBService is a gateway's load balancer
type LBService struct {
	Resource
	ConnectivityPath string `json:"connectivity_path,omitempty"`
	Enabled          bool   `json:"enabled"`
	Size             LBSize `json:"size,omitempty"`
}

// LBPoolMember is a backend of a pool
type LBPoolMember struct {
	DisplayName string `json:"display_name,omitempty"`
	IPAddress   string `json:"ip_address"`
	Port        string `json:"port,omitempty"`
}

// LBPool is a set of backends sharing health monitors
type LBPool struct {
	Resource
	Algorithm          LBAlgorithm    `json:"algorithm,omitempty"`
	Members            []LBPoolMember `json:"members,omitempty"`
	ActiveMonitorPaths []string       `json:"active_monitor_paths,omitempty"`
	PassiveMonitorPath string         `json:"passive_monitor_path,omitempty"`
}

// LBMonitorProfile is an active health check. MonitorPort is unset for ICMP.
type LBMonitorProfile struct {
	Resource
	MonitorPort int `json:"monitor_port,omitempty"`
}

// LBAppProfile is an application profile selectable by a virtual server
type LBAppProfile struct {
	Resource
}

// LBVirtualServer exposes a pool on a public address
type LBVirtualServer struct {
	Resource
	IPAddress              string   `json:"ip_address,omitempty"`
	Ports                  []string `json:"ports,omitempty"`
	PoolPath               string   `json:"pool_path,omitempty"`
	LBServicePath          string   `json:"lb_service_path,omitempty"`
	ApplicationProfilePath string   `json:"application_profile_path,omitempty"`
}

// Rule is a distributed firewall rule
type Rule struct {
	Resource
	Action            RuleAction    `json:"action,omitempty"`
	Direction         RuleDirection `json:"direction,omitempty"`
	SourceGroups      []string      `json:"source_groups"`
	DestinationGroups []string      `json:"destination_groups"`
	Services          []string      `json:"services"`
	Scope             []string      `json:"scope,omitempty"`
	SequenceNumber    int           `json:"sequence_number,omitempty"`
}

// SecurityPolicy is an ordered rule list scoped to groups
type SecurityPolicy struct {
	Resource
	Category string   `json:"category,omitempty"`
	Scope    []string `json:"scope,omitempty"`
	Rules    []Rule   `json:"rules,omitempty"`
}

// DhcpRelayConfig lists the relay servers of a network
type DhcpRelayConfig struct {
	Resource
	ServerAddresses []string `json:"server_addresses"`
}

// Site is a controller site
type Site struct {
	Resource
}

// EnforcementPoint is where policy of a site is realized
type EnforcementPoint struct {
	Resource
}

// TransportZone is a switching domain segments attach to
type TransportZone struct {
	Resource
	TzType string `json:"tz_type,omitempty"`
}

// Transport zone types that carry overlay traffic
const (
	TzTypeOverlayStandard = "OVERLAY_STANDARD"
	TzTypeOverlayEnhanced = "OVERLAY_ENS"
	TzTypeVlanBacked      = "VLAN_BACKED"
)

// IsOverlay reports whether the zone is overlay encapsulated
func (t TransportZone) IsOverlay() bool {
	return t.TzType == TzTypeOverlayStandard || t.TzType == TzTypeOverlayEnhanced
}
