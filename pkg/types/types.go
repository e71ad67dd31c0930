package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Provider is a network controller registered for one zone
type Provider struct {
	ZoneID             int64         `json:"zone_id" yaml:"zone_id"`
	Name               string        `json:"name" yaml:"name"`
	Hostname           string        `json:"hostname" yaml:"hostname"`
	Port               int           `json:"port" yaml:"port"`
	Username           string        `json:"username" yaml:"username"`
	Password           string        `json:"password" yaml:"password"`
	Tier0Gateway       string        `json:"tier0_gateway" yaml:"tier0_gateway"`
	EdgeCluster        string        `json:"edge_cluster" yaml:"edge_cluster"`
	TransportZone      string        `json:"transport_zone" yaml:"transport_zone"`
	InsecureSkipVerify bool          `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	CAFile             string        `json:"ca_file,omitempty" yaml:"ca_file"`
	Timeout            time.Duration `json:"timeout,omitempty" yaml:"timeout"`
	Settings           ZoneSettings  `json:"settings" yaml:"settings"`
	CreatedAt          time.Time     `json:"created_at" yaml:"-"`
}

// ZoneSettings holds the per-zone knobs used while tearing down resources
type ZoneSettings struct {
	// APIRetries is how many times a pending teardown is re-polled
	APIRetries int `json:"api_retries" yaml:"api_retries"`

	// APIRetryInterval is the wait between polls, in seconds
	APIRetryInterval int `json:"api_retry_interval" yaml:"api_retry_interval"`
}

const (
	DefaultAPIRetries       = 30
	DefaultAPIRetryInterval = 60
)

// DefaultZoneSettings returns the settings used when a zone has none configured
func DefaultZoneSettings() ZoneSettings {
	return ZoneSettings{
		APIRetries:       DefaultAPIRetries,
		APIRetryInterval: DefaultAPIRetryInterval,
	}
}

// Interval returns the retry interval as a duration
func (z ZoneSettings) Interval() time.Duration {
	return time.Duration(z.APIRetryInterval) * time.Second
}

// NetworkRef identifies an orchestration network or VPC tier.
// VpcID is zero for networks that do not belong to a VPC.
type NetworkRef struct {
	ZoneID    int64 `yaml:"zone_id"`
	DomainID  int64 `yaml:"domain_id"`
	AccountID int64 `yaml:"account_id"`
	VpcID     int64 `yaml:"vpc_id"`
	NetworkID int64 `yaml:"network_id"`
}

// IsVpc reports whether the network is a VPC tier
func (n NetworkRef) IsVpc() bool {
	return n.VpcID != 0
}

// RouterID returns the ID of the resource owning the gateway: the VPC for
// VPC tiers, the network itself otherwise
func (n NetworkRef) RouterID() int64 {
	if n.IsVpc() {
		return n.VpcID
	}
	return n.NetworkID
}

// TrafficType is the direction a network rule applies to
type TrafficType string

const (
	TrafficIngress TrafficType = "Ingress"
	TrafficEgress  TrafficType = "Egress"
)

// NetworkService names the orchestration feature a rule comes from
type NetworkService string

const (
	ServiceNetworkACL NetworkService = "NetworkACL"
	ServiceFirewall   NetworkService = "Firewall"
)

// RuleAction is the verdict of a network rule
type RuleAction string

const (
	ActionAllow RuleAction = "Allow"
	ActionDeny  RuleAction = "Deny"
)

// ProtocolAll matches every protocol in a network rule
const ProtocolAll = "all"

// NetworkRule is an orchestration-level ACL or firewall rule
type NetworkRule struct {
	RuleID           int64          `yaml:"rule_id"`
	TrafficType      TrafficType    `yaml:"traffic_type"`
	Service          NetworkService `yaml:"service"`
	Protocol         string         `yaml:"protocol"`
	SourceCIDRs      []string       `yaml:"source_cidrs"`
	DestinationCIDRs []string       `yaml:"destination_cidrs"`
	StartPort        int            `yaml:"start_port"`
	EndPort          int            `yaml:"end_port"`
	ICMPType         int            `yaml:"icmp_type"`
	ICMPCode         int            `yaml:"icmp_code"`
	Action           RuleAction     `yaml:"action"`
	Priority         int            `yaml:"priority"`
}

// AllProtocols reports whether the rule matches any protocol
func (r NetworkRule) AllProtocols() bool {
	return strings.EqualFold(r.Protocol, ProtocolAll)
}

// PortRange renders the rule's destination ports, e.g. "80" or "8000-8080".
// An empty string means the rule has no port restriction.
func (r NetworkRule) PortRange() string {
	return FormatPortRange(r.StartPort, r.EndPort)
}

// FormatPortRange renders a port or a port range
func FormatPortRange(start, end int) string {
	if start <= 0 {
		return ""
	}
	if end <= 0 || end == start {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

// LbMember is a backend VM of a load balancer rule
type LbMember struct {
	VMID int64  `yaml:"vm_id"`
	VMIP string `yaml:"vm_ip"`
	Port string `yaml:"port"`
}

// NatRuleKind distinguishes the NAT rules provisioned on a gateway
type NatRuleKind string

const (
	NatStatic      NatRuleKind = "static"
	NatPortForward NatRuleKind = "port-forward"
	NatSource      NatRuleKind = "source"
)
