// Package naming derives controller object IDs from orchestration identifiers.
//
// Every controller object is addressed by a name built here. Names are pure
// functions of their inputs, so repeating a call after a restart yields the
// same object and get-or-create stays idempotent. Each numeric field is
// introduced by a distinct letter tag and fields are dash separated, so two
// different input tuples never produce the same name.
package naming

import (
	"fmt"
	"strings"

	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

const protocolICMP = "ICMP"

// GatewayName returns the tier-1 gateway ID for a VPC or an isolated network
func GatewayName(zoneID, domainID, accountID, resourceID int64, isVpc bool) string {
	kind := "N"
	if isVpc {
		kind = "V"
	}
	return fmt.Sprintf("D%d-A%d-Z%d-%s%d", domainID, accountID, zoneID, kind, resourceID)
}

// GatewayNameFor returns the gateway ID owning a network
func GatewayNameFor(n types.NetworkRef) string {
	return GatewayName(n.ZoneID, n.DomainID, n.AccountID, n.RouterID(), n.IsVpc())
}

// SegmentName returns the segment ID of a network. vpcID is zero for
// networks outside a VPC.
func SegmentName(zoneID, domainID, accountID, vpcID, networkID int64) string {
	name := fmt.Sprintf("D%d-A%d-Z%d", domainID, accountID, zoneID)
	if vpcID != 0 {
		name += fmt.Sprintf("-V%d", vpcID)
	}
	return fmt.Sprintf("%s-S%d", name, networkID)
}

// SegmentNameFor returns the segment ID of a network
func SegmentNameFor(n types.NetworkRef) string {
	return SegmentName(n.ZoneID, n.DomainID, n.AccountID, n.VpcID, n.NetworkID)
}

// DHCPRelayConfigID returns the DHCP relay config ID bound to a network
func DHCPRelayConfigID(zoneID, domainID, accountID, vpcID, networkID int64) string {
	return SegmentName(zoneID, domainID, accountID, vpcID, networkID) + "-Relay"
}

// DHCPRelayConfigIDFor returns the DHCP relay config ID bound to a network
func DHCPRelayConfigIDFor(n types.NetworkRef) string {
	return DHCPRelayConfigID(n.ZoneID, n.DomainID, n.AccountID, n.VpcID, n.NetworkID)
}

// StaticNatRuleName returns the static NAT rule ID of one public IP of a
// network resource
func StaticNatRuleName(zoneID, domainID, accountID, resourceID, publicIPID int64, isVpc bool) string {
	return fmt.Sprintf("%s-STATICNAT-IP%d", GatewayName(zoneID, domainID, accountID, resourceID, isVpc), publicIPID)
}

// PortForwardRuleName returns the port forwarding NAT rule ID
func PortForwardRuleName(zoneID, domainID, accountID, resourceID, ruleID int64, isVpc bool) string {
	return fmt.Sprintf("%s-PF%d", GatewayName(zoneID, domainID, accountID, resourceID, isVpc), ruleID)
}

// SourceNatRuleName returns the gateway SNAT rule ID
func SourceNatRuleName(gatewayName string) string {
	return gatewayName + "-SNAT"
}

// LoadBalancerName returns the LB service ID of a gateway
func LoadBalancerName(gatewayName string) string {
	return gatewayName + "-LB"
}

// LoadBalancerRuleName returns the base ID of one load balancing rule
func LoadBalancerRuleName(gatewayName string, lbID int64) string {
	return fmt.Sprintf("%s-LB%d", gatewayName, lbID)
}

// ServerPoolName returns the LB pool ID of a load balancing rule
func ServerPoolName(gatewayName string, lbID int64) string {
	return LoadBalancerRuleName(gatewayName, lbID) + "-SP"
}

// VirtualServerName returns the LB virtual server ID of a load balancing rule
func VirtualServerName(gatewayName string, lbID int64) string {
	return LoadBalancerRuleName(gatewayName, lbID) + "-VS"
}

// ServerPoolMemberName returns the display name of a pool member VM
func ServerPoolMemberName(gatewayName string, vmID int64) string {
	return fmt.Sprintf("%s-VM%d", gatewayName, vmID)
}

// ActiveMonitorProfileName returns the active health monitor ID of a pool
func ActiveMonitorProfileName(poolName, port, protocol string) string {
	return fmt.Sprintf("%s-%s-%s-AM", poolName, strings.ToUpper(protocol), port)
}

// ServiceName returns the service ID used by a rule. ICMP services are
// keyed by type and code and carry no port.
func ServiceName(ruleName, port, protocol string, icmpType, icmpCode int) string {
	protocol = strings.ToUpper(protocol)
	if protocol == protocolICMP {
		return fmt.Sprintf("%s-SVC-%d-%d-%s", ruleName, icmpType, icmpCode, protocol)
	}
	return fmt.Sprintf("%s-SVC-%s-%s", ruleName, port, protocol)
}

// ServiceEntryName returns the ID of the single entry inside a rule service
func ServiceEntryName(ruleName, port, protocol string) string {
	return fmt.Sprintf("%s-SE-%s-%s", ruleName, port, strings.ToUpper(protocol))
}

// DistributedFirewallRuleID returns the security rule ID of an ACL rule on a
// segment. It is unique within the segment's policy.
func DistributedFirewallRuleID(segmentName string, ruleID int64) string {
	return fmt.Sprintf("%s-R%d", segmentName, ruleID)
}
