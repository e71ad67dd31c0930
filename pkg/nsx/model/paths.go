package model

// Fixed identifiers that are part of the controller contract
const (
	DefaultDomain             = "default"
	DefaultSite               = "default"
	DefaultLocaleServiceID    = "default"
	NatTableUser              = "USER"
	DefaultPassiveMonitorPath = "/infra/lb-monitor-profiles/default-passive-lb-monitor"
	SecurityPolicyCategory    = "Application"
	AnyGroup                  = "ANY"
)

const (
	tier0Prefix          = "/infra/tier-0s/"
	tier1Prefix          = "/infra/tier-1s/"
	segmentPrefix        = "/infra/segments/"
	groupPrefix          = "/infra/domains/" + DefaultDomain + "/groups/"
	securityPolicyPrefix = "/infra/domains/" + DefaultDomain + "/security-policies/"
	servicePrefix        = "/infra/services/"
	lbServicePrefix      = "/infra/lb-services/"
	lbPoolPrefix         = "/infra/lb-pools/"
	lbVirtualServerPfx   = "/infra/lb-virtual-servers/"
	lbMonitorPrefix      = "/infra/lb-monitor-profiles/"
	dhcpRelayPrefix      = "/infra/dhcp-relay-configs/"
	sitePrefix           = "/infra/sites/"
)

// Collection paths
const (
	ServicesPath          = "/infra/services"
	SitesPath             = "/infra/sites"
	LBVirtualServersPath  = "/infra/lb-virtual-servers"
	LBPoolsPath           = "/infra/lb-pools"
	LBMonitorProfilesPath = "/infra/lb-monitor-profiles"
	LBAppProfilesPath     = "/infra/lb-app-profiles"
)

func Tier0Path(id string) string { return tier0Prefix + id }

func Tier0LocaleServicesPath(id string) string { return Tier0Path(id) + "/locale-services" }

func Tier1Path(id string) string { return tier1Prefix + id }

func Tier1LocaleServicePath(id string) string {
	return Tier1Path(id) + "/locale-services/" + DefaultLocaleServiceID
}

// NatRulesPath is the USER NAT table of a gateway
func NatRulesPath(tier1 string) string {
	return Tier1Path(tier1) + "/nat/" + NatTableUser + "/nat-rules"
}

func NatRulePath(tier1, rule string) string { return NatRulesPath(tier1) + "/" + rule }

func SegmentPath(id string) string { return segmentPrefix + id }

func GroupPath(id string) string { return groupPrefix + id }

// GroupSegmentPortsPath lists the segment ports that are members of a group
func GroupSegmentPortsPath(id string) string { return GroupPath(id) + "/members/segment-ports" }

func SecurityPolicyPath(id string) string { return securityPolicyPrefix + id }

func SecurityRulePath(policy, rule string) string {
	return SecurityPolicyPath(policy) + "/rules/" + rule
}

func ServicePath(id string) string { return servicePrefix + id }

func LBServicePath(id string) string { return lbServicePrefix + id }

func LBPoolPath(id string) string { return lbPoolPrefix + id }

func LBVirtualServerPath(id string) string { return lbVirtualServerPfx + id }

func LBMonitorProfilePath(id string) string { return lbMonitorPrefix + id }

func DhcpRelayConfigPath(id string) string { return dhcpRelayPrefix + id }

func EnforcementPointsPath(site string) string { return sitePrefix + site + "/enforcement-points" }

func TransportZonesPath(enforcementPointPath string) string {
	return enforcementPointPath + "/transport-zones"
}
