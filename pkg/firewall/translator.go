// Package firewall translates orchestration network rules into the
// controller's distributed firewall rules.
package firewall

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

// ErrUnsupportedTrafficType is returned for rules that are neither ingress
// nor egress
var ErrUnsupportedTrafficType = errors.New("unsupported traffic type")

// ServiceResolver returns the path of a service matching a port/protocol,
// reusing an existing one or creating it under ruleName
type ServiceResolver interface {
	ResolveService(ctx context.Context, ruleName, port, protocol string, icmpType, icmpCode int) (string, error)
}

// Translator builds security rules for a segment's policy
type Translator struct {
	services ServiceResolver
}

// NewTranslator creates a translator resolving services through services
func NewTranslator(services ServiceResolver) *Translator {
	return &Translator{services: services}
}

// Translate returns the controller rules for rules, in order, all scoped to
// the segment's group
func (t *Translator) Translate(ctx context.Context, segmentName string, rules []types.NetworkRule) ([]model.Rule, error) {
	out := make([]model.Rule, 0, len(rules))
	for _, rule := range rules {
		r, err := t.TranslateRule(ctx, segmentName, rule)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// TranslateRule builds the controller rule for a single network rule
func (t *Translator) TranslateRule(ctx context.Context, segmentName string, rule types.NetworkRule) (model.Rule, error) {
	ruleID := naming.DistributedFirewallRuleID(segmentName, rule.RuleID)
	segmentGroup := model.GroupPath(segmentName)

	sources, destinations, err := ResolveGroups(segmentGroup, rule)
	if err != nil {
		return model.Rule{}, fmt.Errorf("rule %s: %w", ruleID, err)
	}

	direction := model.DirectionIn
	if rule.TrafficType == types.TrafficEgress {
		direction = model.DirectionOut
	}

	action, err := ruleAction(rule.Action)
	if err != nil {
		return model.Rule{}, fmt.Errorf("rule %s: %w", ruleID, err)
	}

	services := []string{model.AnyGroup}
	if !rule.AllProtocols() {
		path, err := t.services.ResolveService(ctx, ruleID, rule.PortRange(), rule.Protocol, rule.ICMPType, rule.ICMPCode)
		if err != nil {
			return model.Rule{}, fmt.Errorf("failed to resolve service for rule %s: %w", ruleID, err)
		}
		services = []string{path}
	}

	return model.Rule{
		Resource: model.Resource{
			ID:           ruleID,
			DisplayName:  ruleID,
			ResourceType: model.ResourceRule,
		},
		Action:            action,
		Direction:         direction,
		SourceGroups:      sources,
		DestinationGroups: destinations,
		Services:          services,
		Scope:             []string{segmentGroup},
		SequenceNumber:    rule.Priority,
	}, nil
}

// ResolveGroups picks the source and destination groups of a rule on the
// segment whose group path is segmentGroup.
//
// Ingress rules always match on their source CIDRs; the destination is the
// segment itself for network ACLs and the destination CIDRs otherwise.
// Egress rules always originate from the segment; the destination is the
// source CIDRs for network ACLs and the destination CIDRs otherwise.
// An empty CIDR list matches any address.
func ResolveGroups(segmentGroup string, rule types.NetworkRule) (sources, destinations []string, err error) {
	switch rule.TrafficType {
	case types.TrafficIngress:
		ingressSource := rule.DestinationCIDRs
		if rule.Service == types.ServiceNetworkACL {
			ingressSource = []string{segmentGroup}
		}
		return orAny(rule.SourceCIDRs), orAny(ingressSource), nil
	case types.TrafficEgress:
		egressSource := rule.DestinationCIDRs
		if rule.Service == types.ServiceNetworkACL {
			egressSource = rule.SourceCIDRs
		}
		return []string{segmentGroup}, orAny(egressSource), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedTrafficType, rule.TrafficType)
	}
}

func orAny(groups []string) []string {
	if len(groups) == 0 {
		return []string{model.AnyGroup}
	}
	return append([]string(nil), groups...)
}

// ruleAction maps a verdict. Firewall rules carry no verdict and always allow.
func ruleAction(action types.RuleAction) (model.RuleAction, error) {
	switch action {
	case types.ActionAllow, "":
		return model.RuleAllow, nil
	case types.ActionDeny:
		return model.RuleDrop, nil
	default:
		return 0, fmt.Errorf("unsupported rule action %q", action)
	}
}
