package nsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

const kindSecurityPolicy = "security-policy"

// CreateSegmentDistributedFirewall creates or replaces the security policy
// of a network's segment with rules, in order
func (c *Client) CreateSegmentDistributedFirewall(ctx context.Context, ref types.NetworkRef, rules []types.NetworkRule) error {
	segment := naming.SegmentNameFor(ref)

	translated, err := c.translator.Translate(ctx, segment, rules)
	if err != nil {
		return fmt.Errorf("failed to translate rules of segment %s: %w", segment, err)
	}

	policy := model.SecurityPolicy{
		Resource: model.Resource{
			ID:           segment,
			DisplayName:  segment,
			ResourceType: model.ResourceSecurityPolicy,
		},
		Category: model.SecurityPolicyCategory,
		Scope:    []string{model.GroupPath(segment)},
		Rules:    translated,
	}
	if err := c.api.Patch(ctx, model.SecurityPolicyPath(segment), policy); err != nil {
		return fmt.Errorf("failed to create security policy of segment %s: %w", segment, err)
	}

	c.created(kindSecurityPolicy, events.EventFirewallPolicyApplied, segment)
	logger := log.WithSegment(segment)
	logger.Info().Int("rules", len(translated)).Msg("Distributed firewall policy applied")
	return nil
}

// DeleteSegmentDistributedFirewall removes the security policy of a network's
// segment and the services its rules created. A missing policy is not an
// error.
func (c *Client) DeleteSegmentDistributedFirewall(ctx context.Context, ref types.NetworkRef) error {
	segment := naming.SegmentNameFor(ref)
	path := model.SecurityPolicyPath(segment)

	var policy model.SecurityPolicy
	found, err := c.lookup(ctx, path, &policy)
	if err != nil {
		return fmt.Errorf("failed to look up security policy of segment %s: %w", segment, err)
	}
	if !found {
		return nil
	}

	if err := c.remove(ctx, path, kindSecurityPolicy, events.EventFirewallPolicyDeleted, segment); err != nil {
		return fmt.Errorf("failed to delete security policy of segment %s: %w", segment, err)
	}

	for _, rule := range policy.Rules {
		if err := c.deleteRuleServices(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDistributedFirewallRules removes single rules from a network's
// security policy, with the services they created
func (c *Client) DeleteDistributedFirewallRules(ctx context.Context, ref types.NetworkRef, rules []types.NetworkRule) error {
	segment := naming.SegmentNameFor(ref)

	for _, r := range rules {
		ruleID := naming.DistributedFirewallRuleID(segment, r.RuleID)
		path := model.SecurityRulePath(segment, ruleID)

		var rule model.Rule
		found, err := c.lookup(ctx, path, &rule)
		if err != nil {
			return fmt.Errorf("failed to look up rule %s: %w", ruleID, err)
		}
		if !found {
			continue
		}

		if _, err := c.deleteIfExists(ctx, path); err != nil {
			return fmt.Errorf("failed to delete rule %s: %w", ruleID, err)
		}
		if err := c.deleteRuleServices(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

// deleteRuleServices removes the services created for a rule. Shared and
// default services are left alone.
func (c *Client) deleteRuleServices(ctx context.Context, rule model.Rule) error {
	prefix := model.ServicePath(rule.ID + "-")
	for _, service := range rule.Services {
		if !strings.HasPrefix(service, prefix) {
			continue
		}
		if err := c.DeleteService(ctx, serviceID(service)); err != nil {
			return err
		}
	}
	return nil
}
