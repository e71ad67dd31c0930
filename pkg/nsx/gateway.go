package nsx

import (
	"context"
	"fmt"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

const kindGateway = "gateway"

// LocaleServiceBindError is returned when a gateway was created but could not
// be bound to its edge cluster. The gateway is left in place.
type LocaleServiceBindError struct {
	Gateway     string
	EdgeCluster string
	Err         error
}

func (e *LocaleServiceBindError) Error() string {
	return fmt.Sprintf("failed to bind gateway %s to edge cluster %s: %v", e.Gateway, e.EdgeCluster, e.Err)
}

func (e *LocaleServiceBindError) Unwrap() error {
	return e.Err
}

// RouteAdvertisementTypes returns what a gateway announces upstream.
// Connected subnets are only advertised when source NAT is off, otherwise
// the translated ranges would be announced twice.
func RouteAdvertisementTypes(sourceNatEnabled bool) []model.RouteAdvertisementType {
	advertised := []model.RouteAdvertisementType{
		model.RouteAdvertiseIPSecLocalEndpoint,
		model.RouteAdvertiseLBVIP,
		model.RouteAdvertiseNAT,
	}
	if !sourceNatEnabled {
		advertised = append(advertised, model.RouteAdvertiseConnected)
	}
	return advertised
}

// CreateGateway creates the tier-1 gateway of a network or VPC and binds it
// to the edge cluster of the tier-0 gateway. An existing gateway is left
// untouched apart from binding it when a previous bind failed.
func (c *Client) CreateGateway(ctx context.Context, ref types.NetworkRef, sourceNatEnabled bool) error {
	name := naming.GatewayNameFor(ref)
	logger := log.WithGateway(name)
	path := model.Tier1Path(name)

	var existing model.Tier1
	found, err := c.lookup(ctx, path, &existing)
	if err != nil {
		return fmt.Errorf("failed to look up gateway %s: %w", name, err)
	}

	if found {
		logger.Debug().Msg("Gateway already exists")
	} else {
		tier1 := model.Tier1{
			Resource: model.Resource{
				ID:           name,
				DisplayName:  name,
				ResourceType: model.ResourceTier1,
			},
			Tier0Path:               model.Tier0Path(c.cfg.Tier0Gateway),
			PoolAllocation:          model.PoolAllocationRouting,
			HAMode:                  model.HAModeActiveStandby,
			FailoverMode:            model.FailoverPreemptive,
			RouteAdvertisementTypes: RouteAdvertisementTypes(sourceNatEnabled),
		}
		if err := c.api.Patch(ctx, path, tier1); err != nil {
			return fmt.Errorf("failed to create gateway %s: %w", name, err)
		}
		c.created(kindGateway, events.EventGatewayCreated, name)
		logger.Info().Str("tier0", c.cfg.Tier0Gateway).Msg("Gateway created")
	}

	if err := c.ensureLocaleService(ctx, name); err != nil {
		return &LocaleServiceBindError{Gateway: name, EdgeCluster: c.cfg.EdgeCluster, Err: err}
	}
	return nil
}

// ensureLocaleService binds a gateway to the edge cluster found on the
// tier-0 gateway's first locale service
func (c *Client) ensureLocaleService(ctx context.Context, gateway string) error {
	path := model.Tier1LocaleServicePath(gateway)

	var existing model.LocaleServices
	found, err := c.lookup(ctx, path, &existing)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	upstream, err := listAll[model.LocaleServices](ctx, c.api, model.Tier0LocaleServicesPath(c.cfg.Tier0Gateway), nil)
	if err != nil {
		return err
	}
	if len(upstream) == 0 || upstream[0].EdgeClusterPath == "" {
		return fmt.Errorf("tier-0 gateway %s has no edge cluster bound", c.cfg.Tier0Gateway)
	}

	locale := model.LocaleServices{
		Resource: model.Resource{
			ID:           model.DefaultLocaleServiceID,
			DisplayName:  model.DefaultLocaleServiceID,
			ResourceType: model.ResourceLocaleServices,
		},
		EdgeClusterPath: upstream[0].EdgeClusterPath,
	}
	if err := c.api.Patch(ctx, path, locale); err != nil {
		return err
	}

	logger := log.WithGateway(gateway)
	logger.Info().
		Str("edge_cluster_path", locale.EdgeClusterPath).
		Msg("Gateway bound to edge cluster")
	return nil
}

// UpdateGatewaySourceNat re-announces a gateway's routes after source NAT
// was turned on or off
func (c *Client) UpdateGatewaySourceNat(ctx context.Context, ref types.NetworkRef, sourceNatEnabled bool) error {
	name := naming.GatewayNameFor(ref)
	path := model.Tier1Path(name)

	var tier1 model.Tier1
	if err := c.api.Get(ctx, path, nil, &tier1); err != nil {
		return fmt.Errorf("failed to get gateway %s: %w", name, err)
	}

	tier1.RouteAdvertisementTypes = RouteAdvertisementTypes(sourceNatEnabled)
	if err := c.api.Patch(ctx, path, tier1); err != nil {
		return fmt.Errorf("failed to update route advertisement of gateway %s: %w", name, err)
	}

	logger := log.WithGateway(name)
	logger.Info().Bool("source_nat", sourceNatEnabled).Msg("Gateway route advertisement updated")
	return nil
}

// DeleteGateway removes every NAT rule of a gateway, its edge cluster
// binding and then the gateway itself. A missing gateway is not an error.
func (c *Client) DeleteGateway(ctx context.Context, ref types.NetworkRef) error {
	name := naming.GatewayNameFor(ref)
	logger := log.WithGateway(name)
	path := model.Tier1Path(name)

	var existing model.Tier1
	found, err := c.lookup(ctx, path, &existing)
	if err != nil {
		return fmt.Errorf("failed to look up gateway %s: %w", name, err)
	}
	if !found {
		logger.Warn().Msg("Gateway not found, nothing to delete")
		return nil
	}

	rules, err := listAll[model.PolicyNatRule](ctx, c.api, model.NatRulesPath(name), nil)
	if err != nil {
		return fmt.Errorf("failed to list NAT rules of gateway %s: %w", name, err)
	}
	if len(rules) == 0 {
		logger.Debug().Msg("Gateway has no NAT rules")
	}
	for _, rule := range rules {
		if err := c.remove(ctx, model.NatRulePath(name, rule.ID), kindNatRule, events.EventNatRuleDeleted, rule.ID); err != nil {
			return fmt.Errorf("failed to delete NAT rule %s of gateway %s: %w", rule.ID, name, err)
		}
	}

	if _, err := c.deleteIfExists(ctx, model.Tier1LocaleServicePath(name)); err != nil {
		return fmt.Errorf("failed to delete locale services of gateway %s: %w", name, err)
	}

	if err := c.remove(ctx, path, kindGateway, events.EventGatewayDeleted, name); err != nil {
		return fmt.Errorf("failed to delete gateway %s: %w", name, err)
	}
	logger.Info().Int("nat_rules", len(rules)).Msg("Gateway deleted")
	return nil
}
