package nsx

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/firewall"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/metrics"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/transport"
	"github.com/cuemby/nsx-orchestrator/pkg/paging"
	"github.com/cuemby/nsx-orchestrator/pkg/reconciler"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/rs/zerolog"
)

// API is the policy API transport. *transport.Client implements it.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Patch(ctx context.Context, path string, body any) error
	Delete(ctx context.Context, path string, query url.Values) error
}

// Config holds the zone-level settings of a client
type Config struct {
	// Tier0Gateway is the upstream gateway new gateways attach to
	Tier0Gateway string

	// EdgeCluster names the edge cluster gateways are bound to. The bound
	// path itself is copied from the tier-0 gateway's locale services.
	EdgeCluster string

	// TransportZone optionally selects an overlay transport zone by ID or
	// display name. Empty selects the first overlay zone.
	TransportZone string

	// Settings bound teardown polling
	Settings types.ZoneSettings

	// Events receives lifecycle events; nil disables publishing
	Events *events.Broker
}

// Client provisions gateways, segments, NAT, load balancers, firewall
// policies and DHCP relays on one controller. Every create reads the object
// first and is a no-op when it already exists; every delete tolerates
// absence. The client keeps no state between calls.
type Client struct {
	api        API
	cfg        Config
	reconciler *reconciler.Reconciler
	translator *firewall.Translator
	logger     zerolog.Logger
}

// NewClient creates a client over api
func NewClient(api API, cfg Config) *Client {
	c := &Client{
		api:        api,
		cfg:        cfg,
		reconciler: reconciler.New(reconciler.PolicyFor(cfg.Settings)),
		logger:     log.WithComponent("nsx"),
	}
	c.translator = firewall.NewTranslator(c)
	return c
}

// Connect creates a client for a registered provider
func Connect(provider *types.Provider, broker *events.Broker) (*Client, error) {
	api, err := transport.New(TransportConfig(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller of zone %d: %w", provider.ZoneID, err)
	}
	return NewClient(api, Config{
		Tier0Gateway:  provider.Tier0Gateway,
		EdgeCluster:   provider.EdgeCluster,
		TransportZone: provider.TransportZone,
		Settings:      provider.Settings,
		Events:        broker,
	}), nil
}

// TransportConfig returns the connection settings of a provider
func TransportConfig(provider *types.Provider) transport.Config {
	return transport.Config{
		Hostname:           provider.Hostname,
		Port:               provider.Port,
		Username:           provider.Username,
		Password:           provider.Password,
		InsecureSkipVerify: provider.InsecureSkipVerify,
		CAFile:             provider.CAFile,
		Timeout:            provider.Timeout,
	}
}

// lookup reads the object at path into out. A not-found reply reports false
// with no error.
func (c *Client) lookup(ctx context.Context, path string, out any) (bool, error) {
	err := c.api.Get(ctx, path, nil, out)
	if transport.IsNotFound(err) {
		c.logger.Debug().Str("path", path).Msg("Object not found")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deleteIfExists deletes path. An object that is already gone reports false
// with no error.
func (c *Client) deleteIfExists(ctx context.Context, path string) (bool, error) {
	err := c.api.Delete(ctx, path, nil)
	if transport.IsNotFound(err) {
		c.logger.Debug().Str("path", path).Msg("Object already absent")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// remove deletes path and records the deletion when an object was actually
// removed. An empty eventType only counts it.
func (c *Client) remove(ctx context.Context, path, kind string, eventType events.EventType, resource string) error {
	removed, err := c.deleteIfExists(ctx, path)
	if err != nil || !removed {
		return err
	}
	c.deleted(kind, eventType, resource)
	return nil
}

// resolvePath returns the controller-minted path of the object at path
func (c *Client) resolvePath(ctx context.Context, path string) (string, error) {
	var obj model.Resource
	if err := c.api.Get(ctx, path, nil, &obj); err != nil {
		return "", err
	}
	if obj.Path == "" {
		return path, nil
	}
	return obj.Path, nil
}

// listAll walks every page of the list at path
func listAll[T any](ctx context.Context, api API, path string, query url.Values) ([]T, error) {
	pager := paging.Pager[model.ListResult[T], T]{
		Fetch: func(ctx context.Context, cursor string) (model.ListResult[T], error) {
			q := url.Values{}
			for k, v := range query {
				q[k] = v
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			var page model.ListResult[T]
			err := api.Get(ctx, path, q, &page)
			return page, err
		},
		Cursor:   func(page model.ListResult[T]) string { return page.Cursor },
		Items:    func(page model.ListResult[T]) []T { return page.Results },
		SetItems: func(page model.ListResult[T], items []T) model.ListResult[T] {
			page.Results = items
			return page
		},
	}

	result, err := pager.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	return result.Results, nil
}

func (c *Client) created(kind string, eventType events.EventType, resource string) {
	metrics.ResourcesCreated.WithLabelValues(kind).Inc()
	c.cfg.Events.Publish(events.NewEvent(eventType, resource, kind+" created"))
}

func (c *Client) deleted(kind string, eventType events.EventType, resource string) {
	metrics.ResourcesDeleted.WithLabelValues(kind).Inc()
	if eventType != "" {
		c.cfg.Events.Publish(events.NewEvent(eventType, resource, kind+" deleted"))
	}
}
