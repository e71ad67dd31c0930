package nsx

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strings"

	"github.com/cuemby/nsx-orchestrator/pkg/events"
	"github.com/cuemby/nsx-orchestrator/pkg/naming"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"golang.org/x/sync/errgroup"
)

const kindService = "service"

const (
	protocolICMP   = "ICMP"
	protocolICMPv4 = "ICMPv4"
)

// normalizeProtocol upper-cases a protocol and maps ICMP to the controller's
// ICMPv4
func normalizeProtocol(protocol string) string {
	protocol = strings.ToUpper(protocol)
	if protocol == protocolICMP {
		return protocolICMPv4
	}
	return protocol
}

// serviceMatch describes the single entry a reusable service must carry
type serviceMatch struct {
	protocol string
	port     string
	icmpType int
}

func (m serviceMatch) matches(svc model.Service) bool {
	if !svc.IsDefault || len(svc.ServiceEntries) != 1 {
		return false
	}
	entry := svc.ServiceEntries[0]

	if m.protocol == protocolICMPv4 {
		return entry.ResourceType == model.ResourceICMPTypeEntry &&
			entry.Protocol == protocolICMPv4 &&
			entry.ICMPType != nil && *entry.ICMPType == m.icmpType
	}

	if m.port == "" {
		return false
	}
	return entry.ResourceType == model.ResourceL4PortSetEntry &&
		strings.EqualFold(entry.L4Protocol, m.protocol) &&
		len(entry.DestinationPorts) == 1 && entry.DestinationPorts[0] == m.port
}

// ResolveService returns the path of a service for a port and protocol. A
// default service with exactly that single entry is reused; otherwise the
// service named after ruleName is reused or created. ICMP services match on
// type only and carry no port.
func (c *Client) ResolveService(ctx context.Context, ruleName, port, protocol string, icmpType, icmpCode int) (string, error) {
	match := serviceMatch{
		protocol: normalizeProtocol(protocol),
		port:     port,
		icmpType: icmpType,
	}

	path, err := c.findDefaultService(ctx, match)
	if err != nil {
		return "", err
	}
	if path != "" {
		c.logger.Debug().
			Str("rule", ruleName).
			Str("service", path).
			Msg("Reusing default service")
		return path, nil
	}

	name := naming.ServiceName(ruleName, port, protocol, icmpType, icmpCode)
	servicePath := model.ServicePath(name)

	var existing model.Service
	found, err := c.lookup(ctx, servicePath, &existing)
	if err != nil {
		return "", fmt.Errorf("failed to look up service %s: %w", name, err)
	}
	if found {
		return pathOr(existing.Path, servicePath), nil
	}

	entryName := naming.ServiceEntryName(ruleName, port, protocol)
	entry := model.ServiceEntry{
		Resource: model.Resource{
			ID:          entryName,
			DisplayName: entryName,
		},
	}
	if match.protocol == protocolICMPv4 {
		entry.ResourceType = model.ResourceICMPTypeEntry
		entry.Protocol = protocolICMPv4
		if icmpType >= 0 {
			t := icmpType
			entry.ICMPType = &t
		}
	} else {
		entry.ResourceType = model.ResourceL4PortSetEntry
		entry.L4Protocol = match.protocol
		if port != "" {
			entry.DestinationPorts = []string{port}
		}
	}

	service := model.Service{
		Resource: model.Resource{
			ID:           name,
			DisplayName:  name,
			ResourceType: model.ResourceService,
		},
		ServiceEntries: []model.ServiceEntry{entry},
	}
	if err := c.api.Patch(ctx, servicePath, service); err != nil {
		return "", fmt.Errorf("failed to create service %s: %w", name, err)
	}
	c.created(kindService, events.EventServiceCreated, name)

	path, err = c.resolvePath(ctx, servicePath)
	if err != nil {
		return "", fmt.Errorf("failed to read back service %s: %w", name, err)
	}
	return path, nil
}

// findDefaultService scans the controller's default services for one
// matching exactly. The scan is fanned out over the in-memory list; when
// several services match the first one listed wins.
func (c *Client) findDefaultService(ctx context.Context, match serviceMatch) (string, error) {
	services, err := listAll[model.Service](ctx, c.api, model.ServicesPath, url.Values{"default_service": {"true"}})
	if err != nil {
		return "", err
	}

	hits := make([]bool, len(services))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range services {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hits[i] = match.matches(services[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("failed to scan default services: %w", err)
	}

	for i, hit := range hits {
		if hit {
			return pathOr(services[i].Path, model.ServicePath(services[i].ID)), nil
		}
	}
	return "", nil
}

// DeleteService removes a service unless it is a default service or already
// marked for deletion. A missing service is not an error.
func (c *Client) DeleteService(ctx context.Context, id string) error {
	path := model.ServicePath(id)

	var svc model.Service
	found, err := c.lookup(ctx, path, &svc)
	if err != nil {
		return fmt.Errorf("failed to look up service %s: %w", id, err)
	}
	if !found {
		return nil
	}
	if svc.IsDefault || svc.MarkedForDelete {
		c.logger.Debug().
			Str("service", id).
			Bool("default", svc.IsDefault).
			Bool("marked_for_delete", svc.MarkedForDelete).
			Msg("Skipping delete of protected service")
		return nil
	}

	if err := c.remove(ctx, path, kindService, events.EventServiceDeleted, id); err != nil {
		return fmt.Errorf("failed to delete service %s: %w", id, err)
	}
	return nil
}

func pathOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return path
}

// serviceID returns the ID of a service from its path
func serviceID(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}
