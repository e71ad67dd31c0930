/*
Package events provides an in-memory event broker for controller changes.

Every successful create issued by the nsx client, and every delete that
actually removed an object, publishes an Event naming the controller object
it touched. Deleting an object that is already gone publishes nothing.
Subscribers receive events
over buffered channels; a slow subscriber misses events rather than
blocking the client.

	nsx.Client ──Publish──▶ eventCh (100) ──▶ broadcast ──▶ Subscriber (50)
	                                                   └──▶ Subscriber (50)

Event types follow "<kind>.<verb>":

	gateway.created      gateway.deleted
	segment.created      segment.deleted
	nat.created          nat.deleted
	service.created      service.deleted
	lb.created           lb.deleted
	dfw.applied          dfw.deleted
	dhcp-relay.created   dhcp-relay.deleted
	teardown.exhausted

Publishing on a nil *Broker is a no-op, so components can hold an optional
broker without checking it. Publishing after Stop drops the event.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for event := range sub {
			log.Info(fmt.Sprintf("%s %s", event.Type, event.Resource))
		}
	}()
*/
package events
