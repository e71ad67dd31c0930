/*
Package nsx provisions tenant networking on a controller's declarative policy
API.

A Client maps orchestration resources onto controller objects:

	network or VPC   -> tier-1 gateway bound to the tier-0 edge cluster
	network tier     -> segment plus a group containing only the segment
	static NAT       -> DNAT rule on the gateway
	port forward     -> DNAT rule plus a service for the public port
	source NAT       -> SNAT rule on the gateway
	LB rule          -> monitor, pool, virtual server on the gateway's LB
	ACL rules        -> security policy scoped to the segment's group
	DHCP relay       -> relay config attached to the segment

Every object ID comes from package naming, so creates read the object first
and skip it when it exists, and deletes treat a missing object as already
gone. Repeating any call converges on the same state.

Deleting a segment waits for its ports to detach. The wait is bounded by the
zone's retry settings:

	client := nsx.NewClient(api, nsx.Config{
		Tier0Gateway: "t0",
		EdgeCluster:  "edge-cluster-1",
		Settings:     types.ZoneSettings{APIRetries: 30, APIRetryInterval: 60},
	})
	if err := client.DeleteSegment(ctx, ref); errors.Is(err, reconciler.ErrExhausted) {
		// ports are still attached, retry later
	}

Objects created on behalf of a single rule (monitor profiles, per-rule
services) are tagged or named after their owner and removed with it. Default
services shipped by the controller are never deleted.
*/
package nsx
