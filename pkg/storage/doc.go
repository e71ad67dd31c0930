/*
Package storage persists controller registrations for nsxctl.

Each zone has at most one provider: the controller endpoint, credentials,
the tier-0 gateway and edge cluster new gateways attach to, and the zone's
teardown settings (retry budget and interval). Records live in a single
bbolt bucket, keyed by zone ID and encoded as JSON:

	<data-dir>/nsxctl.db
	└── providers
	    ├── "1" → {"zone_id":1,"hostname":"nsx-a.example.com",...}
	    └── "2" → {"zone_id":2,"hostname":"nsx-b.example.com",...}

Nothing the controller owns is stored here. Gateways, segments and the rest
are always read live from the controller, so this store can be deleted
without losing network state.

Missing records are reported with errors wrapping ErrNotFound.
*/
package storage
