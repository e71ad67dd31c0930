/*
Package health probes whether a controller can be managed.

Two checks run in order: a TCP connect to the API port, then an
authenticated read of /infra/sites. Run stops at the first failure.

	report := health.Run(ctx, provider.Hostname,
		health.NewTCPChecker(address),
		health.NewAPIChecker(api),
	)
	if !report.Healthy() {
		...
	}
*/
package health
