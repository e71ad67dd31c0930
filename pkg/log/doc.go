/*
Package log provides structured logging for nsxctl using zerolog.

A single global Logger is configured once with Init and shared by every
package. Components derive child loggers carrying the identifiers they work
on, so related lines can be filtered together:

	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true})

	logger := log.WithGateway("D1-A2-Z1-V4")
	logger.Info().Str("tier0", "t0").Msg("Gateway created")

Console output is the default; JSON output suits log shippers. Levels are
global: debug shows every controller lookup, info shows created and deleted
objects, warn shows tolerated absences and error shows failed calls.

Child loggers are values whose event methods have pointer receivers, so
assign them before use.
*/
package log
