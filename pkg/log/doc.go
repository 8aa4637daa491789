/*
Package log provides structured logging for ward using zerolog.

The log package wraps zerolog to provide JSON or console structured logging with
component-specific child loggers and helper functions for the severities the
consensus audit's error taxonomy requires: debug, info, error, and fatal.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	auditLog := log.WithComponent("audit").With().Str("node_id", nodeID).Logger()
	auditLog.Info().Msg("audit module running")
	log.Fatal(auditLog, description)

Fatal-level logs in this package never call os.Exit: safety and liveness
violations detected by the audit are reported at fatal severity but must
never terminate the host process, so this package's Fatal helper behaves
like Error with a distinct level tag. zerolog's own Logger.Fatal method
still exits the process and is not used for these reports.
*/
package log
