// Package logging provides leveled logging for the catalog server and the
// scan agent. The level is resolved once from the environment: DEBUG=true
// forces debug output, otherwise LOG_LEVEL selects debug, info, warn, or
// error, defaulting to info.
package logging
