// Package main hosts the a2a CLI entrypoint and command graph.
//
// `a2a daemon` runs a chat session in the foreground. The other commands are
// short-lived: `send` hands a line to a running daemon over its control
// socket, `id` and `list` read the identity store, `logs` tails the most
// recent daemon log, and `ticket` and `config` are offline utilities.
//
// Configuration is resolved once per invocation through commandContext.
// Commands annotated with skipConfigLoad never touch the config file.
package main
