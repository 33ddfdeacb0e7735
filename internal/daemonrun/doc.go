// Package daemonrun wires configuration into a running tubelens server.
//
// Build assembles the artifact store, journal, providers, pipeline and API
// service; the CLI reuses it for in-process commands. Run adds the process
// concerns: logging to the log directory, the metrics provider, the pid
// file, journal recovery and the HTTP daemon lifecycle.
package daemonrun
