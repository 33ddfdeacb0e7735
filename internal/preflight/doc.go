// Package preflight checks what an analysis needs before it runs: external
// binaries, writable artifact directories with free space, and provider keys.
//
// RunAll is used by the health endpoint and "tubelens health". CheckProviders
// additionally calls the speech-to-text and detector APIs and is only run on
// request because it spends provider quota.
package preflight
