// Package main hosts the tubelens CLI.
//
// Commands operate directly on the local artifact store and journal, so
// results written by a running server are visible without going through
// HTTP. `tubelens serve` runs the server in the foreground.
package main
