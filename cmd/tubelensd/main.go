// Command tubelensd runs the tubelens HTTP server with the default
// configuration lookup.
package main

import (
	"context"
	"log"

	"tubelens/internal/config"
	"tubelens/internal/daemonrun"
)

var version = "dev"

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{Version: version}); err != nil {
		log.Fatalf("tubelensd: %v", err)
	}
}
