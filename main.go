package main

import (
	"flag"
	"log"

	"safeshield/core/appbootstrap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()
	if err := appbootstrap.Run(*configPath); err != nil {
		log.Fatalf("safeshield: %v", err)
	}
}
