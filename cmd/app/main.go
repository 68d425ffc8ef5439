package main

import (
	"log"

	"github.com/poro/notify-engine/config"
	"github.com/poro/notify-engine/internal/appServer"
)

func main() {
	v, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	cfg, err := config.ParseConfig(v)
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	appServer.NewServer(cfg)
}
