package main

import (
	"flag"

	"github.com/relabs-tech/spacenode/internal/app"
	"github.com/relabs-tech/spacenode/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./spacenode_config.txt", "path to configuration file")
	flag.Parse()

	log.Info("starting spacenode MQTT producer (mock)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMockProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
