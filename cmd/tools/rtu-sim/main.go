package main

import (
	"log"
	"os"

	"github.com/fisaks/fieldhub/internal/config"
)

func main() {
	configPath := os.Getenv("SIM_CONFIG_PATH")
	if configPath == "" {
		log.Fatal("SIM_CONFIG_PATH not set")
	}
	cfg, err := config.LoadHubConfig(configPath)
	if err != nil {
		log.Fatalf("hub config: %v", err)
	}

	if err := StartRTUSim(cfg); err != nil {
		log.Fatalf("simulator: %v", err)
	}

	log.Fatal(StartRestAPI())
}
