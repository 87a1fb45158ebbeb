package main

import (
	"flag"
	"log"
	"log/slog"

	"driftchat/internal/config"
	"driftchat/internal/util"
	"driftchat/pkg/store"
)

func main() {
	schemaPath := flag.String("schema", "", "optional schema.sql to apply after auto-migration")
	configPath := flag.String("config", config.ConfigPath, "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	slog.Info("auto-migration complete")

	if *schemaPath != "" {
		if err := dataStore.ApplySchemaFile(*schemaPath); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
		slog.Info("schema applied", "path", *schemaPath)
	}
}
