// Command migrate applies or rolls back the Postgres registration schema.
//
//	migrate -action up
//	migrate -action to -version 1
//	migrate -action down
//	migrate -action version
package main

import (
	"context"
	"flag"
	"fmt"

	"ms-registration/internal/config"
	"ms-registration/internal/database"
	"ms-registration/internal/database/migrations"
	"ms-registration/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	action := flag.String("action", "up", "up, down, to or version")
	target := flag.Uint("version", 0, "target version for -action to")
	flag.Parse()

	log := logger.NewLogger("registration-migrate")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	bunDB, err := database.ConnectPostgres(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	defer func() {
		if err := runner.Close(); err != nil {
			log.Error("MIGRATE", err.Error())
		}
	}()

	switch *action {
	case "up":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*target)
	case "version":
	default:
		err = fmt.Errorf("unknown action %q", *action)
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("Schema at version %d (dirty=%t)", version, dirty))
}
