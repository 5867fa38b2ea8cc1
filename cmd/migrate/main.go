// Command migrate applies every pending SQL migration and exits; a thin
// wrapper around db.Migrate for use in deploy pipelines and local setup.
package main

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/config"
	"github.com/iota-uz/logtide/internal/infrastructure/db"
	"github.com/iota-uz/logtide/internal/logging"
)

func main() {
	cfg := config.Use()
	log := logging.New(cfg.Environment == config.Production)

	n, err := db.Migrate(cfg.DB.ConnString(), log)
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.WithFields(logrus.Fields{"applied": n}).Info("migrations complete")
}
