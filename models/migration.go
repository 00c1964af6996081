package models

import (
	"log"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&HubspotConnection{},
		&ExportSnapshot{},
		&SyncRun{}, &SyncRecordError{},
		&SyncLog{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
