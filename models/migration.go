package models

import (
	"log"

	"github.com/draftforge/contentflow_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Workspace{}, &Project{}, &User{},
		&Article{}, &GenerationRecord{}, &GenerationQueueItem{},
		&CreditBalance{}, &CreditEntry{},
		&Publication{},
		&ContentEventRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
