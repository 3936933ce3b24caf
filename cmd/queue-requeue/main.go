// queue-requeue returns failed generation queue items to queued so the next
// drain sweep picks them up. With -id it requeues one item, without it every
// failed item.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/queue-requeue [-id N]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
)

func main() {
	id := flag.Int("id", 0, "requeue a single queue item by id")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := utils.SetSkipTenantScopeInContext(context.Background(), true)

	if *id > 0 {
		item, err := models.RequeueFailedItem(ctx, *id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to requeue item %d: %v\n", *id, err)
			os.Exit(1)
		}
		fmt.Printf("Requeued item %d (article %d, position %d)\n", item.ID, item.ArticleId, item.QueuePosition)
		return
	}

	var failed []models.GenerationQueueItem
	if err := db.WithContext(ctx).
		Where("status = ?", models.QueueItemStatusFailed).
		Order("id ASC").
		Find(&failed).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list failed items: %v\n", err)
		os.Exit(1)
	}
	if len(failed) == 0 {
		fmt.Println("No failed queue items.")
		return
	}

	requeued := 0
	for _, item := range failed {
		if _, err := models.RequeueFailedItem(ctx, item.ID); err != nil {
			fmt.Fprintf(os.Stderr, "item %d: %v\n", item.ID, err)
			continue
		}
		requeued++
	}
	fmt.Printf("Requeued %d of %d failed items\n", requeued, len(failed))
}
