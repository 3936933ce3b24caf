package models

import "gorm.io/gorm/clause"

func clauseForUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// clauseSkipLocked lets competing workers pass over rows another worker
// already holds instead of blocking on them.
func clauseSkipLocked() clause.Locking {
	return clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}
}
