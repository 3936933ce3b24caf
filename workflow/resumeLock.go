package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireResumeLock serializes webhook resumption per generation across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that performs the resumption transaction.
func AcquireResumeLock(tx *gorm.DB, generationId int) error {
	lockName := fmt.Sprintf("resume:%d", generationId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire resume lock for generation_id=%d", generationId)
	}
	return nil
}

func ReleaseResumeLock(tx *gorm.DB, generationId int) {
	lockName := fmt.Sprintf("resume:%d", generationId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
