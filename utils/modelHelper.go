package utils

import (
	"context"

	"github.com/draftforge/contentflow_backend/config"
)

/* DB fetching */

// fetch model from db
// (ctx's workspace_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, workspaceId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("workspace_id = ?", workspaceId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (ctx's workspace_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, workspaceId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("workspace_id = ?", workspaceId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}

// count rows matching cond
// (workspaceId is used in query's WHERE)
func ResourceCountWhere[T any](ctx context.Context, workspaceId string, cond string, values ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).
		Where("workspace_id = ?", workspaceId).
		Where(cond, values...).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
