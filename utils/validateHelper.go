package utils

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// check if id exists, using workspace_id in WHERE, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, workspaceId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, workspaceId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check if ALL ids exist, using workspace_id in WHERE, return RecordNotFound Error
func ValidateResourcesId[M any, ID comparable](ctx context.Context, workspaceId string, ids []ID) error {
	unqIds := UniqueSlice(ids)

	count, err := ResourceCountWhere[M](ctx, workspaceId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}

	return nil
}

// validate struct by `validate` tags, collapsing field errors into one message
func ValidateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Errorf("invalid %s (%s)", first.Field(), first.Tag())
	}
	return err
}
