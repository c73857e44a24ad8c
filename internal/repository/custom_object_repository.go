// internal/repository/custom_object_repository.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

// CustomObjectRepositoryInterface is a versioned key/value store grouped by container.
//
// Put with version 0 only creates; any other version must match the stored
// one. A mismatch fails with a PersistenceConflict AppError. Get returns nil
// when the object does not exist.
type CustomObjectRepositoryInterface interface {
	Get(ctx context.Context, container, key string) (*model.CustomObject, error)
	Put(ctx context.Context, container, key string, version int64, value any) (*model.CustomObject, error)
	Delete(ctx context.Context, container, key string) error
	List(ctx context.Context, container string, offset, limit int) (*model.CustomObjectPage, error)
}

type PostgresCustomObjectRepository struct {
	DB *sql.DB
}

var _ CustomObjectRepositoryInterface = (*PostgresCustomObjectRepository)(nil)

// ====================== Reads ======================

func (r *PostgresCustomObjectRepository) Get(ctx context.Context, container, key string) (*model.CustomObject, error) {
	query := `
        SELECT container, key, version, value, created_at, last_modified_at
        FROM custom_objects WHERE container=$1 AND key=$2
    `
	obj := &model.CustomObject{}
	var value []byte
	err := r.DB.QueryRowContext(ctx, query, container, key).Scan(
		&obj.Container, &obj.Key, &obj.Version, &value, &obj.CreatedAt, &obj.LastModifiedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	obj.Value = json.RawMessage(value)
	return obj, nil
}

func (r *PostgresCustomObjectRepository) List(ctx context.Context, container string, offset, limit int) (*model.CustomObjectPage, error) {
	query := `
        SELECT container, key, version, value, created_at, last_modified_at
        FROM custom_objects WHERE container=$1
        ORDER BY created_at DESC, key ASC LIMIT $2 OFFSET $3
    `
	rows, err := r.DB.QueryContext(ctx, query, container, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &model.CustomObjectPage{Results: []*model.CustomObject{}, Offset: offset}
	for rows.Next() {
		obj := &model.CustomObject{}
		var value []byte
		if err := rows.Scan(&obj.Container, &obj.Key, &obj.Version, &value, &obj.CreatedAt, &obj.LastModifiedAt); err != nil {
			return nil, err
		}
		obj.Value = json.RawMessage(value)
		page.Results = append(page.Results, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM custom_objects WHERE container=$1`, container).Scan(&page.Total); err != nil {
		return nil, err
	}
	return page, nil
}

// ====================== Writes ======================

func (r *PostgresCustomObjectRepository) Put(ctx context.Context, container, key string, version int64, value any) (*model.CustomObject, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, appErrors.NewInternal("failed to encode custom object value", err)
	}

	var row *sql.Row
	if version == 0 {
		// Create only
		row = r.DB.QueryRowContext(ctx, `
            INSERT INTO custom_objects (container, key, version, value, created_at, last_modified_at)
            VALUES ($1, $2, 1, $3, NOW(), NOW())
            ON CONFLICT (container, key) DO NOTHING
            RETURNING version, created_at, last_modified_at
        `, container, key, b)
	} else {
		row = r.DB.QueryRowContext(ctx, `
            UPDATE custom_objects
            SET value=$3, version=version+1, last_modified_at=NOW()
            WHERE container=$1 AND key=$2 AND version=$4
            RETURNING version, created_at, last_modified_at
        `, container, key, b, version)
	}

	obj := &model.CustomObject{Container: container, Key: key, Value: b}
	if err := row.Scan(&obj.Version, &obj.CreatedAt, &obj.LastModifiedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewPersistenceConflict(container, key)
		}
		return nil, err
	}
	return obj, nil
}

func (r *PostgresCustomObjectRepository) Delete(ctx context.Context, container, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM custom_objects WHERE container=$1 AND key=$2`, container, key)
	return err
}
