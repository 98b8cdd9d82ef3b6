package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// LocationRepository looks up geographic reference data in the target
// store. Reads only.
type LocationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLocationRepository creates a geographic lookup repository.
func NewLocationRepository(db *sql.DB, logger *zap.Logger) *LocationRepository {
	return &LocationRepository{
		db:     db,
		logger: logger,
	}
}

// FindProvinceID matches a lowered province name against loc_estado,
// case-insensitive and partial. First match wins; nil when nothing
// matches.
func (r *LocationRepository) FindProvinceID(ctx context.Context, name string) (*string, error) {
	query := `
		SELECT id
		FROM loc_estado
		WHERE LOWER(nombre) LIKE '%' || $1 || '%'
		LIMIT 1
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, name).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query province: %w", err)
	}

	return &id, nil
}

// FindCityID matches a lowered city name against loc_localidad, scoped
// to the already-resolved province and to rows not owned by any funding
// source. Nil when nothing matches.
func (r *LocationRepository) FindCityID(ctx context.Context, name, provinceID string) (*string, error) {
	query := `
		SELECT id
		FROM loc_localidad
		WHERE LOWER(nombre) LIKE $1
		  AND id_loc_estado = $2
		  AND id_financiadora IS NULL
		LIMIT 1
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, name, provinceID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query city: %w", err)
	}

	return &id, nil
}
