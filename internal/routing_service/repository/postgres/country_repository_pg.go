package postgres

import (
	"context"
	"fmt"
	"log/slog"
)

// PgXCountryRepository reads calling codes from tbl_country_codes.
type PgXCountryRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgXCountryRepository(db DBTX, logger *slog.Logger) *PgXCountryRepository {
	return &PgXCountryRepository{db: db, logger: logger.With("component", "country_repository_pg")}
}

// ListCountryCodes returns the calling codes of active countries.
func (r *PgXCountryRepository) ListCountryCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT country_code FROM tbl_country_codes WHERE is_active = TRUE`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying country codes", "error", err)
		return nil, fmt.Errorf("querying country codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning country code row", "error", err)
			continue
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating country code rows: %w", err)
	}
	return codes, nil
}
