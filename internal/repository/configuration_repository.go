package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/microcredit-engine/internal/domain"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

const configurationColumns = `id, name, annual_interest_rate, method, created_at, updated_at`

type configurationRepository struct {
	db *sqlx.DB
}

func NewConfigurationRepository(db *sqlx.DB) ConfigurationRepository {
	return &configurationRepository{db: db}
}

func (r *configurationRepository) Create(ctx context.Context, cfg *domain.LoanConfiguration) error {
	query := `
		INSERT INTO loan_configurations (` + configurationColumns + `)
		VALUES (:id, :name, :annual_interest_rate, :method, :created_at, :updated_at)
	`

	_, err := sqlx.NamedExecContext(ctx, executor(ctx, r.db), query, cfg)
	return mapError(err)
}

func (r *configurationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanConfiguration, error) {
	q := executor(ctx, r.db)

	var cfg domain.LoanConfiguration
	err := sqlx.GetContext(ctx, q, &cfg, q.Rebind(`SELECT `+configurationColumns+` FROM loan_configurations WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapConfigurationNotFound(id.String())
		}
		return nil, mapError(err)
	}

	return &cfg, nil
}

func (r *configurationRepository) List(ctx context.Context) ([]*domain.LoanConfiguration, error) {
	q := executor(ctx, r.db)

	configurations := []*domain.LoanConfiguration{}
	if err := sqlx.SelectContext(ctx, q, &configurations, `SELECT `+configurationColumns+` FROM loan_configurations ORDER BY name`); err != nil {
		return nil, mapError(err)
	}

	return configurations, nil
}

func (r *configurationRepository) Update(ctx context.Context, cfg *domain.LoanConfiguration) error {
	q := executor(ctx, r.db)
	query := q.Rebind(`
		UPDATE loan_configurations
		SET name = ?, annual_interest_rate = ?, method = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := q.ExecContext(ctx, query, cfg.Name, cfg.AnnualInterestRate, cfg.Method, cfg.UpdatedAt, cfg.ID)
	if err != nil {
		return mapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if rows == 0 {
		return customError.WrapConfigurationNotFound(cfg.ID.String())
	}
	return nil
}
