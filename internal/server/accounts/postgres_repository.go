package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/dbx"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, account *Account, postcode string) (*Account, error) {

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {

		query :=
			`INSERT INTO accounts (username, email, password_hash)
	         VALUES ($1, $2, $3)
			 RETURNING id, created_at
			 `

		err := tx.QueryRowContext(ctx, query,
			account.Username, account.Email, account.PasswordHash).Scan(&account.ID, &account.CreatedAt)
		if err != nil {
			return fmt.Errorf("error performing sql request: %v", err)
		}

		query =
			`INSERT INTO profiles (account_id, client_code, postcode)
			 VALUES ($1, $2, $3)
			 `

		_, err = tx.ExecContext(ctx, query, account.ID, ProvisionalClientCode(account.ID), postcode)
		if err != nil {
			return fmt.Errorf("error performing sql request: %v", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.getBy(ctx, "username = $1", username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getBy(ctx, "email = $1", email)
}

func (r *PostgresRepository) getBy(ctx context.Context, where string, arg any) (*Account, error) {
	query :=
		`SELECT id, username, email, password_hash, created_at FROM accounts
		 WHERE ` + where

	account := &Account{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&account.ID, &account.Username, &account.Email, &account.PasswordHash, &account.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return account, nil
}

type PostgresProfileRepository struct {
	db *sql.DB
}

func NewPostgresProfileRepository(db *sql.DB) (*PostgresProfileRepository, error) {
	return &PostgresProfileRepository{db: db}, nil
}

func (r *PostgresProfileRepository) Get(ctx context.Context, accountID int64) (*Profile, error) {
	query :=
		`SELECT account_id, client_code, postcode, first_name, last_name, phone, country, city, address, tax_id
		 FROM profiles
		 WHERE account_id = $1
		 `

	p := &Profile{}
	err := r.db.QueryRowContext(ctx, query, accountID).
		Scan(&p.AccountID, &p.ClientCode, &p.Postcode, &p.FirstName, &p.LastName,
			&p.Phone, &p.Country, &p.City, &p.Address, &p.TaxID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return p, nil
}

func (r *PostgresProfileRepository) Update(ctx context.Context, accountID int64, update ProfileUpdate) (*Profile, error) {
	// Nil pointers pass through as NULL, so COALESCE keeps the stored value.
	query :=
		`UPDATE profiles SET
		   first_name = COALESCE($2, first_name),
		   last_name  = COALESCE($3, last_name),
		   phone      = COALESCE($4, phone),
		   country    = COALESCE($5, country),
		   city       = COALESCE($6, city),
		   postcode   = COALESCE($7, postcode),
		   address    = COALESCE($8, address),
		   tax_id     = COALESCE($9, tax_id)
		 WHERE account_id = $1
		 RETURNING account_id, client_code, postcode, first_name, last_name, phone, country, city, address, tax_id
		 `

	p := &Profile{}
	err := r.db.QueryRowContext(ctx, query, accountID,
		update.FirstName, update.LastName, update.Phone, update.Country,
		update.City, update.Postcode, update.Address, update.TaxID).
		Scan(&p.AccountID, &p.ClientCode, &p.Postcode, &p.FirstName, &p.LastName,
			&p.Phone, &p.Country, &p.City, &p.Address, &p.TaxID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return p, nil
}

func (r *PostgresProfileRepository) UpdateClientCode(ctx context.Context, accountID int64, clientCode string) error {
	query := `UPDATE profiles SET client_code = $2 WHERE account_id = $1`

	res, err := r.db.ExecContext(ctx, query, accountID, clientCode)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
