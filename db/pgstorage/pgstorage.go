package pgstorage

import (
	"context"
	"errors"

	"github.com/0xPolygonHermez/zkevm-xcall/utils/gerror"
	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type execQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresStorage is a key-value store on top of a postgres table
type PostgresStorage struct {
	*pgxpool.Pool
}

// getExecQuerier determines which execQuerier to use, dbTx or the main pgxpool
func (p *PostgresStorage) getExecQuerier(dbTx pgx.Tx) execQuerier {
	if dbTx != nil {
		return &execQuerierWrapper{execQuerier: dbTx}
	}
	return &execQuerierWrapper{execQuerier: p.Pool}
}

// NewPostgresStorage creates a new Storage DB
func NewPostgresStorage(cfg Config) (*PostgresStorage, error) {
	log.Debugf("Create PostgresStorage with Config: host[%s] port[%s] name[%s]", cfg.Host, cfg.Port, cfg.Name)
	config, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		log.Errorf("Unable to parse DB config: %v\n", err)
		return nil, err
	}
	db, err := pgxpool.ConnectConfig(context.Background(), config)
	if err != nil {
		log.Errorf("Unable to connect to database: %v\n", err)
		return nil, err
	}
	return &PostgresStorage{db}, nil
}

// Rollback rollbacks a db transaction.
func (p *PostgresStorage) Rollback(ctx context.Context, dbTx pgx.Tx) error {
	if dbTx != nil {
		return dbTx.Rollback(ctx)
	}
	return gerror.ErrNilDBTransaction
}

// Commit commits a db transaction.
func (p *PostgresStorage) Commit(ctx context.Context, dbTx pgx.Tx) error {
	if dbTx != nil {
		return dbTx.Commit(ctx)
	}
	return gerror.ErrNilDBTransaction
}

// BeginDBTransaction starts a transaction block.
func (p *PostgresStorage) BeginDBTransaction(ctx context.Context) (pgx.Tx, error) {
	return p.Begin(ctx)
}

// Get returns the value stored under key.
func (p *PostgresStorage) Get(ctx context.Context, key []byte, dbTx pgx.Tx) ([]byte, error) {
	const getSQL = "SELECT value FROM xcall.kv WHERE key = $1"
	var value []byte
	e := p.getExecQuerier(dbTx)
	err := e.QueryRow(ctx, getSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gerror.ErrStorageNotFound
	} else if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (p *PostgresStorage) Set(ctx context.Context, key, value []byte, dbTx pgx.Tx) error {
	const setSQL = "INSERT INTO xcall.kv (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value"
	e := p.getExecQuerier(dbTx)
	_, err := e.Exec(ctx, setSQL, key, value)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (p *PostgresStorage) Delete(ctx context.Context, key []byte, dbTx pgx.Tx) error {
	const deleteSQL = "DELETE FROM xcall.kv WHERE key = $1"
	e := p.getExecQuerier(dbTx)
	_, err := e.Exec(ctx, deleteSQL, key)
	return err
}

// CountKeys returns the number of stored keys.
func (p *PostgresStorage) CountKeys(ctx context.Context, dbTx pgx.Tx) (uint64, error) {
	const countSQL = "SELECT count(*) FROM xcall.kv"
	var count uint64
	e := p.getExecQuerier(dbTx)
	err := e.QueryRow(ctx, countSQL).Scan(&count)
	return count, err
}
