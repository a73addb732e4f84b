package database

import (
	"database/sql"
)

type PgCoordRepository struct {
	conn *sql.DB
}

func NewPgCoordRepository(dsn string) (*PgCoordRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgCoordRepository{conn: db}, nil
}

func (db *PgCoordRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
