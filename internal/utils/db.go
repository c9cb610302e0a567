package utils

import (
	"database/sql"

	_ "github.com/lib/pq"
)

func BuildPostgresDSNFromEnv() string {
	user := EnvString("PG_USER", "postgres")
	dsn := "postgres://" + user
	if pass := EnvString("PG_PASSWORD", ""); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + EnvString("PG_HOST", "localhost") + ":" + EnvString("PG_PORT", "5432") +
		"/" + EnvString("PG_DB", "floormap") + "?sslmode=" + EnvString("PG_SSLMODE", "disable")
	return dsn
}

func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(EnvInt("PG_MAX_OPEN_CONNS", 20))
	db.SetMaxIdleConns(EnvInt("PG_MAX_IDLE_CONNS", 10))
	return db, nil
}
