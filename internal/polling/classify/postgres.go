package classify

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes after normalization.
const (
	pgConnectionException   = 8000 // 08000
	pgConnectionDoesntExist = 8003 // 08003
	pgConnectionFailure     = 8006 // 08006
	pgAdminShutdown         = 5701 // 57P01, session terminated
	pgCrashShutdown         = 5702 // 57P02
	pgCannotConnectNow      = 5703 // 57P03, instance not available
)

var pgFatal = []int{
	pgConnectionException,
	pgConnectionDoesntExist,
	pgConnectionFailure,
	pgAdminShutdown,
	pgCrashShutdown,
	pgCannotConnectNow,
}

func init() {
	Register(Adapter{Kind: "pgx", Extract: extractPgx, FatalCodes: pgFatal})
	Register(Adapter{Kind: "postgres", Extract: extractPq, FatalCodes: pgFatal})
}

func extractPgx(err error) (string, string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.Message, true
	}
	if connectionLost(err) {
		return "08006", err.Error(), true
	}
	return "", "", false
}

func extractPq(err error) (string, string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Message, true
	}
	if connectionLost(err) {
		return "08006", err.Error(), true
	}
	return "", "", false
}
