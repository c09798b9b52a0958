package postgres

import (
	"context"
	"database/sql"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

type execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// GetExecutor resolves the transaction carried by the service layer, so
// repository calls made inside WithTx share one transaction and calls
// made outside run directly on the pool.
func GetExecutor(ctx context.Context, db *sql.DB) execer {
	if tx, ok := services.TxFromContext(ctx); ok {
		return tx
	}
	return db
}
