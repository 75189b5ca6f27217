package services

import (
	"context"

	"github.com/cousinade/cousinade-engine/pkg/database"
)

// TxFunc runs fn inside one database transaction carried by the context.
// Nested calls join the outer transaction. Any error returned by fn rolls it back.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxFunc creates a TxFunc that uses the given database.
func NewTxFunc(db *database.DB) TxFunc {
	return db.InTx
}
