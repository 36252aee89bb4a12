// Package repokit names the seams repos are written against. Repos bind to
// a Queryer so the same queries run on the pool or inside a transaction
package repokit

import (
	"taplist/internal/platform/store"
)

// Queryer is the SQL surface a bound repo runs on
type Queryer = store.RowQuerier

// TxRunner is a Queryer that can also run a function transactionally
type TxRunner = store.TxRunner

// Binder builds a repo of type T over a Queryer. Services hold the binder
// and bind per call site, on the pool for reads or the tx inside Tx
type Binder[T any] interface {
	Bind(Queryer) T
}
