package modkit

import (
	"taplist/internal/modkit/repokit"
	"taplist/internal/platform/config"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/store"
)

// Deps is the dependency bundle the binaries thread into every module.
// CH is nil when no ClickHouse DSN is configured
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}
