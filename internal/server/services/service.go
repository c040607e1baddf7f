// Package services contains the server-side business logic: credential
// checks, the access gate, the account lifecycle, email verification and
// profile pictures.
package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

// base carries what every service needs to reach the store.
type base struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	rec         metrics.Recorder
	now         func() time.Time
}

// Option customises a service's ambient dependencies.
type Option func(*base)

func WithLogger(l logging.Logger) Option {
	return func(b *base) { b.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(b *base) { b.rec = r }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func newBase(db *sql.DB, m repomanager.RepositoryManager, module string, opts ...Option) base {
	b := base{
		db:          db,
		repomanager: m,
		log:         logging.NewNop(),
		rec:         metrics.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With("module", module)
	return b
}

// conn returns the pool wrapped so statement timings reach the recorder.
func (b *base) conn() dbx.DBTX {
	return b.observe(b.db)
}

func (b *base) observe(db dbx.DBTX) dbx.DBTX {
	return dbx.Observe(db, func(op string, d time.Duration, err error) {
		b.rec.ObserveDependency(metrics.KindDB, op, d, err)
	})
}

func internal(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, what, err)
}
