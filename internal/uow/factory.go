package uow

import "database/sql"

// Factory hands out a fresh UnitOfWork per operation so that no transactional
// state is shared between calls.
type Factory struct {
	db   *sql.DB
	opts *sql.TxOptions
}

func NewFactory(db *sql.DB) *Factory {
	return &Factory{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

func (f *Factory) New() *UnitOfWork {
	return New(f.db, f.opts)
}
