package store

import "github.com/jackc/pgx/v5/pgxpool"

// Postgres bundles the table stores over one pool.
type Postgres struct {
	*UserStore
	*StreamStore
	*BetStore
	*ChatStore
	*StatsStore
	*SessionStore
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{
		UserStore:    NewUserStore(db),
		StreamStore:  NewStreamStore(db),
		BetStore:     NewBetStore(db),
		ChatStore:    NewChatStore(db),
		StatsStore:   NewStatsStore(db),
		SessionStore: NewSessionStore(db),
	}
}
