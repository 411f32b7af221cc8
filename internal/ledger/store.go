package ledger

// Store defines the ledger operations consumers depend on.
type Store interface {
	Record(p Pass) (int64, error)
	History(deck string, limit int) ([]Pass, error)
	Latest(deck string) (*Pass, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
