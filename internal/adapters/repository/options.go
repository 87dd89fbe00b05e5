package repository

// defaultMaxConns caps the pgx pool for the small operator-plus-teams
// audience this server expects.
const defaultMaxConns = 8

type postgresOptions struct {
	maxConns int32
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*postgresOptions)

// WithMaxConns sets the connection pool ceiling.
func WithMaxConns(n int32) PostgresOption {
	return func(o *postgresOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}
