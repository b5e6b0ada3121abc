package dbx

// PoolConfig represents the immutable configuration of a connection pool, set at pool creation.
//
// Fields:
//   - DSN: Connection string of the database (e.g. "postgres://host:5432/db?sslmode=disable").
//   - Homogeneous: When true every session authenticates with User/Password, overriding the DSN credentials.
//     When false the credentials embedded in the DSN are used as they are.
//   - MaxConn / MinConn: Pool size limits, MaxConn >= MinConn >= 0.
//   - User / Password: Optional credentials, used only by homogeneous pools.
//   - Threaded: When false the provider serializes acquire and release calls.
type PoolConfig struct {
	DSN         string `validate:"required"`
	Homogeneous bool
	MaxConn     int32 `validate:"gt=0,gtefield=MinConn"`
	MinConn     int32 `validate:"gte=0"`
	User        string
	Password    string
	Threaded    bool
}
