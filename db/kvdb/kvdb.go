package kvdb

// DB is the key-value store used to track asynchronous answer jobs. Entries
// are best-effort operational records, not durable state.
type DB interface {
	Set(key string, value string) error
	Get(key string) (string, error)
	Delete(key string) error
	Close() error
}
