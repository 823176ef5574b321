package interfaces

import "context"

// KeyValueStoreInterface is the persistent collaborator of the progress store.
// It offers atomic single-key reads and writes only, no compare-and-swap.
type KeyValueStoreInterface interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
