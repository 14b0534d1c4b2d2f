package places

import (
	"errors"
	"sync/atomic"
)

// ErrNoCredentials indicates the credential pool is empty. Fatal: there is
// nothing to retry with.
var ErrNoCredentials = errors.New("no places API credentials configured")

// KeyRing round-robins a pool of upstream API credentials so retries and
// concurrent callers spread load across keys.
type KeyRing struct {
	keys []string
	next atomic.Uint64
}

// NewKeyRing builds a rotator over the given credential pool.
func NewKeyRing(keys []string) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	return &KeyRing{keys: keys}, nil
}

// Next returns the next credential, wrapping around the pool.
func (k *KeyRing) Next() string {
	n := k.next.Add(1) - 1
	return k.keys[n%uint64(len(k.keys))]
}

// Len reports the pool size.
func (k *KeyRing) Len() int {
	return len(k.keys)
}
