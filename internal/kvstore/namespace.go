package kvstore

import "context"

// Namespaced prefixes every key so several terminals can share one backend
// without seeing each other's records.
func Namespaced(store Store, namespace string) Store {
	return &namespacedStore{store: store, prefix: namespace + ":"}
}

type namespacedStore struct {
	store  Store
	prefix string
}

func (n *namespacedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n *namespacedStore) Set(ctx context.Context, key, value string) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

func (n *namespacedStore) Remove(ctx context.Context, key string) error {
	return n.store.Remove(ctx, n.prefix+key)
}
