package valkey

import (
	"context"

	"github.com/valkey-io/valkey-go"
)

// flagKey namespaces a client flag, e.g. prefs:abc123:theme.
func flagKey(clientID, key string) string {
	return "prefs:" + clientID + ":" + key
}

// GetFlag implements ports.FlagStore.
func (c *Cache) GetFlag(ctx context.Context, clientID, key string) (string, bool, error) {
	v, err := c.client.Do(ctx, c.client.B().Get().Key(flagKey(clientID, key)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetFlag implements ports.FlagStore. Flags never expire.
func (c *Cache) SetFlag(ctx context.Context, clientID, key, value string) error {
	return c.client.Do(ctx, c.client.B().Set().Key(flagKey(clientID, key)).Value(value).Build()).Error()
}
