package ca

// Cache is the PV name -> *Channel map (component C11). Lookup is
// idempotent: the first caller for a given name creates the channel and
// every later caller gets the same instance back, mirroring
// cothread.catools's process-wide channel cache — except scoped to one
// Client rather than a package-global singleton, per Design Notes §9's
// "pass the scheduler explicitly" guidance extended to the cache too.
//
// Only ever touched with the scheduler baton held, so a plain map
// suffices (no sync.Map, no mutex) — see Channel's doc comment.
type Cache struct {
	client   *Client
	channels map[string]*Channel
}

func newCache(c *Client) *Cache {
	return &Cache{client: c, channels: make(map[string]*Channel)}
}

// lookup returns the cached channel for name, creating and connecting it
// if this is the first request for that name.
func (cache *Cache) lookup(name string) *Channel {
	if ch, ok := cache.channels[name]; ok {
		return ch
	}
	ch := newChannel(cache.client, name)
	cache.channels[name] = ch
	return ch
}

// purgeAll closes every cached channel, e.g. at Client.Close.
func (cache *Cache) purgeAll() {
	for name, ch := range cache.channels {
		ch.close()
		delete(cache.channels, name)
	}
}
