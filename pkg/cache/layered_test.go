package cache

import (
	"context"
	"testing"
	"time"
)

func TestLayeredCachePromotesRemoteHits(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	_ = remote.Set(ctx, "run:1", map[string]int{"trades": 4}, 10*time.Second)

	var got map[string]int
	if err := lc.Get(ctx, "run:1", &got); err != nil || got["trades"] != 4 {
		t.Fatalf("get = %v, %v", got, err)
	}
	ttl, err := lc.local.TTL(ctx, "run:1")
	if err != nil {
		t.Fatalf("value not promoted: %v", err)
	}
	if ttl > 10*time.Second {
		t.Fatalf("local ttl %v exceeds remote ttl", ttl)
	}

	_ = remote.Delete(ctx, "run:1")
	got = nil
	if err := lc.Get(ctx, "run:1", &got); err != nil || got["trades"] != 4 {
		t.Fatalf("local layer should still serve: %v, %v", got, err)
	}
}

func TestLayeredCacheCapsLocalTTL(t *testing.T) {
	lc := NewLayeredCache(NewMemoryCache(), WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	if d := lc.localTTL(24 * time.Hour); d != time.Minute {
		t.Fatalf("localTTL(24h) = %v", d)
	}
	if d := lc.localTTL(0); d != time.Minute {
		t.Fatalf("localTTL(0) = %v", d)
	}
	if d := lc.localTTL(10 * time.Second); d != 10*time.Second {
		t.Fatalf("localTTL(10s) = %v", d)
	}
}

func TestLayeredCacheLocksInRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote)
	defer lc.Close()

	if ok, _ := lc.TryLock(ctx, "job:abc", time.Minute); !ok {
		t.Fatalf("lock should succeed")
	}
	if ok, _ := remote.TryLock(ctx, "job:abc", time.Minute); ok {
		t.Fatalf("remote should see the lock")
	}
	_ = lc.Unlock(ctx, "job:abc")
	if ok, _ := remote.Exists(ctx, "job:abc"); ok {
		t.Fatalf("unlock should clear the remote key")
	}
}
