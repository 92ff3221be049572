package redis

import (
	"context"
	"os"
	"testing"
	"time"
)

func testConnect(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("requires REDIS_URL")
	}
	c, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	c := testConnect(t)
	ctx := context.Background()
	key := "test:" + t.Name()

	if _, found, err := c.Get(ctx, key); found || err != nil {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}
	if err := c.Set(ctx, key, []byte("v1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, found, err := c.Get(ctx, key)
	if err != nil || !found || string(val) != "v1" {
		t.Fatalf("Get = %q, %v, %v", val, found, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, key); found {
		t.Fatal("expected miss after Delete")
	}
}

func TestCache_TTL(t *testing.T) {
	c := testConnect(t)
	ctx := context.Background()
	key := "test:" + t.Name()

	if err := c.Set(ctx, key, []byte("x"), 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if _, found, _ := c.Get(ctx, key); found {
		t.Fatal("expected key to expire")
	}
}
