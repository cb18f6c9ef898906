package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, "test:"), mr
}

func TestCacheHelper_SetGet(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	type payload struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	}

	in := payload{ID: 7, Title: "midterm"}
	if err := helper.Set(ctx, "exam:7", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out payload
	if err := helper.Get(ctx, "exam:7", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out != in {
		t.Errorf("Get = %+v, want %+v", out, in)
	}
}

func TestCacheHelper_GetMissing(t *testing.T) {
	helper, _ := newTestHelper(t)

	var out map[string]any
	err := helper.Get(context.Background(), "nope", &out)
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("Get missing key = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelper_NilClientDegrades(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	if err := helper.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Errorf("Set with nil client = %v, want nil", err)
	}
	if err := helper.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete with nil client = %v, want nil", err)
	}

	var out string
	if err := helper.Get(ctx, "k", &out); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get with nil client = %v, want ErrCacheNotAvailable", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return "fetched", nil
	}

	var out string
	if err := helper.CacheOrExecute(ctx, "k", &out, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute cold: %v", err)
	}
	if out != "fetched" || calls != 1 {
		t.Errorf("cold path: out=%q calls=%d", out, calls)
	}

	// Warm path must not hit the fetch function.
	if err := helper.Set(ctx, "warm", "cached", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var warm string
	err := helper.CacheOrExecute(ctx, "warm", &warm, time.Minute, func() (interface{}, error) {
		t.Fatal("fetch called on warm path")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("CacheOrExecute warm: %v", err)
	}
	if warm != "cached" {
		t.Errorf("warm path: out=%q, want cached", warm)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := helper.Set(ctx, fmt.Sprintf("attempt:9:answers:%d", i), i, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := helper.Set(ctx, "attempt:10:answers:0", 0, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := helper.InvalidatePattern(ctx, "attempt:9:*"); err != nil {
		t.Fatalf("InvalidatePattern: %v", err)
	}

	var out int
	if err := helper.Get(ctx, "attempt:9:answers:0", &out); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("invalidated key still present, err=%v", err)
	}
	if err := helper.Get(ctx, "attempt:10:answers:0", &out); err != nil {
		t.Errorf("unrelated key was invalidated: %v", err)
	}
}
