package cache

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestGetOrLoadMemoizes(t *testing.T) {
	c := NewBatchCache[int64, []string]("subjects", *DefaultCacheConfig(), zerolog.Nop())

	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"S1"}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := c.GetOrLoad(7, load)
		if err != nil {
			t.Fatalf("GetOrLoad() error = %v", err)
		}
		if len(got) != 1 || got[0] != "S1" {
			t.Fatalf("GetOrLoad() = %v", got)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("Len() after Reset = %d", c.Len())
	}
	if _, err := c.GetOrLoad(7, load); err != nil {
		t.Fatalf("GetOrLoad() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("loader called %d times after reset, want 2", calls)
	}
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := NewBatchCache[string, int]("x", *DefaultCacheConfig(), zerolog.Nop())
	boom := errors.New("boom")

	if _, err := c.GetOrLoad("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("an error must not be cached")
	}
}

func TestMaxSizeAndDisabled(t *testing.T) {
	c := NewBatchCache[int, int]("bounded", CacheConfig{Enabled: true, MaxSize: 2}, zerolog.Nop())
	c.Put(1, 1)
	c.Put(2, 2)
	c.Put(3, 3)
	c.Put(1, 10)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if v, _ := c.Get(1); v != 10 {
		t.Errorf("existing keys must still update, got %d", v)
	}

	off := NewBatchCache[int, int]("off", CacheConfig{}, zerolog.Nop())
	off.Put(1, 1)
	if off.Len() != 0 {
		t.Error("a disabled cache must stay empty")
	}
}
