package flight

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_Get(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(func(k string) (string, error) {
		calls.Add(1)
		return "result:" + k, nil
	})

	got, err := c.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "result:a" {
		t.Errorf("got %q", got)
	}

	// Second call for the same key hits the cache.
	if _, err := c.Get("a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("work ran %d times, want 1", n)
	}

	if _, err := c.Get("b"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("work ran %d times, want 2", n)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(func(k string) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	if _, err := c.Get("a"); err == nil {
		t.Fatal("expected error from first call")
	}
	got, err := c.Get("a")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("work ran %d times, want 2", n)
	}
}

func TestCache_CoalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	c := NewCache(func(k string) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		return "done", nil
	})

	var wg sync.WaitGroup
	results := make([]string, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.Get("a")
	}()
	<-started

	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Get("a")
		}(i)
	}
	// Give the joiners time to park on the pending job.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("work ran %d times, want 1", n)
	}
	for i, r := range results {
		if r != "done" {
			t.Errorf("caller %d got %q", i, r)
		}
	}
}

func TestCache_Force(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(func(k string) (int, error) {
		return int(calls.Add(1)), nil
	})

	first, _ := c.Get("a")
	second, _ := c.Force("a")
	if first == second {
		t.Errorf("Force should re-run the work: %d == %d", first, second)
	}

	cached, _ := c.Get("a")
	if cached != second {
		t.Errorf("Get after Force should return the forced result: got %d, want %d", cached, second)
	}
}

func TestCache_Expiry(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(func(k string) (int, error) {
		return int(calls.Add(1)), nil
	})
	c.Expiry(10 * time.Millisecond)

	c.Get("a")
	time.Sleep(20 * time.Millisecond)
	c.Get("a")

	if n := calls.Load(); n != 2 {
		t.Errorf("work ran %d times, want 2 after expiry", n)
	}
}
