package parallel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	var counter int64
	n := 1000
	seen := make([]int32, n)

	For(n, func(i int) {
		atomic.AddInt64(&counter, 1)
		atomic.AddInt32(&seen[i], 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	order := make([]int, 0, 100)
	For(100, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want sequential", i, v)
		}
	}
}

func TestFor_SmallInput(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	For(cfg.MinChunkSize-1, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(cfg.MinChunkSize-1) {
		t.Errorf("Expected %d, got %d", cfg.MinChunkSize-1, counter)
	}
}

func TestFor_Zero(t *testing.T) {
	For(0, func(_ int) {
		t.Fatal("body must not run")
	}, DefaultConfig())
}

func TestForErr(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 4}

	var ran int64
	err := ForErr(200, func(i int) error {
		atomic.AddInt64(&ran, 1)
		if i == 150 || i == 37 {
			return fmt.Errorf("item %d", i)
		}
		return nil
	}, cfg)

	if err == nil || err.Error() != "item 37" {
		t.Errorf("Expected lowest-index error, got %v", err)
	}
	if ran != 200 {
		t.Errorf("Expected every item to run, got %d", ran)
	}
}

func TestForErr_NoError(t *testing.T) {
	if err := ForErr(10, func(int) error { return nil }, DefaultConfig()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	sentinel := errors.New("boom")
	if err := ForErr(1, func(int) error { return sentinel }, DefaultConfig()); !errors.Is(err, sentinel) {
		t.Errorf("Expected sentinel, got %v", err)
	}
}
