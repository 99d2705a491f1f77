package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences UPSERT: current_val is bumped by
// the increment argument (1 for strict, range size for cached).
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	var increment int64 = 1
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			increment = v
		}
	}

	m.currentValue += increment
	m.calls++
	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := DefaultConfig("LD")
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.GetNextNumber(context.Background(), cfg, DefaultOptions(), period)
	if err != nil {
		t.Fatalf("GetNextNumber failed: %v", err)
	}
	if first != "LD-2026-00001" {
		t.Errorf("unexpected number: %s", first)
	}

	second, err := svc.GetNextNumber(context.Background(), cfg, DefaultOptions(), period)
	if err != nil {
		t.Fatalf("GetNextNumber failed: %v", err)
	}
	if second != "LD-2026-00002" {
		t.Errorf("unexpected number: %s", second)
	}
}

func TestGetNextNumber_CachedAllocatesRanges(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := DefaultConfig("LD")
	opts := &Options{Strategy: StrategyCached, RangeSize: 10}
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 10; i++ {
		got, err := svc.GetNextNumber(context.Background(), cfg, opts, period)
		if err != nil {
			t.Fatalf("GetNextNumber failed: %v", err)
		}
		want := svc.formatNumber(cfg, period, int64(i))
		if got != want {
			t.Errorf("number %d: want %s, got %s", i, want, got)
		}
	}

	// One range of 10 means exactly one DB round-trip.
	if q.calls != 1 {
		t.Errorf("expected 1 DB call for range, got %d", q.calls)
	}

	// The 11th number forces a refill.
	if _, err := svc.GetNextNumber(context.Background(), cfg, opts, period); err != nil {
		t.Fatalf("GetNextNumber failed: %v", err)
	}
	if q.calls != 2 {
		t.Errorf("expected 2 DB calls after refill, got %d", q.calls)
	}
}

func TestGetNextNumber_ConcurrentCached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := DefaultConfig("LD")
	opts := &Options{Strategy: StrategyCached, RangeSize: 100}
	period := time.Now()

	const n = 50
	seen := make(map[string]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.GetNextNumber(context.Background(), cfg, opts, period)
			if err != nil {
				t.Errorf("GetNextNumber failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[num] {
				t.Errorf("duplicate number generated: %s", num)
			}
			seen[num] = true
		}()
	}
	wg.Wait()
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"LD-2026-00042", 42},
		{"LD-00007", 7},
		{"garbage", -1},
	}
	for _, tt := range tests {
		if got := ParseNumber(tt.in); got != tt.want {
			t.Errorf("ParseNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
