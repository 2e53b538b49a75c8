package session

import (
	"context"
	"errors"
	"testing"

	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/pricing"
	"github.com/xtding233/holywater-sim/internal/store"
)

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	e := enchant.NewEngine(enchant.DefaultCatalog(), enchant.NewSeededRNG(1), 0)
	s, err := New(context.Background(), e, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func TestAdvanceCountersAndHistory(t *testing.T) {
	s := newTestSession(t)

	var last enchant.RolledOption
	for k := 1; k <= 150; k++ {
		last = s.Advance()
		snap := s.Snapshot()
		if snap.TryCount != uint64(k) {
			t.Fatalf("after %d advances tryCount=%d", k, snap.TryCount)
		}
		wantLen := k
		if wantLen > DefaultHistoryLimit {
			wantLen = DefaultHistoryLimit
		}
		if len(snap.History) != wantLen {
			t.Fatalf("after %d advances history len=%d", k, len(snap.History))
		}
		if snap.History[0].RolledOption != last || snap.History[0].Attempt != uint64(k) {
			t.Fatalf("history[0]=%+v, want latest %+v at attempt %d", snap.History[0], last, k)
		}
		if snap.Current == nil || *snap.Current != last {
			t.Fatalf("current=%v, want %+v", snap.Current, last)
		}
	}

	// oldest kept entry is attempt 51 once 150 draws happened
	snap := s.Snapshot()
	if got := snap.History[len(snap.History)-1].Attempt; got != 51 {
		t.Fatalf("oldest attempt=%d, want 51", got)
	}
	for i := 1; i < len(snap.History); i++ {
		if snap.History[i-1].Attempt != snap.History[i].Attempt+1 {
			t.Fatalf("history not contiguous at %d", i)
		}
	}
}

func TestHistoryLimitOption(t *testing.T) {
	s := newTestSession(t, WithHistoryLimit(3))
	for i := 0; i < 10; i++ {
		s.Advance()
	}
	if got := len(s.Snapshot().History); got != 3 {
		t.Fatalf("history len=%d, want 3", got)
	}
}

func TestResetIdempotent(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.SetUnitPrice(context.Background(), "2,000"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		s.Advance()
	}

	s.Reset()
	once := s.Snapshot()
	s.Reset()
	twice := s.Snapshot()

	for _, snap := range []Snapshot{once, twice} {
		if snap.TryCount != 0 || snap.Current != nil || len(snap.History) != 0 {
			t.Fatalf("reset state %+v", snap)
		}
		if snap.UnitPrice.Int64() != 2000 {
			t.Fatalf("reset must keep unit price; got %s", snap.UnitPrice)
		}
		if snap.TotalCost.Sign() != 0 {
			t.Fatalf("total cost after reset=%s", snap.TotalCost)
		}
	}
}

func TestTotalCost(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 3; i++ {
		s.Advance()
	}
	if got := s.TotalCost().String(); got != "3000000" {
		t.Fatalf("total cost=%s, want 3000000", got)
	}
}

func TestSetUnitPriceRejectsAndPersists(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	s := newTestSession(t, WithStore(kv))

	if got := s.UnitPrice().String(); got != pricing.DefaultUnitPrice {
		t.Fatalf("default price=%s", got)
	}

	ok, err := s.SetUnitPrice(ctx, "1,234,567")
	if err != nil || !ok {
		t.Fatalf("valid price: ok=%v err=%v", ok, err)
	}
	ok, err = s.SetUnitPrice(ctx, "12abc")
	if err != nil || ok {
		t.Fatalf("invalid price: ok=%v err=%v", ok, err)
	}
	if got := s.UnitPrice().String(); got != "1234567" {
		t.Fatalf("rejected input must keep prior price; got %s", got)
	}
	if v, _, _ := kv.Get(ctx, pricing.PriceKey); v != "1234567" {
		t.Fatalf("persisted=%q", v)
	}

	// a new session picks the persisted price up
	s2 := newTestSession(t, WithStore(kv))
	if got := s2.UnitPrice().String(); got != "1234567" {
		t.Fatalf("second session price=%s", got)
	}
}

func TestCorruptStoredPriceFallsBack(t *testing.T) {
	kv := store.NewMemory()
	_ = kv.Set(context.Background(), pricing.PriceKey, "not a number")
	s := newTestSession(t, WithStore(kv))
	if got := s.UnitPrice().String(); got != pricing.DefaultUnitPrice {
		t.Fatalf("price=%s, want default", got)
	}
}

type failingKV struct{}

var errBroken = errors.New("broken")

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (failingKV) Set(context.Context, string, string) error        { return errBroken }
func (failingKV) Close() error                                     { return nil }

func TestStoreErrors(t *testing.T) {
	e := enchant.NewEngine(enchant.DefaultCatalog(), enchant.NewSeededRNG(1), 0)
	if _, err := New(context.Background(), e, WithStore(&failingKV{})); !errors.Is(err, errBroken) {
		t.Fatalf("expected store error, got %v", err)
	}

	s := newTestSession(t)
	s.kv = &failingKV{}
	ok, err := s.SetUnitPrice(context.Background(), "5")
	if !ok || !errors.Is(err, errBroken) {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}
