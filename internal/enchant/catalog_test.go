package enchant

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

func TestDefaultCatalogWeights(t *testing.T) {
	cat := DefaultCatalog()
	if cat.Len() != 31 {
		t.Fatalf("len=%d, want 31", cat.Len())
	}
	if w := cat.TotalWeight(); w < 0.999999 || w > 1.000001 {
		t.Fatalf("total weight=%f", w)
	}
	tw := cat.TierWeights()
	want := map[Tier]float64{TierLegendary: 0.005, TierRare: 0.045, TierUncommon: 0.25, TierCommon: 0.70}
	for tier, p := range want {
		if diff := tw[tier] - p; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("tier %s weight=%f want %f", tier, tw[tier], p)
		}
	}
}

func TestCatalogNamesDistinctAndSorted(t *testing.T) {
	names := DefaultCatalog().Names()
	if len(names) != 21 {
		t.Fatalf("distinct names=%d, want 21: %v", len(names), names)
	}
	seen := map[string]bool{}
	c := collate.New(language.Korean)
	for i, n := range names {
		if seen[n] {
			t.Fatalf("duplicate %q", n)
		}
		seen[n] = true
		if i > 0 && c.CompareString(names[i-1], n) > 0 {
			t.Fatalf("not sorted: %q before %q", names[i-1], n)
		}
	}
	if names[0] != "4대 속성 연금 대미지" {
		t.Fatalf("digits should sort first; got %q", names[0])
	}
}

func TestCatalogReachable(t *testing.T) {
	cat := DefaultCatalog()
	cases := []struct {
		prefix string
		want   bool
	}{
		{"체력", true},
		{"크리티컬 4% 증가", true},
		{"크리티컬 1% 증가", true},
		{"크리티컬 6%", false},
		{"공격 속도 세트 효과 1 증가", true},
		{"최대 대미지 31", false},
		{"없는 옵션", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := cat.Reachable(tc.prefix); got != tc.want {
			t.Errorf("Reachable(%q)=%v, want %v", tc.prefix, got, tc.want)
		}
	}
}

func TestCatalogOutcomes(t *testing.T) {
	out := DefaultCatalog().Outcomes()
	seen := map[string]bool{}
	for _, o := range out {
		if seen[o] {
			t.Fatalf("duplicate outcome %q", o)
		}
		seen[o] = true
	}
	for _, want := range []string{"크리티컬 5% 증가", "생명력 100 증가", "보호 1 증가", "밸런스 1% 증가"} {
		if !seen[want] {
			t.Fatalf("missing outcome %q", want)
		}
	}
}

func TestCatalogTable(t *testing.T) {
	rows := DefaultCatalog().Table()
	byName := map[string]TableRow{}
	for _, r := range rows {
		if r.Tier == TierRare {
			byName[r.Name] = r
		}
	}
	crit := byName["크리티컬"]
	if crit.Range != "4 ~ 5% 증가" || crit.Percent != "1.0000%" {
		t.Fatalf("crit row %+v", crit)
	}
	pierce := byName["피어싱 저항"]
	if pierce.Range != "1증가" || pierce.Percent != "0.5000%" {
		t.Fatalf("pierce row %+v", pierce)
	}
}

func TestNewCatalogValidation(t *testing.T) {
	if _, err := NewCatalog(nil); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("empty catalog: %v", err)
	}
	good := OptionTemplate{Name: "x", Kind: KindStat, Min: 1, Max: 2, Unit: "증가", Tier: TierCommon, Probability: 0.5}
	bad := []OptionTemplate{
		func() OptionTemplate { t := good; t.Min = 3; return t }(),
		func() OptionTemplate { t := good; t.Probability = 0; return t }(),
		func() OptionTemplate { t := good; t.Probability = 1.5; return t }(),
		func() OptionTemplate { t := good; t.Tier = "mythic"; return t }(),
		func() OptionTemplate { t := good; t.Kind = "aura"; return t }(),
		func() OptionTemplate { t := good; t.Name = ""; return t }(),
	}
	for i, b := range bad {
		if _, err := NewCatalog([]OptionTemplate{good, b}); !errors.Is(err, ErrInvalidTemplate) {
			t.Fatalf("case %d: expected ErrInvalidTemplate, got %v", i, err)
		}
	}
	if _, err := NewCatalog([]OptionTemplate{good}); err != nil {
		t.Fatalf("valid catalog: %v", err)
	}
}

func TestRunMonteCarlo(t *testing.T) {
	e := NewEngine(DefaultCatalog(), NewSeededRNG(5), 0)
	st, err := RunMonteCarlo(context.Background(), e, "생명력", 2000)
	if err != nil {
		t.Fatal(err)
	}
	// geometric with p=0.1: mean 10
	if st.Mean < 8.5 || st.Mean > 11.5 {
		t.Fatalf("mean=%f, expected ~10", st.Mean)
	}
	if st.Trials != 2000 || st.P50 > st.P90 || st.P90 > st.P99 {
		t.Fatalf("bad stats %+v", st)
	}

	if _, err := RunMonteCarlo(context.Background(), e, "없는 옵션", 10); !errors.Is(err, ErrUnreachableTarget) {
		t.Fatalf("expected ErrUnreachableTarget, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunMonteCarlo(ctx, e, "생명력", 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
