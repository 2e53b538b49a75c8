package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRunLocalSingleDraws(t *testing.T) {
	var buf bytes.Buffer
	o := options{n: 5, seed: 3, price: "1,000,000", history: 100}
	if err := runLocal(context.Background(), &buf, o); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"시도 횟수: 5", "총 비용: 5,000,000", "  #5 ", "  #1 "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunLocalAutoSearch(t *testing.T) {
	var buf bytes.Buffer
	o := options{target: "생명력", seed: 9, price: "0", history: 100, trials: 50}
	if err := runLocal(context.Background(), &buf, o); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "찾음: 생명력") || !strings.Contains(out, "총 비용: 0") || !strings.Contains(out, "예상 비용: 0") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunLocalRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	if err := runLocal(context.Background(), &buf, options{n: 1, price: "abc"}); err == nil {
		t.Fatal("bad price should fail")
	}
	if err := runLocal(context.Background(), &buf, options{target: "없는 옵션", price: "1"}); err == nil {
		t.Fatal("unreachable target should fail")
	}
}
