package rpc

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/holywater-sim/internal/autosearch"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/registry"
	"github.com/xtding233/holywater-sim/internal/store"
)

func startServer(t *testing.T, cat *enchant.Catalog) (*Client, *grpc.ClientConn, *registry.Registry) {
	t.Helper()
	seed := uint64(7)
	reg := registry.New(cat, store.NewMemory(), registry.Settings{
		NewRNG: func() enchant.RandomSource {
			seed++
			return enchant.NewSeededRNG(seed)
		},
	})
	srv, err := NewServer("127.0.0.1:0", NewService(reg))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, time.Second) }()

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		reg.Close()
		cancel()
		if err := <-serveErr; err != nil {
			t.Errorf("serve: %v", err)
		}
	})
	return NewClient(conn), conn, reg
}

func rareCatalog(t *testing.T) *enchant.Catalog {
	t.Helper()
	cat, err := enchant.NewCatalog([]enchant.OptionTemplate{
		{Name: "생명력", Kind: enchant.KindStat, Min: 1, Max: 100, Unit: "증가", Tier: enchant.TierCommon, Probability: 1},
		{Name: "배쉬 강화 세트 효과", Kind: enchant.KindSet, Min: 1, Max: 1, Unit: "증가", Tier: enchant.TierLegendary, Probability: 1e-12},
	})
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func req(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func num(s *structpb.Struct, key string) uint64 {
	return uint64(s.GetFields()[key].GetNumberValue())
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func sub(s *structpb.Struct, key string) *structpb.Struct {
	return s.GetFields()[key].GetStructValue()
}

func TestSessionRPCs(t *testing.T) {
	client, _, _ := startServer(t, enchant.DefaultCatalog())
	ctx := callCtx(t)

	snap, err := client.CreateSession(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := str(snap, "id")
	if id == "" || num(snap, "try_count") != 0 || str(snap, "unit_price") != "1000000" {
		t.Fatalf("fresh session %v", snap)
	}
	byID := req(t, map[string]any{"session_id": id})

	for i := 1; i <= 2; i++ {
		out, err := client.Draw(ctx, byID)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if got := num(sub(out, "entry"), "attempt"); got != uint64(i) {
			t.Fatalf("attempt=%d want %d", got, i)
		}
	}

	out, err := client.SetPrice(ctx, req(t, map[string]any{"session_id": id, "price": "2,000"}))
	if err != nil {
		t.Fatal(err)
	}
	if !out.GetFields()["accepted"].GetBoolValue() || str(sub(out, "session"), "total_cost") != "4000" {
		t.Fatalf("set price %v", out)
	}
	out, err = client.SetPrice(ctx, req(t, map[string]any{"session_id": id, "price": "2천"}))
	if err != nil {
		t.Fatal(err)
	}
	if out.GetFields()["accepted"].GetBoolValue() || str(sub(out, "session"), "unit_price") != "2000" {
		t.Fatalf("bad price should be ignored: %v", out)
	}

	snap, err = client.Snapshot(ctx, byID)
	if err != nil {
		t.Fatal(err)
	}
	if num(snap, "try_count") != 2 || len(snap.GetFields()["history"].GetListValue().GetValues()) != 2 {
		t.Fatalf("snapshot %v", snap)
	}

	snap, err = client.Reset(ctx, byID)
	if err != nil {
		t.Fatal(err)
	}
	if num(snap, "try_count") != 0 || str(snap, "unit_price") != "2000" {
		t.Fatalf("after reset %v", snap)
	}
	if _, isNull := snap.GetFields()["current"].GetKind().(*structpb.Value_NullValue); !isNull {
		t.Fatalf("current should be null after reset: %v", snap.GetFields()["current"])
	}
}

func TestUnknownSession(t *testing.T) {
	client, _, _ := startServer(t, enchant.DefaultCatalog())
	ctx := callCtx(t)
	_, err := client.Snapshot(ctx, req(t, map[string]any{"session_id": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.NotFound)
	}
	_, err = client.Draw(ctx, nil)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.NotFound)
	}
}

func TestAutoSearchStream(t *testing.T) {
	client, _, reg := startServer(t, enchant.DefaultCatalog())
	ctx := callCtx(t)
	snap, err := client.CreateSession(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	id := str(snap, "id")

	stream, err := client.AutoSearch(ctx, req(t, map[string]any{"session_id": id, "target": "체력"}))
	if err != nil {
		t.Fatal(err)
	}
	var draws uint64
	var result *structpb.Struct
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		switch str(msg, "type") {
		case "draw":
			draws++
		case "result":
			result = sub(msg, "result")
		}
	}
	if result == nil || str(result, "state") != "matched" {
		t.Fatalf("result %v", result)
	}
	if !strings.HasPrefix(str(sub(result, "match"), "name"), "체력") {
		t.Fatalf("match %v", sub(result, "match"))
	}
	if num(result, "draws") != draws {
		t.Fatalf("draws=%d frames=%d", num(result, "draws"), draws)
	}
	c, _ := reg.Get(id)
	if c.Session().TryCount() != num(result, "try_count") {
		t.Fatalf("tryCount %d, result %v", c.Session().TryCount(), result)
	}
}

func TestAutoSearchRejectsUnreachable(t *testing.T) {
	client, _, _ := startServer(t, enchant.DefaultCatalog())
	ctx := callCtx(t)
	snap, _ := client.CreateSession(ctx, nil)

	stream, err := client.AutoSearch(ctx, req(t, map[string]any{"session_id": str(snap, "id"), "target": "없는 옵션"}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Recv(); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestAutoSearchCancelledByClient(t *testing.T) {
	client, _, reg := startServer(t, rareCatalog(t))
	snap, _ := client.CreateSession(callCtx(t), nil)
	id := str(snap, "id")
	c, _ := reg.Get(id)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.AutoSearch(ctx, req(t, map[string]any{"session_id": id, "target": "배쉬 강화"}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("first event: %v", err)
	}
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for c.State() != autosearch.Idle {
		if time.Now().After(deadline) {
			t.Fatal("run survived client cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if res, ok := c.Last(); !ok || res.State != autosearch.Cancelled {
		t.Fatalf("last %+v ok=%v", res, ok)
	}
}

func TestCancelRPC(t *testing.T) {
	client, _, reg := startServer(t, rareCatalog(t))
	ctx := callCtx(t)
	snap, _ := client.CreateSession(ctx, nil)
	id := str(snap, "id")
	c, _ := reg.Get(id)

	if _, err := c.Start(context.Background(), "배쉬 강화", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Draw(ctx, req(t, map[string]any{"session_id": id})); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("draw during run: code = %v", status.Code(err))
	}
	out, err := client.Cancel(ctx, req(t, map[string]any{"session_id": id}))
	if err != nil {
		t.Fatal(err)
	}
	if !out.GetFields()["cancelled"].GetBoolValue() || str(sub(out, "last"), "state") != "cancelled" {
		t.Fatalf("cancel %v", out)
	}
}

func TestHealthServing(t *testing.T) {
	_, conn, _ := startServer(t, enchant.DefaultCatalog())
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(callCtx(t), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status %v", resp.GetStatus())
	}
}

func TestToStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{registry.ErrNotFound, codes.NotFound},
		{autosearch.ErrEmptyTarget, codes.InvalidArgument},
		{autosearch.ErrBusy, codes.FailedPrecondition},
		{registry.ErrTooManySessions, codes.ResourceExhausted},
		{context.Canceled, codes.Canceled},
	}
	for _, tt := range tests {
		if got := status.Code(toStatus(tt.err)); got != tt.want {
			t.Errorf("toStatus(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
