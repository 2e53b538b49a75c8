// Command simulate runs holy water draws from the terminal, either in-process or
// against a running server over gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/holywater-sim/internal/autosearch"
	"github.com/xtding233/holywater-sim/internal/config"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/pricing"
	"github.com/xtding233/holywater-sim/internal/rpc"
	"github.com/xtding233/holywater-sim/internal/session"
)

type options struct {
	target  string
	n       int
	seed    uint64
	price   string
	trials  int
	history int
	catalog string
	remote  string
	verbose bool
}

func main() {
	var o options
	flag.StringVar(&o.target, "target", "", "auto-search until an outcome starts with this prefix")
	flag.IntVar(&o.n, "n", 1, "number of single draws when no -target is given")
	flag.Uint64Var(&o.seed, "seed", 0, "random seed (0 = crypto randomness)")
	flag.StringVar(&o.price, "price", pricing.DefaultUnitPrice, "unit price of one holy water")
	flag.IntVar(&o.trials, "trials", 0, "with -target, also estimate draws-to-target over this many simulated searches")
	flag.IntVar(&o.history, "history", session.DefaultHistoryLimit, "history lines to keep")
	flag.StringVar(&o.catalog, "catalog", "", "option table YAML (default: built-in table)")
	flag.StringVar(&o.remote, "remote", "", "gRPC address of a running server")
	flag.BoolVar(&o.verbose, "v", false, "print every draw")
	flag.Parse()

	logger.SetOutput(os.Stderr, "WARN")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if o.remote != "" {
		err = runRemote(ctx, os.Stdout, o)
	} else {
		err = runLocal(ctx, os.Stdout, o)
	}
	if err != nil {
		config.Exitf("simulate: %v", err)
	}
}

func runLocal(ctx context.Context, w io.Writer, o options) error {
	cat, err := config.LoadCatalog(o.catalog)
	if err != nil {
		return err
	}
	var rng enchant.RandomSource
	if o.seed != 0 {
		rng = enchant.NewSeededRNG(o.seed)
	}
	sess, err := session.New(ctx, enchant.NewEngine(cat, rng, enchant.DefaultSkew), session.WithHistoryLimit(o.history))
	if err != nil {
		return err
	}
	if ok, _ := sess.SetUnitPrice(ctx, o.price); !ok {
		return fmt.Errorf("invalid price %q", o.price)
	}

	if o.target == "" {
		for i := 0; i < o.n; i++ {
			e := sess.AdvanceEntry()
			if o.verbose {
				fmt.Fprintf(w, "#%d %s [%s]\n", e.Attempt, e.Name, e.Tier)
			}
		}
		printSnapshot(w, sess.Snapshot())
		return nil
	}

	c := autosearch.New(sess, 0)
	var observe func(autosearch.Event)
	if o.verbose {
		observe = func(ev autosearch.Event) {
			fmt.Fprintf(w, "#%d %s [%s]\n", ev.TryCount, ev.Option.Name, ev.Option.Tier)
		}
	}
	run, err := c.Start(ctx, o.target, observe)
	if err != nil {
		return err
	}
	<-run.Done()
	res := run.Result()
	if res.State == autosearch.Matched {
		fmt.Fprintf(w, "찾음: %s (%d회)\n", res.Match.Name, res.Draws)
	} else {
		fmt.Fprintf(w, "중단됨 (%d회)\n", res.Draws)
	}
	printSnapshot(w, sess.Snapshot())

	if o.trials > 0 {
		stats, err := enchant.RunMonteCarlo(ctx, enchant.NewEngine(cat, rng, enchant.DefaultSkew), o.target, o.trials)
		if err != nil {
			return err
		}
		expected := pricing.ExpectedCost(stats.Mean, sess.UnitPrice())
		fmt.Fprintf(w, "예상 시도: 평균 %.1f, 중앙값 %.0f, 90%% %.0f, 99%% %.0f (%d회 시뮬레이션)\n",
			stats.Mean, stats.P50, stats.P90, stats.P99, stats.Trials)
		fmt.Fprintf(w, "예상 비용: %s\n", pricing.Format(expected))
	}
	return nil
}

func printSnapshot(w io.Writer, snap session.Snapshot) {
	fmt.Fprintln(w, "기록:")
	for _, e := range snap.History {
		fmt.Fprintf(w, "  #%d %s [%s]\n", e.Attempt, e.Name, e.Tier)
	}
	fmt.Fprintf(w, "시도 횟수: %d\n", snap.TryCount)
	fmt.Fprintf(w, "총 비용: %s\n", pricing.Format(snap.TotalCost))
}

func runRemote(ctx context.Context, w io.Writer, o options) error {
	conn, err := grpc.NewClient(o.remote, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", o.remote, err)
	}
	defer conn.Close()
	client := rpc.NewClient(conn)

	snap, err := client.CreateSession(ctx, nil)
	if err != nil {
		return err
	}
	id := snap.GetFields()["id"].GetStringValue()
	byID := func(extra map[string]any) (*structpb.Struct, error) {
		m := map[string]any{"session_id": id}
		for k, v := range extra {
			m[k] = v
		}
		return structpb.NewStruct(m)
	}

	in, err := byID(map[string]any{"price": o.price})
	if err != nil {
		return err
	}
	out, err := client.SetPrice(ctx, in)
	if err != nil {
		return err
	}
	if !out.GetFields()["accepted"].GetBoolValue() {
		return fmt.Errorf("invalid price %q", o.price)
	}

	if o.target == "" {
		in, _ := byID(nil)
		for i := 0; i < o.n; i++ {
			if _, err := client.Draw(ctx, in); err != nil {
				return err
			}
		}
	} else {
		in, err := byID(map[string]any{"target": o.target})
		if err != nil {
			return err
		}
		stream, err := client.AutoSearch(ctx, in)
		if err != nil {
			return err
		}
		for {
			msg, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			f := msg.GetFields()
			switch f["type"].GetStringValue() {
			case "draw":
				if o.verbose {
					opt := f["option"].GetStructValue().GetFields()
					fmt.Fprintf(w, "#%.0f %s [%s]\n", f["try_count"].GetNumberValue(),
						opt["name"].GetStringValue(), opt["tier"].GetStringValue())
				}
			case "result":
				res := f["result"].GetStructValue().GetFields()
				fmt.Fprintf(w, "%s: %s (%.0f회)\n", res["state"].GetStringValue(),
					res["match"].GetStructValue().GetFields()["name"].GetStringValue(), res["draws"].GetNumberValue())
			}
		}
	}

	in, _ = byID(nil)
	snap, err = client.Snapshot(ctx, in)
	if err != nil {
		return err
	}
	f := snap.GetFields()
	fmt.Fprintln(w, "기록:")
	for _, v := range f["history"].GetListValue().GetValues() {
		h := v.GetStructValue().GetFields()
		fmt.Fprintf(w, "  #%.0f %s [%s]\n", h["attempt"].GetNumberValue(), h["name"].GetStringValue(), h["tier"].GetStringValue())
	}
	fmt.Fprintf(w, "시도 횟수: %.0f\n", f["try_count"].GetNumberValue())
	fmt.Fprintf(w, "총 비용: %s\n", f["total_cost_display"].GetStringValue())
	return nil
}
