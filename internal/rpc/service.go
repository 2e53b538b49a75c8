package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/holywater-sim/internal/autosearch"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/pricing"
	"github.com/xtding233/holywater-sim/internal/registry"
)

// Service implements SimulatorServer over a session registry.
type Service struct {
	reg *registry.Registry
}

func NewService(reg *registry.Registry) *Service {
	return &Service{reg: reg}
}

func (s *Service) CreateSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, c, err := s.reg.Create(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(snapshotFields(id, c))
}

// Draw performs one manual draw on session_id.
func (s *Service) Draw(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, c, err := s.lookup(in)
	if err != nil {
		return nil, err
	}
	e, err := c.Step(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	entry := optionFields(e.RolledOption)
	entry["attempt"] = e.Attempt
	return toStruct(map[string]any{"entry": entry, "session": snapshotFields(id, c)})
}

func (s *Service) Reset(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, c, err := s.lookup(in)
	if err != nil {
		return nil, err
	}
	c.Reset()
	return toStruct(snapshotFields(id, c))
}

// SetPrice never fails on bad input; accepted reports whether price was taken.
func (s *Service) SetPrice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, c, err := s.lookup(in)
	if err != nil {
		return nil, err
	}
	accepted, err := c.Session().SetUnitPrice(ctx, stringField(in, "price"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"accepted": accepted, "session": snapshotFields(id, c)})
}

func (s *Service) Snapshot(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, c, err := s.lookup(in)
	if err != nil {
		return nil, err
	}
	return toStruct(snapshotFields(id, c))
}

func (s *Service) Cancel(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	_, c, err := s.lookup(in)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"cancelled": c.Cancel()}
	if last, ok := c.Last(); ok {
		out["last"] = resultFields(c, last)
	}
	return toStruct(out)
}

// AutoSearch runs until target matches or the caller goes away.
func (s *Service) AutoSearch(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	_, c, err := s.lookup(in)
	if err != nil {
		return err
	}
	target := stringField(in, "target")

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	var sendErr error
	observe := func(ev autosearch.Event) {
		if sendErr != nil {
			return
		}
		msg, err := structpb.NewStruct(map[string]any{
			"type":      "draw",
			"draw":      ev.Draw,
			"try_count": ev.TryCount,
			"option":    optionFields(ev.Option),
			"matched":   ev.Matched,
		})
		if err == nil {
			err = stream.Send(msg)
		}
		if err != nil {
			sendErr = err
			cancel()
		}
	}

	run, err := c.Start(ctx, target, observe)
	if err != nil {
		return toStatus(err)
	}
	<-run.Done()
	if sendErr != nil {
		logger.Debug("Auto-search stream dropped", "target", target, "error", sendErr)
		return status.FromContextError(context.Canceled).Err()
	}
	msg, err := toStruct(map[string]any{"type": "result", "result": resultFields(c, run.Result())})
	if err != nil {
		return err
	}
	return stream.Send(msg)
}

func (s *Service) lookup(in *structpb.Struct) (string, *autosearch.Controller, error) {
	id := stringField(in, "session_id")
	c, err := s.reg.Get(id)
	if err != nil {
		return "", nil, toStatus(err)
	}
	return id, c, nil
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func optionFields(o enchant.RolledOption) map[string]any {
	return map[string]any{"name": o.Name, "tier": string(o.Tier)}
}

func snapshotFields(id string, c *autosearch.Controller) map[string]any {
	snap := c.Session().Snapshot()
	history := make([]any, 0, len(snap.History))
	for _, e := range snap.History {
		h := optionFields(e.RolledOption)
		h["attempt"] = e.Attempt
		history = append(history, h)
	}
	var current any
	if snap.Current != nil {
		current = optionFields(*snap.Current)
	}
	return map[string]any{
		"id":                 id,
		"try_count":          snap.TryCount,
		"current":            current,
		"history":            history,
		"unit_price":         snap.UnitPrice.String(),
		"total_cost":         snap.TotalCost.String(),
		"total_cost_display": pricing.Format(snap.TotalCost),
		"auto":               c.State().String(),
	}
}

func resultFields(c *autosearch.Controller, res autosearch.Result) map[string]any {
	out := map[string]any{
		"target":     res.Target,
		"state":      res.State.String(),
		"draws":      res.Draws,
		"try_count":  res.TryCount,
		"total_cost": pricing.Cost(res.TryCount, c.Session().UnitPrice()).String(),
	}
	if res.Match != nil {
		out["match"] = optionFields(*res.Match)
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, autosearch.ErrNoRun):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, autosearch.ErrEmptyTarget), errors.Is(err, enchant.ErrUnreachableTarget):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, autosearch.ErrBusy):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, registry.ErrTooManySessions):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		logger.Error("RPC failed", "error", err)
		return status.Error(codes.Internal, err.Error())
	}
}
