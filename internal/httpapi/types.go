package httpapi

import (
	"github.com/xtding233/holywater-sim/internal/autosearch"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/pricing"
	"github.com/xtding233/holywater-sim/internal/session"
)

// Big integers travel as decimal strings; *_display fields are grouped for people.

type errResp struct {
	Err string `json:"err"`
}

type catalogResp struct {
	Options     []enchant.TableRow `json:"options"`
	TotalWeight float64            `json:"total_weight"`
}

type namesResp struct {
	Names []string `json:"names"`
}

type outcomesResp struct {
	Outcomes []string `json:"outcomes"`
}

type tiersResp struct {
	Draws    int                      `json:"draws"`
	Expected map[enchant.Tier]float64 `json:"expected"`
	Observed map[enchant.Tier]float64 `json:"observed"`
}

type estimateResp struct {
	Target              string        `json:"target"`
	Stats               enchant.Stats `json:"stats"`
	UnitPrice           string        `json:"unit_price"`
	ExpectedCost        string        `json:"expected_cost"`
	ExpectedCostDisplay string        `json:"expected_cost_display"`
	AffordableTries     string        `json:"affordable_tries,omitempty"`
	WithinBudget        float64       `json:"within_budget,omitempty"`
}

type snapshotResp struct {
	ID               string                `json:"id"`
	TryCount         uint64                `json:"try_count"`
	Current          *enchant.RolledOption `json:"current"`
	History          []session.Entry       `json:"history"`
	UnitPrice        string                `json:"unit_price"`
	TotalCost        string                `json:"total_cost"`
	TotalCostDisplay string                `json:"total_cost_display"`
	Auto             string                `json:"auto"`
	Stepping         bool                  `json:"stepping"`
}

type drawResp struct {
	Entry   session.Entry `json:"entry"`
	Session snapshotResp  `json:"session"`
}

type priceReq struct {
	Price string `json:"price"`
}

type priceResp struct {
	Accepted bool         `json:"accepted"`
	Session  snapshotResp `json:"session"`
}

type autoReq struct {
	Target string `json:"target"`
}

type resultResp struct {
	Target    string                `json:"target"`
	State     string                `json:"state"`
	Draws     uint64                `json:"draws"`
	TryCount  uint64                `json:"try_count"`
	Match     *enchant.RolledOption `json:"match,omitempty"`
	TotalCost string                `json:"total_cost"`
}

type autoStatusResp struct {
	State    string      `json:"state"`
	Stepping bool        `json:"stepping,omitempty"`
	Last     *resultResp `json:"last,omitempty"`
}

type cancelResp struct {
	Cancelled bool        `json:"cancelled"`
	Last      *resultResp `json:"last,omitempty"`
}

// streamFrame is one WebSocket message of an auto-search stream.
type streamFrame struct {
	Type     string                `json:"type"` // "draw" | "result" | "error"
	Draw     uint64                `json:"draw,omitempty"`
	TryCount uint64                `json:"try_count,omitempty"`
	Option   *enchant.RolledOption `json:"option,omitempty"`
	Matched  bool                  `json:"matched,omitempty"`
	Result   *resultResp           `json:"result,omitempty"`
	Err      string                `json:"err,omitempty"`
}

func snapshotOf(id string, c *autosearch.Controller) snapshotResp {
	snap := c.Session().Snapshot()
	history := snap.History
	if history == nil {
		history = []session.Entry{}
	}
	return snapshotResp{
		ID:               id,
		TryCount:         snap.TryCount,
		Current:          snap.Current,
		History:          history,
		UnitPrice:        snap.UnitPrice.String(),
		TotalCost:        snap.TotalCost.String(),
		TotalCostDisplay: pricing.Format(snap.TotalCost),
		Auto:             c.State().String(),
		Stepping:         c.Stepping(),
	}
}

func resultOf(c *autosearch.Controller, res autosearch.Result) *resultResp {
	return &resultResp{
		Target:    res.Target,
		State:     res.State.String(),
		Draws:     res.Draws,
		TryCount:  res.TryCount,
		Match:     res.Match,
		TotalCost: pricing.Cost(res.TryCount, c.Session().UnitPrice()).String(),
	}
}
