// Package alloc implements the allocation engine: for one pending shipment
// it ranks internal vehicles and external carrier contracts by a weighted
// sum of min-max normalized decision attributes and recommends the top
// candidate.
package alloc

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"fleetplan/internal/config"
	"fleetplan/internal/model"
)

// Store is the slice of persistence the engine needs. Reads are snapshots;
// the only write happens in Apply.
type Store interface {
	GetPlan(ctx context.Context, id string) (model.DeliveryPlan, error)
	ListVehicles(ctx context.Context, planDate string, ids []string) ([]model.Vehicle, error)
	ListCarriers(ctx context.Context) ([]model.CarrierContract, error)
	ApplyAllocation(ctx context.Context, planID string, res model.AllocationResult, actor string) error
}

const maxAlternatives = 5

type Engine struct {
	store Store
	cfg   config.Allocation
	log   *zap.Logger
}

func NewEngine(s Store, cfg config.Allocation, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, cfg: cfg, log: log}
}

// Allocate ranks all eligible resources for the plan and returns the
// recommendation with up to five runner-up alternatives. An empty eligible
// set fails with model.ErrNoCandidates; there is no silent fallback.
func (e *Engine) Allocate(ctx context.Context, planID string, w *model.Weights) (model.AllocationResult, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return model.AllocationResult{}, fmt.Errorf("allocate %s: %w", planID, err)
	}
	weights := e.resolveWeights(planID, w)

	vehicles, err := e.store.ListVehicles(ctx, plan.RequestedDate, nil)
	if err != nil {
		return model.AllocationResult{}, fmt.Errorf("allocate %s: list vehicles: %w", planID, err)
	}
	carriers, err := e.store.ListCarriers(ctx)
	if err != nil {
		return model.AllocationResult{}, fmt.Errorf("allocate %s: list carriers: %w", planID, err)
	}

	cands := enumerate(plan, vehicles, carriers, e.cfg)
	if len(cands) == 0 {
		return model.AllocationResult{}, fmt.Errorf("allocate %s: %w", planID, model.ErrNoCandidates)
	}

	score(cands, weights)
	rank(cands)

	return buildResult(plan, cands), nil
}

// AllocateBatch runs Allocate sequentially over planIDs. One plan's failure
// becomes its own error item; the rest of the batch proceeds.
func (e *Engine) AllocateBatch(ctx context.Context, planIDs []string, w *model.Weights) []model.BatchItem {
	items := make([]model.BatchItem, 0, len(planIDs))
	for _, id := range planIDs {
		res, err := e.Allocate(ctx, id, w)
		if err != nil {
			items = append(items, model.BatchItem{PlanID: id, Error: err.Error()})
			continue
		}
		items = append(items, model.BatchItem{PlanID: id, Result: &res})
	}
	return items
}

// Apply writes the recommendation onto the plan (resource assignment,
// estimated cost, estimated lead time) and appends a single audit event.
func (e *Engine) Apply(ctx context.Context, res model.AllocationResult, actor string) error {
	if res.PlanID == "" || res.ResourceID == "" {
		return fmt.Errorf("apply allocation: missing plan or resource id")
	}
	if err := e.store.ApplyAllocation(ctx, res.PlanID, res, actor); err != nil {
		return fmt.Errorf("apply allocation %s: %w", res.PlanID, err)
	}
	return nil
}

// resolveWeights falls back to the configured default and warns on an
// unbalanced sum without rejecting it.
func (e *Engine) resolveWeights(planID string, w *model.Weights) model.Weights {
	weights := e.cfg.Weights
	if w != nil && !w.IsZero() {
		weights = *w
	}
	if !weights.Balanced() {
		e.log.Warn("allocation weights do not sum to 1.0; using as-is",
			zap.String("planId", planID),
			zap.Float64("sum", weights.Sum()))
	}
	return weights
}

// score min-max normalizes each attribute independently across the full
// candidate set and combines them with the given weights. When an attribute
// has no spread, every candidate gets 1.0 for it.
func score(cands []Candidate, w model.Weights) {
	var (
		minCost, maxCost = minMax(cands, func(c Candidate) float64 { return c.Cost })
		minLead, maxLead = minMax(cands, func(c Candidate) float64 { return float64(c.LeadDays) })
		minCap, maxCap   = minMax(cands, func(c Candidate) float64 { return c.CapacityKg })
		minAv, maxAv     = minMax(cands, func(c Candidate) float64 { return c.Availability })
	)
	for i := range cands {
		c := &cands[i]
		costScore := normInverted(c.Cost, minCost, maxCost)
		leadScore := normInverted(float64(c.LeadDays), minLead, maxLead)
		capScore := normDirect(c.CapacityKg, minCap, maxCap)
		avScore := normDirect(c.Availability, minAv, maxAv)
		c.Score = w.Cost*costScore + w.LeadTime*leadScore + w.Capacity*capScore + w.Availability*avScore
	}
}

// rank sorts by score descending. Ties resolve deterministically: internal
// vehicles before external carriers, then the lower resource id.
func rank(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ResourceType != b.ResourceType {
			return a.ResourceType == model.ResourceVehicle
		}
		return a.ResourceID < b.ResourceID
	})
}

func minMax(cands []Candidate, get func(Candidate) float64) (float64, float64) {
	lo, hi := get(cands[0]), get(cands[0])
	for _, c := range cands[1:] {
		v := get(c)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// normInverted scores smaller-is-better attributes.
func normInverted(v, lo, hi float64) float64 {
	if hi == lo {
		return 1.0
	}
	return 1.0 - (v-lo)/(hi-lo)
}

// normDirect scores larger-is-better attributes.
func normDirect(v, lo, hi float64) float64 {
	if hi == lo {
		return 1.0
	}
	return (v - lo) / (hi - lo)
}

func buildResult(plan model.DeliveryPlan, cands []Candidate) model.AllocationResult {
	top := cands[0]
	res := model.AllocationResult{
		PlanID:            plan.ID,
		ResourceType:      top.ResourceType,
		ResourceID:        top.ResourceID,
		ResourceName:      top.ResourceName,
		EstimatedCost:     top.Cost,
		EstimatedLeadDays: top.LeadDays,
		Score:             top.Score,
		Rationale:         rationale(top, len(cands)),
	}
	for _, c := range cands[1:] {
		if len(res.Alternatives) == maxAlternatives {
			break
		}
		res.Alternatives = append(res.Alternatives, model.Alternative{
			ResourceType:      c.ResourceType,
			ResourceID:        c.ResourceID,
			ResourceName:      c.ResourceName,
			EstimatedCost:     c.Cost,
			EstimatedLeadDays: c.LeadDays,
			Score:             c.Score,
		})
	}
	return res
}

func rationale(top Candidate, total int) string {
	kind := "internal vehicle"
	if top.ResourceType == model.ResourceCarrier {
		kind = "external carrier"
	}
	name := top.ResourceName
	if name == "" {
		name = top.ResourceID
	}
	return fmt.Sprintf("%s %s ranked first of %d candidate(s) with score %.3f: estimated cost %.2f, lead time %d day(s)",
		kind, name, total, top.Score, top.Cost, top.LeadDays)
}
