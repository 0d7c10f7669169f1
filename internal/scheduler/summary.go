package scheduler

import (
	"sort"

	"PortfolioSentinel/internal/model"
)

// Aggregate folds results, given in completion order, into a cycle summary.
// Successful results are grouped per signal by descending confidence, ties
// keeping completion order; aborted ones are listed as skipped.
func Aggregate(cycleID string, total int, results []*model.PipelineResult, threshold float64) *model.BatchSummary {
	s := &model.BatchSummary{
		CycleID:  cycleID,
		Total:    total,
		Counts:   make(map[model.Signal]int, len(model.Signals)),
		BySignal: make(map[model.Signal][]model.SummaryEntry, len(model.Signals)),
	}
	for _, sig := range model.Signals {
		s.Counts[sig] = 0
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		if !res.Success || res.Recommendation == nil {
			s.Skipped = append(s.Skipped, model.SkippedInstrument{
				Symbol: res.Symbol,
				Stage:  res.StageReached,
				Reason: res.AbortReason(),
			})
			continue
		}
		s.Succeeded++
		rec := res.Recommendation
		s.Counts[rec.Signal]++
		s.BySignal[rec.Signal] = append(s.BySignal[rec.Signal], entryFor(res, threshold))
	}

	for sig, entries := range s.BySignal {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Confidence > entries[j].Confidence
		})
		s.BySignal[sig] = entries
	}
	return s
}

func entryFor(res *model.PipelineResult, threshold float64) model.SummaryEntry {
	e := model.SummaryEntry{
		Symbol:     res.Symbol,
		Name:       res.Name,
		Confidence: res.Recommendation.Confidence,
		Actionable: res.Recommendation.Actionable(threshold),
		Degraded:   res.Degraded(),
	}
	if res.Quote != nil {
		e.Price = res.Quote.Price
	}
	if r := res.Risk; r != nil {
		e.StopLoss = r.StopLoss
		e.TakeProfit1 = r.TakeProfit1
		e.TakeProfit2 = r.TakeProfit2
		e.RiskReward = r.RiskRewardRatio1
	}
	return e
}
