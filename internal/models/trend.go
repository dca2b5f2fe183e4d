package models

import "sort"

// HistoricRowFromAnalysis builds the per-semester trend row.
func HistoricRowFromAnalysis(a *AnalysisSnapshot) HistoricRow {
	return HistoricRow{
		Semester:          a.Semester,
		Summary:           a.Summary,
		Threshold:         a.Threshold,
		HighPriorityCount: a.Summary.HighPriority,
		WatchListCount:    a.Summary.WatchList,
		TotalInad:         a.Summary.TotalInad,
	}
}

// ComputeTrend compares the oldest and newest rows. Rows must be ordered.
func ComputeTrend(rows []HistoricRow) Trend {
	if len(rows) < 2 {
		return Trend{Direction: TrendStable}
	}
	first, last := rows[0], rows[len(rows)-1]
	hp := last.HighPriorityCount - first.HighPriorityCount
	wl := last.WatchListCount - first.WatchListCount
	total := hp + wl

	dir := TrendStable
	switch {
	case total > 0:
		dir = TrendWorsening
	case total < 0:
		dir = TrendImproving
	}
	return Trend{
		Direction:          dir,
		HighPriorityChange: hp,
		WatchListChange:    wl,
		TotalChange:        total,
	}
}

// BuildHistoric assembles a historic snapshot from per-semester analyses.
func BuildHistoric(analyses []*AnalysisSnapshot) *HistoricSnapshot {
	rows := make([]HistoricRow, 0, len(analyses))
	for _, a := range analyses {
		if a == nil {
			continue
		}
		rows = append(rows, HistoricRowFromAnalysis(a))
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Semester < rows[j].Semester })
	return &HistoricSnapshot{Semesters: rows, Trend: ComputeTrend(rows)}
}
