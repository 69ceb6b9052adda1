package domain

import (
	"sort"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	TopProductsMax = 10
)

// DefaultTrendDays is the trend window used when none is requested.
// StatsHistoryLimit caps the movements read to derive statistics.
const (
	DefaultTrendDays  = 30
	StatsHistoryLimit = 1000
)

// TrendPoint aggregates the movements of one calendar day. RunningTotal is the
// cumulative NetChange of the earlier days of the same window.
type TrendPoint struct {
	Date         string `json:"date"`
	Entries      int    `json:"entries"`
	Exits        int    `json:"exits"`
	Adjustments  int    `json:"adjustments"`
	NetChange    int    `json:"net_change"`
	RunningTotal int    `json:"running_total"`
}

type TrendReport struct {
	Days       int          `json:"days"`
	ProductID  int64        `json:"product_id,omitempty"`
	Points     []TrendPoint `json:"points"`
	Calculated bool         `json:"calculated,omitempty"`
}

type PeriodStats struct {
	Movements   int `json:"movements"`
	Entries     int `json:"entries"`
	Exits       int `json:"exits"`
	Adjustments int `json:"adjustments"`
}

func (p *PeriodStats) add(r MovementRecord) {
	p.Movements++
	switch r.MovementType {
	case MovementIn:
		p.Entries += r.Quantity
	case MovementOut:
		p.Exits += r.Quantity
	case MovementAdjustment:
		p.Adjustments++
	}
}

type ProductActivity struct {
	ProductID int64 `json:"product_id"`
	Movements int   `json:"movements"`
	Entries   int   `json:"entries"`
	Exits     int   `json:"exits"`
	NetChange int   `json:"net_change"`
}

type Statistics struct {
	TotalMovements int               `json:"total_movements"`
	Today          PeriodStats       `json:"today"`
	Last7Days      PeriodStats       `json:"last_7_days"`
	Last30Days     PeriodStats       `json:"last_30_days"`
	TopProducts    []ProductActivity `json:"top_products"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Calculated     bool              `json:"calculated,omitempty"`
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ComputeTrends buckets records into days+1 consecutive calendar days ending
// on the day of now. A zero productID keeps every product.
func ComputeTrends(records []MovementRecord, days int, productID int64, now time.Time) []TrendPoint {
	if days < 0 {
		days = 0
	}
	loc := now.Location()
	start := StartOfDay(now).AddDate(0, 0, -days)

	points := make([]TrendPoint, days+1)
	index := make(map[string]int, days+1)
	for i := range points {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		points[i].Date = date
		index[date] = i
	}

	for _, r := range records {
		if productID != 0 && r.ProductID != productID {
			continue
		}
		i, ok := index[r.CreatedAt.In(loc).Format(DateLayout)]
		if !ok {
			continue
		}
		switch r.MovementType {
		case MovementIn:
			points[i].Entries += r.Quantity
		case MovementOut:
			points[i].Exits += r.Quantity
		case MovementAdjustment:
			points[i].Adjustments++
		}
	}

	running := 0
	for i := range points {
		points[i].NetChange = points[i].Entries - points[i].Exits
		points[i].RunningTotal = running
		running += points[i].NetChange
	}
	return points
}

// ComputeStatistics aggregates records into today / 7 day / 30 day buckets
// relative to now, plus the most active products.
func ComputeStatistics(records []MovementRecord, now time.Time, topN int) Statistics {
	today := StartOfDay(now)
	weekStart := today.AddDate(0, 0, -6)
	monthStart := today.AddDate(0, 0, -29)

	stats := Statistics{TotalMovements: len(records), GeneratedAt: now}
	activity := make(map[int64]*ProductActivity)

	for _, r := range records {
		created := r.CreatedAt.In(now.Location())
		if !created.Before(today) {
			stats.Today.add(r)
		}
		if !created.Before(weekStart) {
			stats.Last7Days.add(r)
		}
		if !created.Before(monthStart) {
			stats.Last30Days.add(r)
		}

		a, ok := activity[r.ProductID]
		if !ok {
			a = &ProductActivity{ProductID: r.ProductID}
			activity[r.ProductID] = a
		}
		a.Movements++
		switch r.MovementType {
		case MovementIn:
			a.Entries += r.Quantity
			a.NetChange += r.Quantity
		case MovementOut:
			a.Exits += r.Quantity
			a.NetChange -= r.Quantity
		}
	}

	top := make([]ProductActivity, 0, len(activity))
	for _, a := range activity {
		top = append(top, *a)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Movements != top[j].Movements {
			return top[i].Movements > top[j].Movements
		}
		return top[i].ProductID < top[j].ProductID
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	stats.TopProducts = top

	return stats
}
