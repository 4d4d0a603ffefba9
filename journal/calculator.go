package journal

import (
	"math"
	"sort"
)

// Metrics is the portfolio-level summary computed over a set of closed
// trades.
type Metrics struct {
	MaxDrawdown    float64
	SharpeRatio    float64
	WinRate        float64
	AvgTimeHeld    float64 // hours
	TotalTrades    int
	TotalProfit    float64
	TotalProfitPct float64
	AvgReturnPct   float64
	AvgEfficiency  float64
}

// Compute derives portfolio metrics from trades. capitalPerTrade is used as
// the per-trade baseline for the running-max drawdown series; riskFreeRate
// is annualized.
func Compute(trades []Trade, capitalPerTrade, riskFreeRate float64) Metrics {
	m := Metrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return m
	}
	m.MaxDrawdown = maxDrawdown(trades, capitalPerTrade)
	m.SharpeRatio = sharpeRatio(trades, riskFreeRate)
	m.WinRate = winRate(trades)
	m.AvgTimeHeld = avgTimeHeld(trades)
	m.TotalProfit, m.TotalProfitPct, m.AvgReturnPct = profitStats(trades, capitalPerTrade)
	m.AvgEfficiency = avgEfficiency(trades)
	return m
}

func profitStats(trades []Trade, capitalPerTrade float64) (total, totalPct, avgReturnPct float64) {
	var sumPct float64
	for _, t := range trades {
		total += t.GrossPnL
		sumPct += t.GrossPnLPct
	}
	if capitalPerTrade != 0 {
		totalPct = total / capitalPerTrade * 100
	}
	avgReturnPct = sumPct / float64(len(trades))
	return total, totalPct, avgReturnPct
}

func avgEfficiency(trades []Trade) float64 {
	var sum float64
	for _, t := range trades {
		sum += t.Efficiency
	}
	return sum / float64(len(trades))
}

func maxDrawdown(trades []Trade, capitalPerTrade float64) float64 {
	if len(trades) < 1 {
		return 0.0
	}
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ExitTime < sorted[j].ExitTime })

	cumulative := 0.0
	runningMax := capitalPerTrade
	worst := 0.0
	for _, t := range sorted {
		cumulative += t.GrossPnL
		value := cumulative + capitalPerTrade
		if value > runningMax {
			runningMax = value
		}
		if runningMax == 0 {
			continue
		}
		dd := (value - runningMax) / runningMax * 100
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

func sharpeRatio(trades []Trade, riskFreeRate float64) float64 {
	n := len(trades)
	if n < 2 {
		return 0.0
	}
	perBarRF := riskFreeRate / 252

	returns := make([]float64, n)
	for i, t := range trades {
		r := 0.0
		if t.CapitalAtEntry != 0 {
			r = t.GrossPnL / t.CapitalAtEntry
		}
		returns[i] = r - perBarRF
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(n)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0.0
	}
	return (mean / std) * math.Sqrt(252)
}

func winRate(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0.0
	}
	wins := 0
	for _, t := range trades {
		if t.GrossPnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

func avgTimeHeld(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0.0
	}
	var totalHours float64
	for _, t := range trades {
		totalHours += float64(t.ExitTime-t.EntryTime) / 3600
	}
	return totalHours / float64(len(trades))
}
