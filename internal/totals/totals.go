// Package totals computes pre-tax, tax and tax-inclusive amounts over the
// section -> line -> material tree of a devis or facture.
package totals

import "math"

// Line is a billable unit: an ouvrage line or one of its materials.
// Billable nil means billable; only an explicit false excludes the line.
type Line struct {
	Quantity  float64
	UnitPrice float64
	TaxRate   float64
	Billable  *bool
	Materials []Line
}

// Section is an ordered group of lines.
type Section struct {
	Lines []Line
}

// RateTotal accumulates the base and tax amounts for one TVA rate.
type RateTotal struct {
	Rate float64 `json:"rate"`
	Base float64 `json:"base"`
	Tax  float64 `json:"tax"`
}

// Result holds the aggregated document totals. Amounts are accumulated
// without intermediate rounding; rounding is a display concern.
type Result struct {
	TotalHT  float64              `json:"total_ht"`
	TotalTVA float64              `json:"total_tva"`
	TotalTTC float64              `json:"total_ttc"`
	ByRate   map[float64]RateTotal `json:"by_rate,omitempty"`
}

// Compute walks every section, every line and every material and sums the
// included amounts. It never fails: malformed numeric values count as zero.
func Compute(sections []Section) Result {
	res := Result{ByRate: make(map[float64]RateTotal)}
	for _, section := range sections {
		for _, line := range section.Lines {
			res.accumulate(line)
			for _, mat := range line.Materials {
				res.accumulate(mat)
			}
		}
	}
	res.TotalTTC = res.TotalHT + res.TotalTVA
	return res
}

func (r *Result) accumulate(l Line) {
	if l.Billable != nil && !*l.Billable {
		return
	}
	qty := sanitize(l.Quantity)
	price := sanitize(l.UnitPrice)
	rate := sanitize(l.TaxRate)

	ht := qty * price
	tax := ht * (rate / 100)

	r.TotalHT += ht
	r.TotalTVA += tax

	entry := r.ByRate[rate]
	entry.Rate = rate
	entry.Base += ht
	entry.Tax += tax
	r.ByRate[rate] = entry
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round2 rounds to two decimals for display. Never used while accumulating.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
