package schema

// BuildComparison assembles a period comparison, computing the delta
// and delta-percent for every metric present in both periods. The
// percent is 0 when the previous value is 0.
func BuildComparison(current, previous ComparisonPeriod) *Comparison {
	c := &Comparison{
		CurrentPeriod:  current,
		PreviousPeriod: previous,
		Deltas:         make(map[string]float64),
		DeltaPcts:      make(map[string]float64),
	}
	for name, cur := range current.KPIs {
		prev, ok := previous.KPIs[name]
		if !ok {
			continue
		}
		c.Deltas[name] = cur - prev
		if prev != 0 {
			c.DeltaPcts[name] = (cur - prev) / prev * 100
		} else {
			c.DeltaPcts[name] = 0
		}
	}
	return c
}
