package core

// CategoryTotal is the summed spend for one category within a month.
type CategoryTotal struct {
	Category Category
	Cents    int64
}

// CategoryAverage is the per-expense average for one category within a month.
// Averages come straight from SQL AVG and are fractional cents.
type CategoryAverage struct {
	Category Category
	Cents    float64
}

// MonthSummary aggregates one user's spending for a single year/month.
type MonthSummary struct {
	Year       int
	Month      int
	TotalCents int64
	Totals     []CategoryTotal
	Averages   []CategoryAverage
}

// Alert reports a category whose monthly total exceeded its configured
// budget. Exceeded is the overspend in currency units, two decimals.
type Alert struct {
	Category Category
	Exceeded string
}
