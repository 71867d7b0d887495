package domain

import "github.com/shopspring/decimal"

// CityCount is the number of tickets filed from a city.
type CityCount struct {
	City  string
	Count int64
}

// TicketStats aggregates a filtered ticket set.
type TicketStats struct {
	Total    int64
	Resolved int64
	Revenue  decimal.Decimal
	ByCity   []CityCount
}
