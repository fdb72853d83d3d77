package model

import "time"

type Kind string

const (
	KindDayAheadPrice  Kind = "day_ahead_price"
	KindBalancingPrice Kind = "balancing_price"
	KindCapacity       Kind = "installed_capacity"
	KindGeneration     Kind = "actual_generation"
)

type Area struct {
	Code string
	EIC  string
	Name string
	TZ   string
}

type Sample struct {
	Provider   string
	Area       string
	Kind       Kind
	Resolution string
	Timestamp  time.Time
	Value      float64
	Unit       string
	IngestedAt time.Time
}
