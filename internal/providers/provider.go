package providers

import (
	"context"
	"time"

	"gridline/internal/model"
)

type Provider interface {
	Name() string
	ListAreas() []model.Area
	FetchSeries(ctx context.Context, areaCode string, kind model.Kind, start, end time.Time) ([]model.Sample, error)
}
