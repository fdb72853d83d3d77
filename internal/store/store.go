package store

import (
	"context"
	"time"

	"gridline/internal/model"
)

type Store interface {
	UpsertSamples(ctx context.Context, samples []model.Sample) error
	ListSampleTimes(ctx context.Context, provider, area string, kind model.Kind) ([]time.Time, error)
	ListAreas(ctx context.Context, provider string) ([]string, error)
	Close() error
}

type NopStore struct{}

func (s *NopStore) UpsertSamples(ctx context.Context, samples []model.Sample) error {
	_ = ctx
	_ = samples
	return nil
}

func (s *NopStore) ListSampleTimes(ctx context.Context, provider, area string, kind model.Kind) ([]time.Time, error) {
	_ = ctx
	_ = provider
	_ = area
	_ = kind
	return nil, nil
}

func (s *NopStore) ListAreas(ctx context.Context, provider string) ([]string, error) {
	_ = ctx
	_ = provider
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}
