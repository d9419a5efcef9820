// Package mocks provides test doubles for the analysis client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	"github.com/nodescope/area-compare/internal/model"
	analysis "github.com/nodescope/area-compare/pkg/analysis"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// SearchPlaces provides a mock function with given fields: ctx, text
func (_m *MockClient) SearchPlaces(ctx context.Context, text string) ([]model.Place, error) {
	ret := _m.Called(ctx, text)

	if len(ret) == 0 {
		panic("no return value specified for SearchPlaces")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.Place, error)); ok {
		return rf(ctx, text)
	}
	var r0 []model.Place
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Place)
	}
	return r0, ret.Error(1)
}

// ListNeighbourhoods provides a mock function with given fields: ctx, city
func (_m *MockClient) ListNeighbourhoods(ctx context.Context, city string) ([]analysis.Neighbourhood, error) {
	ret := _m.Called(ctx, city)

	if len(ret) == 0 {
		panic("no return value specified for ListNeighbourhoods")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) ([]analysis.Neighbourhood, error)); ok {
		return rf(ctx, city)
	}
	var r0 []analysis.Neighbourhood
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]analysis.Neighbourhood)
	}
	return r0, ret.Error(1)
}

// ComputePointMetrics provides a mock function with given fields: ctx, coords, profile
func (_m *MockClient) ComputePointMetrics(ctx context.Context, coords model.Coordinates, profile model.Profile) (*model.PointMetrics, error) {
	ret := _m.Called(ctx, coords, profile)

	if len(ret) == 0 {
		panic("no return value specified for ComputePointMetrics")
	}

	if rf, ok := ret.Get(0).(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error)); ok {
		return rf(ctx, coords, profile)
	}
	var r0 *model.PointMetrics
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.PointMetrics)
	}
	return r0, ret.Error(1)
}

// FetchIsochrone provides a mock function with given fields: ctx, coords, profile
func (_m *MockClient) FetchIsochrone(ctx context.Context, coords model.Coordinates, profile model.Profile) (*analysis.Isochrone, error) {
	ret := _m.Called(ctx, coords, profile)

	if len(ret) == 0 {
		panic("no return value specified for FetchIsochrone")
	}

	if rf, ok := ret.Get(0).(func(context.Context, model.Coordinates, model.Profile) (*analysis.Isochrone, error)); ok {
		return rf(ctx, coords, profile)
	}
	var r0 *analysis.Isochrone
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*analysis.Isochrone)
	}
	return r0, ret.Error(1)
}

// PoisInIsochrone provides a mock function with given fields: ctx, coords, profile
func (_m *MockClient) PoisInIsochrone(ctx context.Context, coords model.Coordinates, profile model.Profile) ([]analysis.POI, error) {
	ret := _m.Called(ctx, coords, profile)

	if len(ret) == 0 {
		panic("no return value specified for PoisInIsochrone")
	}

	if rf, ok := ret.Get(0).(func(context.Context, model.Coordinates, model.Profile) ([]analysis.POI, error)); ok {
		return rf(ctx, coords, profile)
	}
	var r0 []analysis.POI
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]analysis.POI)
	}
	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient and registers cleanup assertions.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
