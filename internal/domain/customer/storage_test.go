package customer

import (
	"context"
	"loyalty-tracker/internal/event"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (_m *MockStorage) Load(ctx context.Context) (*Database, error) {
	ret := _m.Called(ctx)

	var r0 *Database
	if rf, ok := ret.Get(0).(func(context.Context) *Database); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*Database)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockStorage) Replace(ctx context.Context, db *Database) error {
	ret := _m.Called(ctx, db)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Database) error); ok {
		r0 = rf(ctx, db)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

type MockEventPublisher struct {
	mock.Mock
}

func (_m *MockEventPublisher) PublishCustomerRegistered(ctx context.Context, ev event.CustomerRegisteredEvent) error {
	return _m.Called(ctx, ev).Error(0)
}

func (_m *MockEventPublisher) PublishSpendRecorded(ctx context.Context, ev event.SpendRecordedEvent) error {
	return _m.Called(ctx, ev).Error(0)
}

func (_m *MockEventPublisher) PublishGoalReached(ctx context.Context, ev event.GoalReachedEvent) error {
	return _m.Called(ctx, ev).Error(0)
}
