package mocks

import (
	"context"

	"tablesync/internal/domain"
	"tablesync/internal/infra/pubsub"
	"tablesync/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockPaymentRepository struct {
	mock.Mock
}

type MockSessionRepository struct {
	mock.Mock
}

type MockChannel struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockGuard struct {
	mock.Mock
}

type MockRefundSyncer struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindWithPayments(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (repository.Conditional[domain.Order], error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(repository.Conditional[domain.Order]), args.Error(1)
}

func (m *MockOrderRepository) ApplyRefund(ctx context.Context, id string, upd repository.RefundUpdate) (repository.Conditional[domain.Order], error) {
	args := m.Called(ctx, id, upd)
	return args.Get(0).(repository.Conditional[domain.Order]), args.Error(1)
}

func (m *MockOrderRepository) ApplySplitPayment(ctx context.Context, id string, total int64, details domain.SplitDetails, payments []domain.Payment) (repository.Conditional[domain.Order], error) {
	args := m.Called(ctx, id, total, details, payments)
	return args.Get(0).(repository.Conditional[domain.Order]), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByOrderID(ctx context.Context, orderID string) ([]domain.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ApplyRefundAllocation(ctx context.Context, allocs []domain.RefundAllocation) error {
	args := m.Called(ctx, allocs)
	return args.Error(0)
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id string) (*domain.TableSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TableSession), args.Error(1)
}

func (m *MockSessionRepository) FindWithOrders(ctx context.Context, id string) (*domain.TableSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TableSession), args.Error(1)
}

func (m *MockSessionRepository) Open(ctx context.Context, session *domain.TableSession) (repository.Conditional[domain.TableSession], error) {
	args := m.Called(ctx, session)
	return args.Get(0).(repository.Conditional[domain.TableSession]), args.Error(1)
}

func (m *MockSessionRepository) UpdateCart(ctx context.Context, id string, items []domain.CartItem) (repository.Conditional[domain.TableSession], error) {
	args := m.Called(ctx, id, items)
	return args.Get(0).(repository.Conditional[domain.TableSession]), args.Error(1)
}

func (m *MockSessionRepository) End(ctx context.Context, id string) (repository.Conditional[domain.TableSession], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(repository.Conditional[domain.TableSession]), args.Error(1)
}

func (m *MockChannel) Broadcast(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

func (m *MockChannel) Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error) {
	args := m.Called(ctx, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pubsub.Subscription), args.Error(1)
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, priority uint8, data any) error {
	args := m.Called(ctx, routingKey, priority, data)
	return args.Error(0)
}

func (m *MockGuard) Once(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockRefundSyncer) Enqueue(orderID string) bool {
	args := m.Called(orderID)
	return args.Bool(0)
}
