package services

import (
	"context"
	"fmt"

	"tablesync/internal/domain"
	"tablesync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrOrderNotFound = fmt.Errorf("%w: order not found", domain.ErrNotFound)

// RefundSyncer replays the payment-row side of a refund for an order.
type RefundSyncer interface {
	Enqueue(orderID string) bool
}

type CreatePaymentInput struct {
	OrderID          string               `json:"order_id"`
	Amount           int64                `json:"amount"`
	Method           domain.PaymentMethod `json:"method,omitempty"`
	GatewayPaymentID string               `json:"gateway_payment_id,omitempty"`
	GatewaySignature string               `json:"gateway_signature,omitempty"`
}

type RefundRequest struct {
	RefundAmount    int64  `json:"refund_amount"`
	Reason          string `json:"reason"`
	AlreadyRefunded int64  `json:"already_refunded"`
}

type RefundResult struct {
	Success       bool                 `json:"success"`
	Status        domain.PaymentStatus `json:"status"`
	TotalRefunded int64                `json:"total_refunded"`
}

type SplitPaymentResult struct {
	Success      bool                `json:"success"`
	Order        *domain.Order       `json:"order"`
	SplitDetails domain.SplitDetails `json:"split_details"`
}

// PaymentService owns the monetary state of orders: capture, refund and split settlement.
type PaymentService struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	syncer   RefundSyncer
	log      zerolog.Logger
}

func NewPaymentService(o repository.OrderRepository, p repository.PaymentRepository, syncer RefundSyncer, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		orders:   o,
		payments: p,
		syncer:   syncer,
		log:      log,
	}
}

func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.OrderProjection, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, status)
	}

	res, err := s.orders.UpdatePaymentStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	if !res.Matched {
		o, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: payment status cannot move from %s to %s", domain.ErrInvalidState, o.PaymentStatus, status)
	}

	return &domain.OrderProjection{
		ID:            res.Record.ID,
		PaymentStatus: res.Record.PaymentStatus,
		OrderStatus:   res.Record.OrderStatus,
	}, nil
}

func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*domain.Payment, error) {
	if in.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount is required and must be positive", domain.ErrInvalidAmount)
	}

	p := &domain.Payment{
		ID:               uuid.NewString(),
		OrderID:          in.OrderID,
		Amount:           in.Amount,
		Status:           domain.PaymentCaptured,
		Method:           in.Method,
		GatewayPaymentID: in.GatewayPaymentID,
		GatewaySignature: in.GatewaySignature,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProcessRefund records a refund against an order. The order row is the
// authoritative write; the per-payment amounts follow on a best-effort basis
// and are replayed through the syncer when that write fails.
//
// req.AlreadyRefunded must equal the order's recorded refund_amount. A caller
// working from a stale total gets ErrInvalidState and should re-read the order.
func (s *PaymentService) ProcessRefund(ctx context.Context, orderID string, req RefundRequest) (*RefundResult, error) {
	if req.RefundAmount <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidAmount)
	}
	if req.AlreadyRefunded < 0 {
		return nil, fmt.Errorf("%w: already refunded amount cannot be negative", domain.ErrInvalidAmount)
	}

	order, err := s.orders.FindWithPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if !order.PaymentStatus.Refundable() {
		return nil, fmt.Errorf("%w: Cannot process refund for order with payment status %s", domain.ErrInvalidState, order.PaymentStatus)
	}

	totalPaid := order.TotalPaid()
	totalRefunded := req.RefundAmount + req.AlreadyRefunded
	if totalRefunded > totalPaid {
		return nil, fmt.Errorf("%w: refund total %d cannot exceed amount paid %d", domain.ErrInvalidAmount, totalRefunded, totalPaid)
	}

	if req.AlreadyRefunded != order.RefundAmount {
		s.log.Warn().
			Str("order_id", orderID).
			Int64("already_refunded", req.AlreadyRefunded).
			Int64("recorded_refund", order.RefundAmount).
			Msg("refund request based on stale refund total")
		return nil, fmt.Errorf("%w: already refunded amount %d does not match recorded %d", domain.ErrInvalidState, req.AlreadyRefunded, order.RefundAmount)
	}

	status := domain.PaymentPartiallyRefunded
	if totalRefunded == totalPaid {
		status = domain.PaymentRefunded
	}

	res, err := s.orders.ApplyRefund(ctx, orderID, repository.RefundUpdate{
		Status:           status,
		RefundAmount:     totalRefunded,
		ExpectedRefunded: req.AlreadyRefunded,
		Reason:           req.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !res.Matched {
		return nil, fmt.Errorf("%w: order %s not found or no longer refundable", domain.ErrNotFound, orderID)
	}

	s.syncPaymentRefunds(ctx, order, totalRefunded)

	s.log.Info().
		Str("order_id", orderID).
		Str("status", string(status)).
		Int64("refund_amount", req.RefundAmount).
		Int64("total_refunded", totalRefunded).
		Msg("refund processed")

	return &RefundResult{Success: true, Status: status, TotalRefunded: totalRefunded}, nil
}

func (s *PaymentService) syncPaymentRefunds(ctx context.Context, order *domain.Order, totalRefunded int64) {
	if len(order.Payments) == 0 {
		return
	}

	allocs := domain.AllocateRefund(order.Payments, totalRefunded)
	err := s.payments.ApplyRefundAllocation(ctx, allocs)
	if err == nil {
		return
	}

	s.log.Warn().Err(err).Str("order_id", order.ID).Msg("payment refund write failed, queued for replay")
	if s.syncer == nil || !s.syncer.Enqueue(order.ID) {
		s.log.Error().Str("order_id", order.ID).Msg("payment refund replay not queued")
	}
}

// ProcessSplitPayment settles an order across cash and online. The two
// amounts must add up to the order total exactly.
func (s *PaymentService) ProcessSplitPayment(ctx context.Context, orderID string, cashAmount, onlineAmount int64, metadata map[string]any) (*SplitPaymentResult, error) {
	if cashAmount < 0 || onlineAmount < 0 {
		return nil, fmt.Errorf("%w: split amounts cannot be negative", domain.ErrInvalidAmount)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if cashAmount+onlineAmount != order.Total {
		return nil, fmt.Errorf("%w: split amount %d + %d does not match order total %d", domain.ErrMismatch, cashAmount, onlineAmount, order.Total)
	}
	// Only an unpaid order can be settled; a second settlement would record
	// captured payments twice and let refunds exceed the order total.
	if order.PaymentStatus != domain.PaymentPending {
		return nil, fmt.Errorf("%w: order with payment status %s cannot be settled again", domain.ErrInvalidState, order.PaymentStatus)
	}

	details := domain.SplitDetails{CashAmount: cashAmount, OnlineAmount: onlineAmount}
	for k, v := range metadata {
		if k == "cash_amount" || k == "online_amount" {
			continue
		}
		if details.Metadata == nil {
			details.Metadata = make(map[string]any, len(metadata))
		}
		details.Metadata[k] = v
	}

	res, err := s.orders.ApplySplitPayment(ctx, orderID, order.Total, details, splitPayments(orderID, cashAmount, onlineAmount))
	if err != nil {
		return nil, err
	}
	if !res.Matched {
		return nil, fmt.Errorf("%w: order %s not found or no longer payable", domain.ErrNotFound, orderID)
	}

	return &SplitPaymentResult{Success: true, Order: res.Record, SplitDetails: details}, nil
}

func splitPayments(orderID string, cash, online int64) []domain.Payment {
	var out []domain.Payment
	if cash > 0 {
		out = append(out, domain.Payment{ID: uuid.NewString(), OrderID: orderID, Amount: cash, Method: domain.MethodCash, Status: domain.PaymentCaptured})
	}
	if online > 0 {
		out = append(out, domain.Payment{ID: uuid.NewString(), OrderID: orderID, Amount: online, Method: domain.MethodOnline, Status: domain.PaymentCaptured})
	}
	return out
}
