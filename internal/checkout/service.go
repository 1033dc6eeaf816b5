// Package checkout turns a cart into backend order records.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chatshop/internal/cart"
	"github.com/angelmondragon/chatshop/pkg/commerce"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
	"github.com/angelmondragon/chatshop/pkg/metrics"
	"github.com/angelmondragon/chatshop/pkg/types"
)

var (
	// ErrEmptyCart is returned before any backend call when there is nothing to order.
	ErrEmptyCart = pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	// ErrUnknownUser means the chat does not resolve to exactly one backend user.
	ErrUnknownUser = pkgerrors.New(pkgerrors.CodeConsistency, "please re-register")
	// ErrMissingAddress guards the paid variant, which always ships somewhere.
	ErrMissingAddress = pkgerrors.New(pkgerrors.CodeConsistency, "delivery address missing")
)

// Gateway is the part of the commerce backend the protocol talks to.
type Gateway interface {
	FindUsers(ctx context.Context, chatID string) ([]types.BackendUser, error)
	CreateOrderGroup(ctx context.Context, req commerce.OrderGroupRequest) (types.OrderGroup, error)
	CreateOrder(ctx context.Context, req commerce.OrderRequest) (types.Order, error)
}

// Reconciler is told about every order group left without its full set of
// orders. It only records; nothing is rolled back.
type Reconciler interface {
	RecordOrphan(ctx context.Context, orphan Orphan) error
}

// OutcomeRecorder counts commit outcomes.
type OutcomeRecorder interface {
	IncCheckout(outcome string)
}

// Orphan describes an order group whose orders were only partly created.
type Orphan struct {
	ChatKey         string
	BackendUserID   int64
	OrderGroupID    int64
	Paid            bool
	TotalPrice      decimal.Decimal
	LinesTotal      int
	LinesCreated    int
	FailedProductID int64
	Cause           string
	OccurredAt      time.Time
}

// Request is one checkout attempt. Cart is read, never mutated; clearing it
// after a successful commit is the caller's job.
type Request struct {
	ChatKey string
	Cart    *cart.Cart
	Address string
	Paid    bool
}

// Result is what the backend now holds for a committed checkout.
type Result struct {
	OrderGroup types.OrderGroup
	Orders     []types.Order
	Total      cart.Total
}

// Service executes the checkout-commit protocol.
type Service interface {
	Commit(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	gateway    Gateway
	reconciler Reconciler
	outcomes   OutcomeRecorder
	logg       *logger.Logger
	now        func() time.Time
}

// ServiceParams wires the checkout service. Reconciler and Outcomes are optional.
type ServiceParams struct {
	Gateway    Gateway
	Reconciler Reconciler
	Outcomes   OutcomeRecorder
	Logger     *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("commerce gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		gateway:    params.Gateway,
		reconciler: params.Reconciler,
		outcomes:   params.Outcomes,
		logg:       params.Logger,
		now:        time.Now,
	}, nil
}

// Commit resolves the backend user, opens an order group and creates one
// order per cart line in cart order. The first failing order stops the run.
func (s *service) Commit(ctx context.Context, req Request) (*Result, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"chat_id": req.ChatKey, "paid": req.Paid})

	if req.Cart.IsEmpty() {
		s.record(metrics.OutcomeEmptyCart)
		return nil, ErrEmptyCart
	}
	if req.Paid && req.Address == "" {
		s.record(metrics.OutcomeInconsistent)
		return nil, ErrMissingAddress
	}

	userID, err := s.resolveUser(ctx, req.ChatKey)
	if err != nil {
		return nil, err
	}

	total := cart.ComputeTotal(req.Cart)
	groupReq := commerce.OrderGroupRequest{
		BotUser: userID,
		IsPaid:  req.Paid,
		Status:  commerce.StatusActive,
	}
	if req.Paid {
		grand := total.Grand
		groupReq.DeliveryAddress = req.Address
		groupReq.TotalPrice = &grand
	}
	group, err := s.gateway.CreateOrderGroup(ctx, groupReq)
	if err != nil {
		if pkgerrors.CodeOf(err) != pkgerrors.CodeProtocol {
			s.record(metrics.OutcomeGatewayError)
			return nil, asGatewayError(err, "order group creation failed")
		}
		// The backend accepted the request but its reply was unusable, so a
		// group may exist there with no orders and no id to reconcile by.
		s.record(metrics.OutcomeGroupUnconfirmed)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"bot_user_id": userID,
			"lines_total": len(total.Lines),
			"error":       err.Error(),
		}), "order group may exist without orders")
		return nil, asGatewayError(err, "order group creation unconfirmed")
	}
	ctx = s.logg.WithField(ctx, "order_group_id", group.ID)

	orders := make([]types.Order, 0, len(total.Lines))
	for _, line := range total.Lines {
		orderReq := commerce.OrderRequest{
			OrderGroup: group.ID,
			Product:    line.Product.ID,
			Quantity:   max(1, line.Quantity),
		}
		if req.Paid {
			subtotal := line.Subtotal
			orderReq.Subtotal = &subtotal
		}
		order, err := s.gateway.CreateOrder(ctx, orderReq)
		if err != nil {
			s.record(metrics.OutcomePartial)
			s.reportOrphan(ctx, Orphan{
				ChatKey:         req.ChatKey,
				BackendUserID:   userID,
				OrderGroupID:    group.ID,
				Paid:            req.Paid,
				TotalPrice:      total.Grand,
				LinesTotal:      len(total.Lines),
				LinesCreated:    len(orders),
				FailedProductID: line.Product.ID,
				Cause:           err.Error(),
				OccurredAt:      s.now().UTC(),
			})
			return nil, asGatewayError(err, "order creation failed").WithDetails(map[string]any{
				"order_group_id": group.ID,
				"created":        len(orders),
				"lines":          len(total.Lines),
				"product_id":     line.Product.ID,
			})
		}
		orders = append(orders, order)
	}

	s.record(metrics.OutcomeCommitted)
	s.logg.Info(ctx, "checkout committed")
	return &Result{OrderGroup: group, Orders: orders, Total: total}, nil
}

func (s *service) resolveUser(ctx context.Context, chatKey string) (int64, error) {
	users, err := s.gateway.FindUsers(ctx, chatKey)
	if err != nil {
		s.record(metrics.OutcomeGatewayError)
		return 0, asGatewayError(err, "user lookup failed")
	}
	if len(users) != 1 {
		s.record(metrics.OutcomeInconsistent)
		ctx = s.logg.WithField(ctx, "matches", len(users))
		s.logg.Warn(ctx, "chat does not resolve to exactly one backend user")
		return 0, ErrUnknownUser
	}
	return users[0].ID, nil
}

func (s *service) reportOrphan(ctx context.Context, orphan Orphan) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"lines_created": orphan.LinesCreated,
		"lines_total":   orphan.LinesTotal,
		"product_id":    orphan.FailedProductID,
	})
	s.logg.Warn(ctx, "order group left incomplete")
	if s.reconciler == nil {
		return
	}
	if err := s.reconciler.RecordOrphan(ctx, orphan); err != nil {
		s.logg.Error(ctx, "failed to record orphaned order group", err)
	}
}

func (s *service) record(outcome string) {
	if s.outcomes != nil {
		s.outcomes.IncCheckout(outcome)
	}
}

// asGatewayError keeps dependency and protocol codes and folds anything else
// into a dependency error, so callers see one failure class per backend call.
func asGatewayError(err error, message string) *pkgerrors.Error {
	code := pkgerrors.CodeOf(err)
	if !pkgerrors.IsGateway(err) {
		code = pkgerrors.CodeDependency
	}
	return pkgerrors.Wrap(code, err, message)
}

// IsEmptyCart reports whether err is the empty-cart guard.
func IsEmptyCart(err error) bool {
	return errors.Is(err, ErrEmptyCart)
}
