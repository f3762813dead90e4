package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/internal/cart"
	"github.com/davidmarcano/storefront-backend/internal/discount"
	"github.com/davidmarcano/storefront-backend/internal/inventory"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/metrics"
	"github.com/davidmarcano/storefront-backend/pkg/outbox"
	"github.com/davidmarcano/storefront-backend/pkg/pagination"
	"github.com/davidmarcano/storefront-backend/pkg/payments"
	"github.com/davidmarcano/storefront-backend/pkg/types"
)

// amountToleranceCents is how far the client-claimed total may drift from
// the recomputed total before creation is rejected as tampering.
const amountToleranceCents = 1

// Actor is the authenticated caller as supplied by the identity layer.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role.String()}
}

// CreateInput is the checkout payload after authentication.
type CreateInput struct {
	Actor              Actor
	PaymentMethod      enums.PaymentMethod
	ShippingAddress    types.Address
	ExpectedTotalCents int
	Confirmation       *payments.Confirmation
	Notes              *string
}

// CreateResult carries the persisted order plus any stock warnings from
// the best-effort debit that ran after the commit.
type CreateResult struct {
	Order         *models.Order
	StockWarnings []outbox.StockFailure
}

// CancelInput names who wants the order cancelled and why. Force is only
// honoured for admins cancelling shipped orders.
type CancelInput struct {
	Reason string
	Force  bool
}

// TrackingInput updates carrier details on an order.
type TrackingInput struct {
	Carrier string
	Number  string
}

// ListInput pages one user's orders.
type ListInput struct {
	UserID     uuid.UUID
	Pagination pagination.Params
}

// AdminListInput pages the filtered back-office listing.
type AdminListInput struct {
	Filters    AdminFilters
	Pagination pagination.Params
}

// ListResult is one page of orders.
type ListResult struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// Service drives the order state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	CreatePaymentIntent(ctx context.Context, actor Actor) (*payments.Intent, error)
	GetByID(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForUser(ctx context.Context, input ListInput) (*ListResult, error)
	AdminList(ctx context.Context, input AdminListInput) (*ListResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, notes *string, actor Actor) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, input CancelInput, actor Actor) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, input TrackingInput, actor Actor) (*models.Order, error)
}

type transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productGetter interface {
	GetProductWithVariants(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type stockLedger interface {
	DebitItems(ctx context.Context, items []inventory.Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]inventory.Failure, error)
	CreditItems(ctx context.Context, items []inventory.Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]inventory.Failure, error)
}

type paymentGateway interface {
	CreateIntent(ctx context.Context, amountCents int64, receipt string) (*payments.Intent, error)
	VerifySignature(conf payments.Confirmation) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     Repository
	tx       transactor
	carts    cart.Service
	products productGetter
	stock    stockLedger
	gateway  paymentGateway
	events   eventEmitter
	meters   *metrics.StorefrontMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the order lifecycle service.
func NewService(
	repo Repository,
	tx transactor,
	carts cart.Service,
	products productGetter,
	stock stockLedger,
	gateway paymentGateway,
	events eventEmitter,
	meters *metrics.StorefrontMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if products == nil {
		return nil, fmt.Errorf("product getter required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		carts:    carts,
		products: products,
		stock:    stock,
		gateway:  gateway,
		events:   events,
		meters:   meters,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Create runs the checkout pipeline. Validation failures abort before
// anything is persisted; once the order row commits, stock debits are
// best-effort and surfaced as warnings instead of rolling back.
func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	started := s.now()

	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated customer required")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "incomplete shipping address")
	}

	record, err := s.carts.GetCartRecord(ctx, input.Actor.UserID)
	if err != nil {
		return nil, err
	}
	if record == nil || len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	items, subtotal, discountTotal, err := s.buildSnapshots(ctx, record.Items, started)
	if err != nil {
		return nil, err
	}
	total := subtotal - discountTotal

	diff := input.ExpectedTotalCents - total
	if diff < -amountToleranceCents || diff > amountToleranceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount mismatch").
			WithDetails(map[string]interface{}{
				"expected_cents": input.ExpectedTotalCents,
				"computed_cents": total,
			})
	}

	payment, err := s.buildPayment(input, started)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          input.Actor.UserID,
		Status:          enums.OrderStatusPending,
		SubtotalCents:   subtotal,
		DiscountCents:   discountTotal,
		TotalCents:      total,
		ShippingAddress: input.ShippingAddress,
		Payment:         *payment,
		Notes:           input.Notes,
		Items:           items,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor.ref(),
			Data: outbox.OrderCreatedPayload{
				OrderID:       order.ID,
				UserID:        order.UserID,
				TotalCents:    int64(order.TotalCents),
				ItemCount:     len(order.Items),
				PaymentMethod: input.PaymentMethod,
			},
		}); err != nil {
			return err
		}
		return s.carts.WithTx(tx).Clear(ctx, input.Actor.UserID)
	}); err != nil {
		return nil, err
	}

	warnings := s.debitAfterCommit(ctx, order, input.Actor)

	s.meters.IncOrderCreated(input.PaymentMethod.String())
	s.meters.ObserveCheckoutDuration(s.now().Sub(started))
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order created")

	return &CreateResult{Order: order, StockWarnings: warnings}, nil
}

// CreatePaymentIntent opens a gateway order for the caller's current cart
// total so the client can collect an online payment.
func (s *service) CreatePaymentIntent(ctx context.Context, actor Actor) (*payments.Intent, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated customer required")
	}

	record, err := s.carts.GetCartRecord(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if record == nil || len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	_, subtotal, discountTotal, err := s.buildSnapshots(ctx, record.Items, s.now())
	if err != nil {
		return nil, err
	}

	return s.gateway.CreateIntent(ctx, int64(subtotal-discountTotal), actor.UserID.String())
}

func (s *service) GetByID(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Pagination.Limit)

	rows, err := s.repo.ListByUser(ctx, input.UserID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return buildListResult(rows, limit), nil
}

func (s *service) AdminList(ctx context.Context, input AdminListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Pagination.Limit)

	rows, err := s.repo.AdminList(ctx, input.Filters, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: admin list orders")
	}
	return buildListResult(rows, limit), nil
}

// UpdateStatus advances the order one step along the happy path.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, notes *string, actor Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	switch to {
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded, enums.OrderStatusReturned:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status has a dedicated operation")
	}

	var updated *models.Order
	var from enums.OrderStatus
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, txRepo, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		if err := checkForwardTransition(order.Status, to); err != nil {
			return err
		}

		now := s.now()
		order.Status = to
		switch to {
		case enums.OrderStatusShipped:
			stampShipped(order, now)
		case enums.OrderStatusDelivered:
			stampDelivered(order, now)
		}
		if notes != nil {
			order.Notes = notes
		}

		if err := txRepo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		if err := s.emitStatusChanged(ctx, tx, order, from, to, actor); err != nil {
			return err
		}
		updated = order
		return nil
	}); err != nil {
		return nil, err
	}

	s.meters.IncOrderTransition(from.String(), to.String())
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order status updated to "+to.String())
	return updated, nil
}

// Cancel moves the order to cancelled and restores stock for every item.
// Shipped orders only cancel when an admin forces it with a reason.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, input CancelInput, actor Actor) (*models.Order, error) {
	var updated *models.Order
	var from enums.OrderStatus
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, txRepo, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		from = order.Status

		if !cancellable(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]interface{}{"current_status": order.Status.String()})
		}

		forced := false
		if order.Status == enums.OrderStatusShipped {
			if !actor.IsAdmin() || !input.Force || strings.TrimSpace(input.Reason) == "" {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "shipped orders require a forced admin cancellation with a reason").
					WithDetails(map[string]interface{}{"current_status": order.Status.String()})
			}
			forced = true
		}

		now := s.now()
		order.Status = enums.OrderStatusCancelled
		order.Cancellation = &models.CancellationInfo{
			CancelledAt: now,
			CancelledBy: actor.Role,
			Reason:      strings.TrimSpace(input.Reason),
			Forced:      forced,
		}

		if err := txRepo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data: outbox.OrderCancelledPayload{
				OrderID: order.ID,
				Reason:  order.Cancellation.Reason,
				By:      actor.Role,
				Forced:  forced,
			},
		}); err != nil {
			return err
		}
		updated = order
		return nil
	}); err != nil {
		return nil, err
	}

	s.creditAfterCommit(ctx, updated, enums.MovementReasonCancellation)

	s.meters.IncOrderTransition(from.String(), enums.OrderStatusCancelled.String())
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	return updated, nil
}

// Refund is terminal bookkeeping on a cancelled or returned order. Stock
// already moved when the order left the happy path.
func (s *service) Refund(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var updated *models.Order
	var from enums.OrderStatus
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, txRepo, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		if !refundable(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled or returned orders can be refunded").
				WithDetails(map[string]interface{}{"current_status": order.Status.String()})
		}

		now := s.now()
		order.Status = enums.OrderStatusRefunded
		order.Payment.Status = enums.PaymentStatusRefunded
		order.Payment.RefundedAt = &now

		if err := txRepo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data: outbox.OrderRefundedPayload{
				OrderID:     order.ID,
				AmountCents: int64(order.TotalCents),
			},
		}); err != nil {
			return err
		}
		updated = order
		return nil
	}); err != nil {
		return nil, err
	}

	s.meters.IncOrderTransition(from.String(), enums.OrderStatusRefunded.String())
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order refunded")
	return updated, nil
}

// UpdateTracking sets carrier details without touching the shipped or
// delivered stamps.
func (s *service) UpdateTracking(ctx context.Context, orderID uuid.UUID, input TrackingInput, actor Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if strings.TrimSpace(input.Carrier) == "" || strings.TrimSpace(input.Number) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier and number are required")
	}

	var updated *models.Order
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, txRepo, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enums.OrderStatusCancelled, enums.OrderStatusRefunded:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer in transit").
				WithDetails(map[string]interface{}{"current_status": order.Status.String()})
		}

		if order.Tracking == nil {
			order.Tracking = &models.TrackingInfo{}
		}
		order.Tracking.Carrier = strings.TrimSpace(input.Carrier)
		order.Tracking.Number = strings.TrimSpace(input.Number)

		if err := txRepo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		updated = order
		return nil
	}); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "tracking updated")
	return updated, nil
}

// buildSnapshots validates every cart line against live stock and prices
// it with the discount evaluated at the given instant. Any shortfall
// aborts the whole build.
func (s *service) buildSnapshots(ctx context.Context, lines []models.CartItem, now time.Time) ([]models.OrderItem, int, int, error) {
	items := make([]models.OrderItem, 0, len(lines))
	subtotal := 0
	discountTotal := 0

	for _, line := range lines {
		product, err := s.products.GetProductWithVariants(ctx, line.ProductID)
		if err != nil {
			return nil, 0, 0, err
		}
		if !product.IsActive {
			return nil, 0, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product is no longer available").
				WithDetails(map[string]interface{}{"product_id": product.ID})
		}

		if product.HasVariants() {
			variant := product.VariantByName(line.ColorName)
			if variant == nil || !variant.IsAvailable {
				return nil, 0, 0, pkgerrors.New(pkgerrors.CodeColorNotAvailable, "color not available").
					WithDetails(map[string]interface{}{
						"product_id": product.ID,
						"color_name": line.ColorName,
					})
			}
			if variant.Stock < line.Quantity {
				return nil, 0, 0, insufficientStock(product.ID, line.ColorName, line.Quantity, variant.Stock)
			}
		} else if product.Stock < line.Quantity {
			return nil, 0, 0, insufficientStock(product.ID, "", line.Quantity, product.Stock)
		}

		eval := discount.Evaluate(product, now)
		subtotal += product.PriceCents * line.Quantity
		discountTotal += eval.SavedCents * line.Quantity

		items = append(items, models.OrderItem{
			ProductID:  line.ProductID,
			Name:       product.Name,
			Quantity:   line.Quantity,
			PriceCents: eval.EffectivePriceCents,
			ColorName:  line.ColorName,
			ColorCode:  line.ColorCode,
			ImageURL:   line.ImageURL,
		})
	}

	return items, subtotal, discountTotal, nil
}

func (s *service) buildPayment(input CreateInput, now time.Time) (*models.PaymentInfo, error) {
	if input.PaymentMethod.RequiresVerification() {
		if input.Confirmation == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment confirmation required for online payment")
		}
		if err := s.gateway.VerifySignature(*input.Confirmation); err != nil {
			return nil, err
		}
		return &models.PaymentInfo{
			Method:            input.PaymentMethod,
			Status:            enums.PaymentStatusCompleted,
			ProviderOrderID:   input.Confirmation.ProviderOrderID,
			ProviderPaymentID: input.Confirmation.ProviderPaymentID,
			PaidAt:            &now,
		}, nil
	}

	return &models.PaymentInfo{
		Method: input.PaymentMethod,
		Status: enums.PaymentStatusPending,
	}, nil
}

// debitAfterCommit applies the stock debits for a freshly committed
// order. Failures never unwind the order; they are logged, counted, and
// flagged for reconciliation through the outbox.
func (s *service) debitAfterCommit(ctx context.Context, order *models.Order, actor Actor) []outbox.StockFailure {
	failures, err := s.stock.DebitItems(ctx, ledgerItems(order.Items), enums.MovementReasonOrder, &order.ID)
	if err == nil && len(failures) == 0 {
		return nil
	}

	warnings := make([]outbox.StockFailure, 0, len(failures))
	for _, failure := range failures {
		s.meters.IncStockDebitFailure()
		s.logg.Error(
			s.logg.WithFields(ctx, map[string]any{
				"order_id":   order.ID.String(),
				"product_id": failure.Item.ProductID.String(),
				"color_name": failure.Item.ColorName,
				"quantity":   failure.Item.Quantity,
			}),
			"stock debit failed after order persistence", failure.Reason,
		)
		warnings = append(warnings, outbox.StockFailure{
			ProductID: failure.Item.ProductID,
			ColorName: failure.Item.ColorName,
			Quantity:  failure.Item.Quantity,
			Reason:    failureReason(failure.Reason),
		})
	}

	if len(warnings) > 0 {
		if emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockDebitFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actor.ref(),
				Data:          outbox.StockDebitFailedPayload{OrderID: order.ID, Failures: warnings},
			})
		}); emitErr != nil {
			s.logg.Error(ctx, "failed to flag stock debit failure", emitErr)
		}
	}
	return warnings
}

// creditAfterCommit restores stock for every item of a cancelled order.
// Failures are logged and counted but the cancellation stands.
func (s *service) creditAfterCommit(ctx context.Context, order *models.Order, reason enums.StockMovementReason) {
	failures, _ := s.stock.CreditItems(ctx, ledgerItems(order.Items), reason, &order.ID)
	for _, failure := range failures {
		s.meters.IncStockCreditFailure()
		s.logg.Error(
			s.logg.WithFields(ctx, map[string]any{
				"order_id":   order.ID.String(),
				"product_id": failure.Item.ProductID.String(),
				"color_name": failure.Item.ColorName,
				"quantity":   failure.Item.Quantity,
			}),
			"stock credit failed during cancellation", failure.Reason,
		)
	}
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, from, to enums.OrderStatus, actor Actor) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data:          outbox.OrderStatusChangedPayload{OrderID: order.ID, From: from, To: to},
	})
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return order, nil
}

func stampShipped(order *models.Order, now time.Time) {
	if order.Tracking == nil {
		order.Tracking = &models.TrackingInfo{}
	}
	if order.Tracking.ShippedAt == nil {
		order.Tracking.ShippedAt = &now
	}
}

func stampDelivered(order *models.Order, now time.Time) {
	if order.DeliveredAt == nil {
		order.DeliveredAt = &now
	}
	if order.Tracking == nil {
		order.Tracking = &models.TrackingInfo{}
	}
	if order.Tracking.DeliveredAt == nil {
		order.Tracking.DeliveredAt = &now
	}
	if order.Payment.Method == enums.PaymentMethodCOD && order.Payment.Status != enums.PaymentStatusCompleted {
		order.Payment.Status = enums.PaymentStatusCompleted
		order.Payment.PaidAt = &now
	}
}

func ledgerItems(items []models.OrderItem) []inventory.Item {
	moves := make([]inventory.Item, 0, len(items))
	for _, item := range items {
		moves = append(moves, inventory.Item{
			ProductID: item.ProductID,
			ColorName: item.ColorName,
			Quantity:  item.Quantity,
		})
	}
	return moves
}

func insufficientStock(productID uuid.UUID, colorName string, requested, available int) error {
	details := map[string]interface{}{
		"product_id": productID,
		"requested":  requested,
		"available":  available,
	}
	if colorName != "" {
		details["color_name"] = colorName
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(details)
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	if err != nil {
		return err.Error()
	}
	return "unknown"
}

func buildListResult(rows []models.Order, limit int) *ListResult {
	page, hasMore := pagination.Trim(rows, limit)
	result := &ListResult{Orders: page}
	if hasMore {
		last := page[len(page)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result
}
