package aftersales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/internal/inventory"
	"github.com/davidmarcano/storefront-backend/internal/orders"
	"github.com/davidmarcano/storefront-backend/internal/policy"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/metrics"
	"github.com/davidmarcano/storefront-backend/pkg/outbox"
)

// Eligibility is the computed answer to "can this order still open a
// return or replacement". Returns and replacements run on separate
// windows, so each path carries its own verdict. It is never persisted;
// every check re-derives it from the current policy and the wall clock.
type Eligibility struct {
	Eligible                 bool   `json:"eligible"`
	EligibleForReturn        bool   `json:"eligibleForReturn"`
	EligibleForReplacement   bool   `json:"eligibleForReplacement"`
	Returnable               bool   `json:"returnable"`
	Replaceable              bool   `json:"replaceable"`
	ReturnWindowDays         int    `json:"returnWindowDays"`
	ReplacementWindowDays    int    `json:"replacementWindowDays"`
	RemainingReturnDays      int    `json:"remainingReturnDays"`
	RemainingReplacementDays int    `json:"remainingReplacementDays"`
	Reason                   string `json:"reason,omitempty"`

	elapsedDays int
}

func (e *Eligibility) allows(t enums.AfterSalesType) bool {
	if t == enums.AfterSalesTypeReplacement {
		return e.EligibleForReplacement
	}
	return e.EligibleForReturn
}

func (e *Eligibility) blockedReason(t enums.AfterSalesType) string {
	if e.Reason != "" {
		return e.Reason
	}
	if t == enums.AfterSalesTypeReplacement {
		if !e.Replaceable {
			return "one or more items are excluded from replacement"
		}
		return fmt.Sprintf("the %d-day replacement window closed %d days ago",
			e.ReplacementWindowDays, e.elapsedDays-e.ReplacementWindowDays)
	}
	if !e.Returnable {
		return "one or more items are excluded from return"
	}
	return fmt.Sprintf("the %d-day return window closed %d days ago",
		e.ReturnWindowDays, e.elapsedDays-e.ReturnWindowDays)
}

// SubmitInput opens a request on a delivered order. Empty Items means
// the whole order.
type SubmitInput struct {
	Type   enums.AfterSalesType
	Reason string
	Items  []models.AfterSalesItem
}

// CompleteInput optionally names the replacement lines shipped out for a
// replacement request. Empty means the original items are re-sent.
type CompleteInput struct {
	Replacements []models.AfterSalesItem
}

// Service drives the return/replacement sub-machine embedded on orders.
type Service interface {
	CheckEligibility(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*Eligibility, error)
	Submit(ctx context.Context, orderID uuid.UUID, input SubmitInput, actor orders.Actor) (*models.Order, error)
	Approve(ctx context.Context, orderID uuid.UUID, notes string, actor orders.Actor) (*models.Order, error)
	Reject(ctx context.Context, orderID uuid.UUID, notes string, actor orders.Actor) (*models.Order, error)
	Complete(ctx context.Context, orderID uuid.UUID, input CompleteInput, actor orders.Actor) (*models.Order, error)
}

type transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productGetter interface {
	GetProductWithVariants(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type policyResolver interface {
	ResolveForProduct(ctx context.Context, product *models.Product) (policy.Resolved, error)
}

type stockLedger interface {
	DebitItems(ctx context.Context, items []inventory.Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]inventory.Failure, error)
	CreditItems(ctx context.Context, items []inventory.Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]inventory.Failure, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     orders.Repository
	tx       transactor
	products productGetter
	policies policyResolver
	stock    stockLedger
	events   eventEmitter
	meters   *metrics.StorefrontMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the after-sales workflow. meters may be nil.
func NewService(
	repo orders.Repository,
	tx transactor,
	products productGetter,
	policies policyResolver,
	stock stockLedger,
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
	if products == nil {
		return nil, fmt.Errorf("product getter required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy resolver required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
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
		products: products,
		policies: policies,
		stock:    stock,
		events:   events,
		meters:   meters,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) CheckEligibility(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*Eligibility, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return s.evaluate(ctx, order)
}

// evaluate resolves the policy for every order line, takes the most
// restrictive window, and compares it against time since delivery.
func (s *service) evaluate(ctx context.Context, order *models.Order) (*Eligibility, error) {
	if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil {
		return &Eligibility{Reason: fmt.Sprintf("order is %s, not delivered", order.Status)}, nil
	}
	if order.AfterSales != nil && order.AfterSales.Status.Blocks() {
		return &Eligibility{
			Reason: fmt.Sprintf("a %s request is already %s", order.AfterSales.Type, order.AfterSales.Status),
		}, nil
	}

	returnable := true
	replaceable := true
	returnWindow := 0
	replacementWindow := 0
	for i, item := range order.Items {
		resolved, err := s.resolveLine(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		returnable = returnable && resolved.Returnable
		replaceable = replaceable && resolved.Replaceable
		if i == 0 || resolved.ReturnWindowDays < returnWindow {
			returnWindow = resolved.ReturnWindowDays
		}
		if i == 0 || resolved.ReplacementWindowDays < replacementWindow {
			replacementWindow = resolved.ReplacementWindowDays
		}
	}

	elapsedDays := int(s.now().Sub(*order.DeliveredAt).Hours() / 24)

	result := &Eligibility{
		Returnable:               returnable,
		Replaceable:              replaceable,
		ReturnWindowDays:         returnWindow,
		ReplacementWindowDays:    replacementWindow,
		RemainingReturnDays:      clampDays(returnWindow - elapsedDays),
		RemainingReplacementDays: clampDays(replacementWindow - elapsedDays),
		elapsedDays:              elapsedDays,
	}
	result.EligibleForReturn = returnable && elapsedDays <= returnWindow
	result.EligibleForReplacement = replaceable && elapsedDays <= replacementWindow
	result.Eligible = result.EligibleForReturn || result.EligibleForReplacement
	if !result.Eligible {
		if !returnable && !replaceable {
			result.Reason = "one or more items are excluded from after-sales"
		} else {
			result.Reason = "no after-sales path is open for this order"
		}
	}
	return result, nil
}

func clampDays(days int) int {
	if days < 0 {
		return 0
	}
	return days
}

// resolveLine falls back to the site-wide policy when the product has
// been removed from the catalog since the order was placed.
func (s *service) resolveLine(ctx context.Context, productID uuid.UUID) (policy.Resolved, error) {
	product, err := s.products.GetProductWithVariants(ctx, productID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return s.policies.ResolveForProduct(ctx, nil)
		}
		return policy.Resolved{}, err
	}
	return s.policies.ResolveForProduct(ctx, product)
}

func (s *service) Submit(ctx context.Context, orderID uuid.UUID, input SubmitInput, actor orders.Actor) (*models.Order, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid after-sales type")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required")
	}

	var updated *models.Order
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, txRepo, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders accept after-sales requests").
				WithDetails(map[string]interface{}{"current_status": order.Status})
		}
		if order.AfterSales != nil && order.AfterSales.Status.Blocks() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a request is already in progress").
				WithDetails(map[string]interface{}{"request_status": order.AfterSales.Status})
		}

		eligibility, err := s.evaluate(ctx, order)
		if err != nil {
			return err
		}
		if !eligibility.allows(input.Type) {
			return pkgerrors.New(pkgerrors.CodeValidation, eligibility.blockedReason(input.Type))
		}

		items, err := requestItems(order, input.Items)
		if err != nil {
			return err
		}

		now := s.now()
		order.AfterSales = &models.AfterSalesRequest{
			Type:        input.Type,
			Status:      enums.AfterSalesStatusPending,
			Reason:      reason,
			Items:       items,
			RequestedAt: now,
		}
		if err := txRepo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		updated = order
		return nil
	}); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()),
		"after-sales request submitted: "+input.Type.String())
	return updated, nil
}

// requestItems validates the requested lines against the order snapshot,
// defaulting to every line when none are named.
func requestItems(order *models.Order, requested []models.AfterSalesItem) ([]models.AfterSalesItem, error) {
	if len(requested) == 0 {
		items := make([]models.AfterSalesItem, 0, len(order.Items))
		for _, line := range order.Items {
			items = append(items, models.AfterSalesItem{
				ProductID: line.ProductID,
				ColorName: line.ColorName,
				Quantity:  line.Quantity,
			})
		}
		return items, nil
	}

	for _, item := range requested {
		line := findLine(order, item.ProductID, item.ColorName)
		if line == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested item is not part of the order").
				WithDetails(map[string]interface{}{"product_id": item.ProductID, "color_name": item.ColorName})
		}
		if item.Quantity <= 0 || item.Quantity > line.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested quantity exceeds the ordered quantity").
				WithDetails(map[string]interface{}{"product_id": item.ProductID, "requested": item.Quantity, "ordered": line.Quantity})
		}
	}
	return requested, nil
}

func findLine(order *models.Order, productID uuid.UUID, colorName string) *models.OrderItem {
	for i := range order.Items {
		if order.Items[i].ProductID == productID && order.Items[i].ColorName == colorName {
			return &order.Items[i]
		}
	}
	return nil
}

func (s *service) Approve(ctx context.Context, orderID uuid.UUID, notes string, actor orders.Actor) (*models.Order, error) {
	return s.decide(ctx, orderID, enums.AfterSalesStatusApproved, notes, actor)
}

func (s *service) Reject(ctx context.Context, orderID uuid.UUID, notes string, actor orders.Actor) (*models.Order, error) {
	return s.decide(ctx, orderID, enums.AfterSalesStatusRejected, notes, actor)
}

func (s *service) decide(ctx context.Context, orderID uuid.UUID, to enums.AfterSalesStatus, notes string, actor orders.Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var updated *models.Order
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, txRepo, orderID)
		if err != nil {
			return err
		}
		if err := requireRequestStatus(order, enums.AfterSalesStatusPending); err != nil {
			return err
		}

		now := s.now()
		order.AfterSales.Status = to
		order.AfterSales.DecidedAt = &now
		order.AfterSales.DecisionNotes = strings.TrimSpace(notes)

		if err := txRepo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		if err := s.emitDecision(ctx, tx, order, actor); err != nil {
			return err
		}
		updated = order
		return nil
	}); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()),
		"after-sales request "+to.String())
	return updated, nil
}

func (s *service) Complete(ctx context.Context, orderID uuid.UUID, input CompleteInput, actor orders.Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var updated *models.Order
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, txRepo, orderID)
		if err != nil {
			return err
		}
		if err := requireRequestStatus(order, enums.AfterSalesStatusApproved); err != nil {
			return err
		}
		if order.AfterSales.Type == enums.AfterSalesTypeReplacement && len(input.Replacements) > 0 {
			if _, err := requestItems(order, input.Replacements); err != nil {
				return err
			}
		}

		now := s.now()
		order.AfterSales.Status = enums.AfterSalesStatusCompleted
		order.AfterSales.CompletedAt = &now
		if order.AfterSales.Type == enums.AfterSalesTypeReturn {
			order.Status = enums.OrderStatusReturned
		}

		if err := txRepo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		if err := s.emitDecision(ctx, tx, order, actor); err != nil {
			return err
		}
		if order.Status == enums.OrderStatusReturned {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actorRef(actor),
				Data: outbox.OrderStatusChangedPayload{
					OrderID: order.ID,
					From:    enums.OrderStatusDelivered,
					To:      enums.OrderStatusReturned,
				},
			}); err != nil {
				return err
			}
		}
		updated = order
		return nil
	}); err != nil {
		return nil, err
	}

	s.applyStockMoves(ctx, updated, input)
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()),
		"after-sales request completed: "+updated.AfterSales.Type.String())
	return updated, nil
}

// applyStockMoves runs the completion's inventory side effects after the
// commit. Return credits the items back; replacement credits the
// originals and debits what ships out instead. Failures are logged and
// counted, never unwound.
func (s *service) applyStockMoves(ctx context.Context, order *models.Order, input CompleteInput) {
	items := ledgerItems(order.AfterSales.Items)

	switch order.AfterSales.Type {
	case enums.AfterSalesTypeReturn:
		s.creditBestEffort(ctx, order, items, enums.MovementReasonReturn)
	case enums.AfterSalesTypeReplacement:
		s.creditBestEffort(ctx, order, items, enums.MovementReasonReplacement)

		outgoing := items
		if len(input.Replacements) > 0 {
			outgoing = ledgerItems(input.Replacements)
		}
		failures, err := s.stock.DebitItems(ctx, outgoing, enums.MovementReasonReplacement, &order.ID)
		if err != nil {
			failures = append(failures, inventory.Failure{Reason: err})
		}
		for _, failure := range failures {
			s.meters.IncStockDebitFailure()
			s.logg.Error(s.logg.WithFields(ctx, map[string]interface{}{
				"order_id":   order.ID.String(),
				"product_id": failure.Item.ProductID.String(),
				"color_name": failure.Item.ColorName,
			}), "replacement stock debit failed", failure.Reason)
		}
	}
}

func (s *service) creditBestEffort(ctx context.Context, order *models.Order, items []inventory.Item, reason enums.StockMovementReason) {
	failures, err := s.stock.CreditItems(ctx, items, reason, &order.ID)
	if err != nil {
		failures = append(failures, inventory.Failure{Reason: err})
	}
	for _, failure := range failures {
		s.meters.IncStockCreditFailure()
		s.logg.Error(s.logg.WithFields(ctx, map[string]interface{}{
			"order_id":   order.ID.String(),
			"product_id": failure.Item.ProductID.String(),
			"color_name": failure.Item.ColorName,
		}), "after-sales stock credit failed", failure.Reason)
	}
}

func (s *service) emitDecision(ctx context.Context, tx *gorm.DB, order *models.Order, actor orders.Actor) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAfterSalesDecided,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(actor),
		Data: outbox.AfterSalesDecidedPayload{
			OrderID: order.ID,
			Type:    order.AfterSales.Type,
			Status:  order.AfterSales.Status,
		},
	})
}

func requireRequestStatus(order *models.Order, want enums.AfterSalesStatus) error {
	current := enums.AfterSalesStatusNone
	if order.AfterSales != nil {
		current = order.AfterSales.Status
	}
	if current != want {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("request is %s, expected %s", current, want)).
			WithDetails(map[string]interface{}{"request_status": current})
	}
	return nil
}

func (s *service) loadOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return order, nil
}

func ledgerItems(items []models.AfterSalesItem) []inventory.Item {
	out := make([]inventory.Item, 0, len(items))
	for _, item := range items {
		out = append(out, inventory.Item{
			ProductID: item.ProductID,
			ColorName: item.ColorName,
			Quantity:  item.Quantity,
		})
	}
	return out
}

func actorRef(actor orders.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
}
