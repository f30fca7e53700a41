// Package service implements the order lifecycle: creation from a cart,
// updates, fulfillment, shipment, payment capture, refunds, returns,
// cancellation and archival, plus the query layer and totals decoration.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/events"
	"github.com/dukerupert/vanir/internal/fulfillment"
	"github.com/dukerupert/vanir/internal/inventory"
	"github.com/dukerupert/vanir/internal/payment"
	"github.com/dukerupert/vanir/internal/region"
	"github.com/dukerupert/vanir/internal/store"
	"github.com/dukerupert/vanir/internal/telemetry"
	"github.com/dukerupert/vanir/internal/totals"
)

// FulfillmentConfig carries optional settings for CreateFulfillment.
type FulfillmentConfig struct {
	// NoNotification overrides the order's notification flag when set.
	NoNotification *bool
	Metadata       map[string]any
}

// ShipmentConfig carries optional settings for CreateShipment.
type ShipmentConfig struct {
	// NoNotification overrides the fulfillment's notification flag when set.
	NoNotification *bool
	Metadata       map[string]any
}

// OrderService provides business logic for the order lifecycle and order
// retrieval. Every mutating operation runs inside a single transaction;
// events raised during the operation are published only after the
// transaction commits.
type OrderService interface {
	// CreateFromCart converts a completed cart into an order, reserving
	// inventory and consuming gift card balances.
	CreateFromCart(ctx context.Context, cartID string) (*domain.Order, error)

	// Update applies field updates to an order that has not progressed past
	// the point where the updated fields are frozen.
	Update(ctx context.Context, orderID string, input domain.UpdateOrderInput) (*domain.Order, error)

	// AddShippingMethod attaches a shipping method to the order, replacing
	// any existing method that shares the option's shipping profile.
	AddShippingMethod(ctx context.Context, orderID string, option domain.ShippingOption, price int64, data map[string]any) (*domain.Order, error)

	// CreateFulfillment fulfills the given item quantities through the
	// fulfillment provider.
	CreateFulfillment(ctx context.Context, orderID string, items []domain.FulfillmentItem, cfg FulfillmentConfig) (*domain.Order, error)

	// CreateShipment marks a fulfillment shipped and records tracking links.
	CreateShipment(ctx context.Context, orderID, fulfillmentID string, trackingLinks []domain.TrackingLink, cfg ShipmentConfig) (*domain.Order, error)

	// CancelFulfillment cancels a fulfillment and restores the fulfilled
	// quantities. Canceling an already-canceled fulfillment is a no-op.
	CancelFulfillment(ctx context.Context, fulfillmentID string) (*domain.Order, error)

	// CapturePayment captures every uncaptured payment on the order,
	// tolerating per-payment failures.
	CapturePayment(ctx context.Context, orderID string) (*domain.Order, error)

	// CreateRefund refunds amount against the order's captured payments.
	CreateRefund(ctx context.Context, orderID string, amount int64, reason, note string, noNotification *bool) (*domain.Order, error)

	// RegisterReturnReceived records a received return against the order,
	// issuing the associated refund when it fits the refundable amount.
	RegisterReturnReceived(ctx context.Context, orderID string, received *domain.Return, customRefundAmount *int64) (*domain.Order, error)

	// Cancel cancels the order, restoring inventory and voiding payments.
	Cancel(ctx context.Context, orderID string) (*domain.Order, error)

	// CompleteOrder marks the order completed.
	CompleteOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// Archive archives a completed or fully refunded order.
	Archive(ctx context.Context, orderID string) (*domain.Order, error)

	// List returns orders matching the selector.
	List(ctx context.Context, selector store.Selector, cfg QueryConfig) ([]*domain.Order, error)

	// ListAndCount returns matching orders plus the total match count.
	ListAndCount(ctx context.Context, selector store.Selector, cfg QueryConfig) ([]*domain.Order, int64, error)

	// Retrieve loads one order by id.
	Retrieve(ctx context.Context, orderID string, cfg QueryConfig) (*domain.Order, error)

	// RetrieveWithTotals loads one order with the full totals breakdown.
	RetrieveWithTotals(ctx context.Context, orderID string, cfg QueryConfig) (*domain.Order, error)

	// RetrieveByCartID loads the order created from the given cart.
	RetrieveByCartID(ctx context.Context, cartID string) (*domain.Order, error)

	// RetrieveByExternalID loads the order with the given external id.
	RetrieveByExternalID(ctx context.Context, externalID string) (*domain.Order, error)

	// DecorateTotals attaches derived monetary fields to an in-memory order
	// snapshot. With no fields it computes the full breakdown in one pass;
	// with an explicit field list it computes only the requested fields.
	DecorateTotals(order *domain.Order, fields ...TotalField) *domain.Order
}

type orderService struct {
	store        store.Store
	inventory    inventory.Service
	payments     payment.Provider
	fulfillments fulfillment.Provider
	regions      region.Service
	publisher    events.Publisher
	calc         *totals.Calculator
	metrics      *telemetry.BusinessMetrics
	logger       *slog.Logger
}

// NewOrderService creates the order service.
func NewOrderService(
	st store.Store,
	inventorySvc inventory.Service,
	paymentProvider payment.Provider,
	fulfillmentProvider fulfillment.Provider,
	regionSvc region.Service,
	publisher events.Publisher,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
) OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderService{
		store:        st,
		inventory:    inventorySvc,
		payments:     paymentProvider,
		fulfillments: fulfillmentProvider,
		regions:      regionSvc,
		publisher:    publisher,
		calc:         totals.NewCalculator(),
		metrics:      metrics,
		logger:       logger,
	}
}

// withOrder runs fn against the order inside one transaction and, on commit,
// publishes the events fn emitted and returns the decorated order.
func (s *orderService) withOrder(
	ctx context.Context,
	op, orderID string,
	fn func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error,
) (*domain.Order, error) {
	outbox := events.NewOutbox()
	var result *domain.Order

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound(op, "order", orderID)
		}
		if err != nil {
			return domain.Internal(err, op, "loading order")
		}
		if err := fn(ctx, tx, order, outbox); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		outbox.Discard()
		return nil, err
	}

	s.publish(ctx, outbox)
	return s.DecorateTotals(result), nil
}

// publish flushes the outbox after commit. A publish failure is logged, not
// surfaced: the state change has already committed.
func (s *orderService) publish(ctx context.Context, outbox *events.Outbox) {
	pending := outbox.Pending()
	err := outbox.Flush(ctx, s.publisher)
	published := len(pending) - len(outbox.Pending())

	for _, e := range pending[:published] {
		s.metrics.EventsPublished.WithLabelValues(e.Name).Inc()
	}
	if err != nil {
		s.logger.Error("publishing order events", "error", err)
		for _, e := range pending[published:] {
			s.metrics.EventPublishFailed.WithLabelValues(e.Name).Inc()
		}
		outbox.Discard()
	}
}

// confirmCartInventory checks stock for every cart item concurrently and
// returns the first failure.
func (s *orderService) confirmCartInventory(ctx context.Context, cart *domain.Cart) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(cart.Items))
	var wg sync.WaitGroup
	for _, item := range cart.Items {
		wg.Add(1)
		go func(it domain.LineItem) {
			defer wg.Done()
			if err := s.inventory.ConfirmInventory(ctx, it.VariantID, it.Quantity); err != nil {
				errCh <- err
				cancel()
			}
		}(item)
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}

// adjustOrderInventory applies sign*quantity to every item's variant. If an
// adjustment fails partway through, the deltas already applied are undone
// before the error is returned.
func (s *orderService) adjustOrderInventory(ctx context.Context, items []domain.LineItem, sign int64) error {
	for i, item := range items {
		if err := s.inventory.AdjustInventory(ctx, item.VariantID, sign*item.Quantity); err != nil {
			for _, applied := range items[:i] {
				if undoErr := s.inventory.AdjustInventory(ctx, applied.VariantID, -sign*applied.Quantity); undoErr != nil {
					s.logger.Error("reverting inventory adjustment",
						"variant_id", applied.VariantID, "error", undoErr)
				}
			}
			return err
		}
	}
	return nil
}

func (s *orderService) CreateFromCart(ctx context.Context, cartID string) (*domain.Order, error) {
	const op = "order.CreateFromCart"

	outbox := events.NewOutbox()
	var created *domain.Order

	// Tracked so the payment compensation survives the rollback of
	// everything else when inventory confirmation fails.
	var inventoryFailed bool
	var failedCart *domain.Cart

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Orders().GetByCartID(ctx, cartID); err == nil {
			return domain.Duplicate(op, "order from cart already exists")
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.Internal(err, op, "checking for existing order")
		}

		cart, err := tx.Carts().Get(ctx, cartID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound(op, "cart", cartID)
		}
		if err != nil {
			return domain.Internal(err, op, "loading cart")
		}

		if len(cart.Items) == 0 {
			return domain.Invalid(op, "cannot create order from empty cart")
		}
		if cart.Subtotal == nil || cart.DiscountTotal == nil || cart.Total == nil || cart.GiftCardTotal == nil {
			return domain.Unexpected(op, "cart totals are missing")
		}

		rgn := cart.Region
		if rgn == nil {
			rgn, err = s.regions.Retrieve(ctx, cart.RegionID)
			if err != nil {
				return err
			}
		}

		total := *cart.Total
		var pay *domain.Payment
		if total != 0 {
			if cart.Payment == nil || cart.PaymentAuthorizedAt == nil {
				return domain.InvalidArgument(op, "cart does not contain a valid payment method")
			}
			status, err := s.payments.GetStatus(ctx, cart.Payment)
			if err != nil {
				return domain.Internal(err, op, "getting payment status")
			}
			if status != payment.StatusAuthorized {
				return domain.InvalidArgument(op, "cart payment is not authorized")
			}
			pay = cart.Payment
		}

		if err := s.confirmCartInventory(ctx, cart); err != nil {
			inventoryFailed = true
			failedCart = cart
			return err
		}

		now := time.Now().UTC()
		order := &domain.Order{
			ID:                "order_" + uuid.New().String(),
			Status:            domain.OrderStatusPending,
			FulfillmentStatus: domain.FulfillmentStatusNotFulfilled,
			PaymentStatus:     domain.PaymentStatusAwaiting,
			CurrencyCode:      rgn.CurrencyCode,
			Email:             cart.Email,
			CustomerID:        cart.CustomerID,
			CartID:            cart.ID,
			RegionID:          cart.RegionID,
			Region:            rgn,
			ShippingAddress:   cart.ShippingAddress,
			BillingAddress:    cart.BillingAddress,
			Discounts:         cart.Discounts,
			Metadata:          cart.Metadata,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if cart.Type == "draft_order" {
			draft, err := tx.DraftOrders().GetByCartID(ctx, cart.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return domain.Internal(err, op, "loading draft order")
			}
			if draft != nil {
				order.DraftOrderID = draft.ID
				order.NoNotification = draft.NoNotificationOrder
			}
		}

		for _, item := range cart.Items {
			item.OrderID = order.ID
			order.Items = append(order.Items, item)
		}
		for _, method := range cart.ShippingMethods {
			method.OrderID = order.ID
			order.ShippingMethods = append(order.ShippingMethods, method)
		}

		if err := s.createPurchasedGiftCards(ctx, tx, order, rgn, now, outbox); err != nil {
			return err
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.Duplicate(op, "order from cart already exists")
			}
			return domain.Internal(err, op, "creating order")
		}

		// Consumption records reference the order row, so the order must
		// exist before any transactions are written.
		if len(cart.GiftCards) > 0 {
			if err := s.consumeGiftCards(ctx, tx, cart, rgn, order, now); err != nil {
				return err
			}
		}

		if pay != nil {
			if err := s.payments.UpdatePayment(ctx, pay.ID, order.ID); err != nil {
				return domain.Internal(err, op, "linking payment to order")
			}
			pay.OrderID = order.ID
			order.Payments = []domain.Payment{*pay}
		}
		if pay != nil || len(order.GiftCardTransactions) > 0 {
			if err := tx.Orders().Save(ctx, order); err != nil {
				return domain.Internal(err, op, "saving order")
			}
		}

		cart.CompletedAt = &now
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return domain.Internal(err, op, "completing cart")
		}

		// The inventory service sits outside the storage transaction, so
		// stock moves last: a rollback of any earlier write then leaves no
		// stray deltas behind.
		if err := s.adjustOrderInventory(ctx, order.Items, -1); err != nil {
			return err
		}

		outbox.Emit(events.OrderPlaced, map[string]any{
			"id":              order.ID,
			"no_notification": order.NoNotification,
		})
		created = order
		return nil
	})
	if err != nil {
		outbox.Discard()
		if inventoryFailed {
			s.releaseCartPayment(ctx, failedCart)
		}
		return nil, err
	}

	s.publish(ctx, outbox)
	s.metrics.OrdersPlaced.WithLabelValues(created.RegionID).Inc()
	s.metrics.OrderItemCount.WithLabelValues(created.RegionID).Observe(float64(len(created.Items)))

	decorated := s.DecorateTotals(created)
	s.metrics.OrderValue.WithLabelValues(decorated.CurrencyCode).Observe(float64(decorated.Total))
	return decorated, nil
}

// releaseCartPayment compensates a failed inventory reservation: the cart's
// payment is voided with the provider and the authorization stamp cleared so
// the cart can be retried.
func (s *orderService) releaseCartPayment(ctx context.Context, cart *domain.Cart) {
	if cart == nil {
		return
	}
	if cart.Payment != nil {
		if _, err := s.payments.CancelPayment(ctx, cart.Payment); err != nil {
			s.logger.Error("canceling cart payment after inventory failure",
				"cart_id", cart.ID, "error", err)
		}
	}
	cart.PaymentAuthorizedAt = nil
	if err := s.store.Carts().Save(ctx, cart); err != nil {
		s.logger.Error("clearing cart payment authorization",
			"cart_id", cart.ID, "error", err)
	}
}

// consumeGiftCards applies the cart's gift cards oldest-first against the
// gift-cardable amount, decrementing balances and recording one transaction
// per card used.
func (s *orderService) consumeGiftCards(
	ctx context.Context,
	tx store.Tx,
	cart *domain.Cart,
	rgn *domain.Region,
	order *domain.Order,
	now time.Time,
) error {
	const op = "order.CreateFromCart"

	// When the region taxes gift cards the covered amount excludes tax, so
	// the base is the pre-tax subtotal less discounts. Otherwise the cards
	// cover the grand total.
	base := *cart.Total + *cart.GiftCardTotal
	if rgn.GiftCardsTaxable {
		base = *cart.Subtotal - *cart.DiscountTotal
	}

	cards := make([]domain.GiftCard, len(cart.GiftCards))
	copy(cards, cart.GiftCards)
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})

	remaining := base
	for _, ref := range cards {
		if remaining <= 0 {
			break
		}

		card, err := tx.GiftCards().Get(ctx, ref.ID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound(op, "gift card", ref.ID)
		}
		if err != nil {
			return domain.Internal(err, op, "loading gift card")
		}
		if card.IsDisabled || card.Balance <= 0 {
			continue
		}

		amount := card.Balance
		if amount > remaining {
			amount = remaining
		}

		card.Balance -= amount
		if card.Balance == 0 {
			card.IsDisabled = true
		}
		if err := tx.GiftCards().Save(ctx, card); err != nil {
			return domain.Internal(err, op, "updating gift card balance")
		}

		var rate *float64
		if rgn.GiftCardsTaxable {
			r := rgn.TaxRate
			rate = &r
		}
		record := &domain.GiftCardTransaction{
			ID:         "gct_" + uuid.New().String(),
			GiftCardID: card.ID,
			OrderID:    order.ID,
			Amount:     amount,
			IsTaxable:  rgn.GiftCardsTaxable,
			TaxRate:    rate,
			CreatedAt:  now,
		}
		if err := tx.GiftCards().CreateTransaction(ctx, record); err != nil {
			return domain.Internal(err, op, "recording gift card transaction")
		}

		order.GiftCards = append(order.GiftCards, *card)
		order.GiftCardTransactions = append(order.GiftCardTransactions, *record)
		remaining -= amount

		s.metrics.GiftCardsRedeemed.WithLabelValues(order.RegionID).Inc()
	}
	return nil
}

// createPurchasedGiftCards turns gift card line items into live gift cards,
// one per purchased unit, valued at the per-unit price less discounts.
func (s *orderService) createPurchasedGiftCards(
	ctx context.Context,
	tx store.Tx,
	order *domain.Order,
	rgn *domain.Region,
	now time.Time,
	outbox *events.Outbox,
) error {
	const op = "order.CreateFromCart"

	cc := totals.CalculationContext{Region: rgn, Discounts: order.Discounts}
	for _, item := range order.Items {
		if !item.IsGiftCard || item.Quantity <= 0 {
			continue
		}

		lt := s.calc.LineItemTotals(item, cc)
		perUnit := (lt.Subtotal - lt.DiscountTotal) / item.Quantity

		for n := int64(0); n < item.Quantity; n++ {
			card := &domain.GiftCard{
				ID:        "gift_" + uuid.New().String(),
				Code:      giftCardCode(),
				Value:     perUnit,
				Balance:   perUnit,
				RegionID:  order.RegionID,
				CreatedAt: now,
			}
			if err := tx.GiftCards().Save(ctx, card); err != nil {
				return domain.Internal(err, op, "creating gift card")
			}
			outbox.Emit(events.OrderGiftCardCreated, map[string]any{"id": card.ID})
		}
	}
	return nil
}

func giftCardCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return raw[:4] + "-" + raw[4:8] + "-" + raw[8:12] + "-" + raw[12:16]
}

func (s *orderService) Update(ctx context.Context, orderID string, input domain.UpdateOrderInput) (*domain.Order, error) {
	const op = "order.Update"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a canceled order cannot be updated")
		}

		touchesFrozen := input.Payment != nil || len(input.Items) > 0 ||
			input.ShippingAddress != nil || input.BillingAddress != nil
		processed := order.FulfillmentStatus != domain.FulfillmentStatusNotFulfilled ||
			order.PaymentStatus != domain.PaymentStatusAwaiting ||
			order.Status != domain.OrderStatusPending
		if touchesFrozen && processed {
			return domain.NotAllowed(op,
				"cannot update shipping, billing, items and payment method of a processed order")
		}

		if input.ShippingAddress != nil {
			if err := s.validateAddressCountry(ctx, op, order.RegionID, input.ShippingAddress); err != nil {
				return err
			}
			order.ShippingAddress = input.ShippingAddress
		}
		if input.BillingAddress != nil {
			if err := s.validateAddressCountry(ctx, op, order.RegionID, input.BillingAddress); err != nil {
				return err
			}
			order.BillingAddress = input.BillingAddress
		}
		if input.Email != nil {
			order.Email = *input.Email
		}
		if input.ExternalID != nil {
			order.ExternalID = *input.ExternalID
		}
		if input.NoNotification != nil {
			order.NoNotification = *input.NoNotification
		}
		if input.Metadata != nil {
			order.SetMetadata(input.Metadata)
		}
		for _, item := range input.Items {
			if item.ID == "" {
				item.ID = "item_" + uuid.New().String()
			}
			item.OrderID = order.ID
			order.Items = append(order.Items, item)
		}
		if input.Payment != nil {
			p := *input.Payment
			p.OrderID = order.ID
			order.Payments = append(order.Payments, p)
		}

		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		outbox.Emit(events.OrderUpdated, map[string]any{
			"id":              order.ID,
			"no_notification": order.NoNotification,
		})
		return nil
	})
}

// validateAddressCountry checks the address country against the order
// region's country list.
func (s *orderService) validateAddressCountry(ctx context.Context, op, regionID string, addr *domain.Address) error {
	rgn, err := s.regions.Retrieve(ctx, regionID)
	if err != nil {
		return err
	}
	if len(rgn.Countries) == 0 {
		return nil
	}
	for _, c := range rgn.Countries {
		if strings.EqualFold(c.ISO2, addr.CountryCode) {
			return nil
		}
	}
	return domain.Invalid(op, "address country must be in the order region")
}

func (s *orderService) AddShippingMethod(ctx context.Context, orderID string, option domain.ShippingOption, price int64, data map[string]any) (*domain.Order, error) {
	const op = "order.AddShippingMethod"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a shipping method cannot be added to a canceled order")
		}

		opt := option
		method := domain.ShippingMethod{
			ID:               "sm_" + uuid.New().String(),
			OrderID:          order.ID,
			ShippingOptionID: option.ID,
			ShippingOption:   &opt,
			Price:            price,
			Data:             data,
		}

		// At most one method per shipping profile: the new method evicts any
		// existing method sharing its profile.
		kept := order.ShippingMethods[:0]
		for _, existing := range order.ShippingMethods {
			if existing.ShippingOption != nil && existing.ShippingOption.ProfileID == option.ProfileID {
				continue
			}
			kept = append(kept, existing)
		}
		order.ShippingMethods = append(kept, method)

		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		outbox.Emit(events.OrderUpdated, map[string]any{
			"id":              order.ID,
			"no_notification": order.NoNotification,
		})
		return nil
	})
}

func (s *orderService) CreateFulfillment(ctx context.Context, orderID string, items []domain.FulfillmentItem, cfg FulfillmentConfig) (*domain.Order, error) {
	const op = "order.CreateFulfillment"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a canceled order cannot be fulfilled")
		}
		if len(order.ShippingMethods) == 0 {
			return domain.NotAllowed(op, "cannot fulfill an order that lacks shipping methods")
		}

		toFulfill := make([]domain.FulfillmentItem, 0, len(items))
		for _, fi := range items {
			item := order.FindItem(fi.ItemID)
			if item == nil {
				// Items added by an external channel are tolerated.
				continue
			}
			if fi.Quantity > item.Quantity-item.FulfilledQuantity {
				return domain.NotAllowed(op, "cannot fulfill more items than have been purchased")
			}
			toFulfill = append(toFulfill, fi)
		}

		noNotification := order.NoNotification
		if cfg.NoNotification != nil {
			noNotification = *cfg.NoNotification
		}

		created, err := s.fulfillments.CreateFulfillment(ctx, order, toFulfill, fulfillment.CreateOptions{
			NoNotification: noNotification,
			Metadata:       cfg.Metadata,
		})
		if err != nil {
			return err
		}

		for _, f := range created {
			f.OrderID = order.ID
			order.Fulfillments = append(order.Fulfillments, f)
			for _, fi := range f.Items {
				if item := order.FindItem(fi.ItemID); item != nil {
					item.FulfilledQuantity += fi.Quantity
				}
			}
		}

		order.FulfillmentStatus = domain.FulfillmentStatusFulfilled
		for _, item := range order.Items {
			if item.FulfilledQuantity != item.Quantity {
				order.FulfillmentStatus = domain.FulfillmentStatusPartiallyFulfilled
				break
			}
		}

		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		for _, f := range created {
			outbox.Emit(events.OrderFulfillmentCreated, map[string]any{
				"id":              order.ID,
				"fulfillment_id":  f.ID,
				"no_notification": noNotification,
			})
			s.metrics.FulfillmentsCreated.WithLabelValues(f.ProviderID).Inc()
		}
		return nil
	})
}

func (s *orderService) CreateShipment(ctx context.Context, orderID, fulfillmentID string, trackingLinks []domain.TrackingLink, cfg ShipmentConfig) (*domain.Order, error) {
	const op = "order.CreateShipment"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a canceled order cannot be shipped")
		}

		f := order.FindFulfillment(fulfillmentID)
		if f == nil || f.OrderID != order.ID || f.CanceledAt != nil {
			return domain.NotFound(op, "fulfillment", fulfillmentID)
		}

		noNotification := f.NoNotification
		if cfg.NoNotification != nil {
			noNotification = *cfg.NoNotification
		}

		shipped, err := s.fulfillments.CreateShipment(ctx, fulfillmentID, trackingLinks, fulfillment.CreateOptions{
			NoNotification: noNotification,
			Metadata:       cfg.Metadata,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		f.ShippedAt = shipped.ShippedAt
		if f.ShippedAt == nil {
			f.ShippedAt = &now
		}
		f.TrackingLinks = trackingLinks
		f.NoNotification = noNotification

		for _, fi := range f.Items {
			if item := order.FindItem(fi.ItemID); item != nil {
				item.ShippedQuantity += fi.Quantity
			}
		}

		order.FulfillmentStatus = domain.FulfillmentStatusShipped
		for _, item := range order.Items {
			if item.ShippedQuantity != item.Quantity {
				order.FulfillmentStatus = domain.FulfillmentStatusPartiallyShipped
				break
			}
		}

		order.UpdatedAt = now
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		outbox.Emit(events.OrderShipmentCreated, map[string]any{
			"id":              order.ID,
			"fulfillment_id":  fulfillmentID,
			"no_notification": noNotification,
		})
		s.metrics.ShipmentsCreated.WithLabelValues(f.ProviderID).Inc()
		return nil
	})
}

func (s *orderService) CancelFulfillment(ctx context.Context, fulfillmentID string) (*domain.Order, error) {
	const op = "order.CancelFulfillment"

	canceled, err := s.fulfillments.CancelFulfillment(ctx, fulfillmentID)
	if err != nil {
		return nil, err
	}
	if canceled.OrderID == "" {
		return nil, domain.NotAllowed(op, "cannot cancel a fulfillment that is not related to an order")
	}

	return s.withOrder(ctx, op, canceled.OrderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		f := order.FindFulfillment(fulfillmentID)
		if f == nil {
			return domain.NotFound(op, "fulfillment", fulfillmentID)
		}
		if f.CanceledAt != nil {
			// Already canceled: nothing to re-apply, nothing to re-emit.
			return nil
		}

		now := time.Now().UTC()
		f.CanceledAt = &now
		for _, fi := range f.Items {
			if item := order.FindItem(fi.ItemID); item != nil {
				item.FulfilledQuantity -= fi.Quantity
			}
		}
		order.FulfillmentStatus = domain.FulfillmentStatusCanceled

		order.UpdatedAt = now
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		outbox.Emit(events.OrderFulfillmentCanceled, map[string]any{
			"id":              order.ID,
			"fulfillment_id":  fulfillmentID,
			"no_notification": f.NoNotification,
		})
		s.metrics.FulfillmentsCanceled.WithLabelValues(f.ProviderID).Inc()
		return nil
	})
}

func (s *orderService) CapturePayment(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.CapturePayment"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a canceled order cannot capture payment")
		}

		allCaptured := true
		for i := range order.Payments {
			p := &order.Payments[i]
			if p.CapturedAt != nil {
				continue
			}

			captured, err := s.payments.CapturePayment(ctx, p)
			if err != nil {
				// Tolerated per payment: the failure is surfaced as an event
				// and the uncaptured payment is retained.
				s.logger.Warn("payment capture failed",
					"order_id", order.ID, "payment_id", p.ID, "error", err)
				outbox.Emit(events.OrderPaymentCaptureFailed, map[string]any{
					"id":              order.ID,
					"payment_id":      p.ID,
					"error":           err.Error(),
					"no_notification": order.NoNotification,
				})
				s.metrics.PaymentCaptureFailed.WithLabelValues(p.ProviderID).Inc()
				allCaptured = false
				continue
			}

			*p = *captured
			if p.CapturedAt == nil {
				allCaptured = false
				continue
			}
			s.metrics.PaymentsCaptured.WithLabelValues(p.ProviderID).Inc()
		}

		if allCaptured {
			order.PaymentStatus = domain.PaymentStatusCaptured
			outbox.Emit(events.OrderPaymentCaptured, map[string]any{
				"id":              order.ID,
				"no_notification": order.NoNotification,
			})
		} else {
			order.PaymentStatus = domain.PaymentStatusRequiresAction
		}

		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}
		return nil
	})
}

func (s *orderService) CreateRefund(ctx context.Context, orderID string, amount int64, reason, note string, noNotification *bool) (*domain.Order, error) {
	const op = "order.CreateRefund"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a canceled order cannot be refunded")
		}

		s.DecorateTotals(order)
		if amount > order.RefundableAmount {
			return domain.NotAllowed(op, "cannot refund more than the original order amount")
		}

		refund, err := s.payments.RefundPayment(ctx, order.Payments, amount, reason, note)
		if err != nil {
			return err
		}
		refund.OrderID = order.ID
		order.Refunds = append(order.Refunds, *refund)

		refunded := order.RefundedTotal + refund.Amount
		if refunded == order.PaidTotal {
			order.PaymentStatus = domain.PaymentStatusRefunded
		} else if refunded > 0 {
			order.PaymentStatus = domain.PaymentStatusPartiallyRefunded
		}

		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		resolved := order.NoNotification
		if noNotification != nil {
			resolved = *noNotification
		}
		outbox.Emit(events.OrderRefundCreated, map[string]any{
			"id":              order.ID,
			"refund_id":       refund.ID,
			"no_notification": resolved,
		})
		s.metrics.RefundsIssued.WithLabelValues(reason).Inc()
		s.metrics.RefundAmount.WithLabelValues(order.CurrencyCode).Add(float64(refund.Amount))
		return nil
	})
}

func (s *orderService) RegisterReturnReceived(ctx context.Context, orderID string, received *domain.Return, customRefundAmount *int64) (*domain.Order, error) {
	const op = "order.RegisterReturnReceived"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a canceled order cannot receive a return")
		}
		if received == nil || received.OrderID != order.ID {
			id := ""
			if received != nil {
				id = received.ID
			}
			return domain.NotFound(op, "return", id)
		}

		refundAmount := received.RefundAmount
		if customRefundAmount != nil {
			refundAmount = *customRefundAmount
		}

		s.DecorateTotals(order)
		now := time.Now().UTC()

		if refundAmount > order.RefundableAmount {
			// The return cannot be settled automatically; flag the order and
			// stop before any refund is issued.
			order.FulfillmentStatus = domain.FulfillmentStatusRequiresAction
			s.applyReturn(order, received, domain.ReturnStatusRequiresAction, refundAmount, &now)
			order.UpdatedAt = now
			if err := tx.Orders().Save(ctx, order); err != nil {
				return domain.Internal(err, op, "saving order")
			}
			outbox.Emit(events.OrderReturnActionRequired, map[string]any{
				"id":              order.ID,
				"return_id":       received.ID,
				"no_notification": received.NoNotification,
			})
			return nil
		}

		for _, ri := range received.Items {
			if item := order.FindItem(ri.ItemID); item != nil {
				qty := ri.ReceivedQuantity
				if qty == 0 {
					qty = ri.Quantity
				}
				item.ReturnedQuantity += qty
			}
		}

		if refundAmount > 0 {
			refund, err := s.payments.RefundPayment(ctx, order.Payments, refundAmount, "return", "")
			if err != nil {
				return err
			}
			refund.OrderID = order.ID
			order.Refunds = append(order.Refunds, *refund)

			refunded := order.RefundedTotal + refund.Amount
			if refunded == order.PaidTotal {
				order.PaymentStatus = domain.PaymentStatusRefunded
			} else if refunded > 0 {
				order.PaymentStatus = domain.PaymentStatusPartiallyRefunded
			}
			s.metrics.RefundsIssued.WithLabelValues("return").Inc()
			s.metrics.RefundAmount.WithLabelValues(order.CurrencyCode).Add(float64(refund.Amount))
		}

		if order.AllItemsReturned() {
			order.FulfillmentStatus = domain.FulfillmentStatusReturned
		} else {
			order.FulfillmentStatus = domain.FulfillmentStatusPartiallyReturned
		}
		s.applyReturn(order, received, domain.ReturnStatusReceived, refundAmount, &now)

		order.UpdatedAt = now
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		outbox.Emit(events.OrderItemsReturned, map[string]any{
			"id":              order.ID,
			"return_id":       received.ID,
			"no_notification": received.NoNotification,
		})
		s.metrics.ReturnsReceived.WithLabelValues(order.RegionID).Inc()
		return nil
	})
}

// applyReturn upserts the return record on the order aggregate with the
// outcome of the reception.
func (s *orderService) applyReturn(order *domain.Order, received *domain.Return, status domain.ReturnStatus, refundAmount int64, receivedAt *time.Time) {
	for i := range order.Returns {
		if order.Returns[i].ID == received.ID {
			order.Returns[i].Status = status
			order.Returns[i].Items = received.Items
			order.Returns[i].RefundAmount = refundAmount
			order.Returns[i].ReceivedAt = receivedAt
			return
		}
	}
	r := *received
	r.Status = status
	r.RefundAmount = refundAmount
	r.ReceivedAt = receivedAt
	order.Returns = append(order.Returns, r)
}

func (s *orderService) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.Cancel"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if len(order.Refunds) > 0 {
			return domain.NotAllowed(op, "order with refund(s) cannot be canceled")
		}

		for _, f := range order.Fulfillments {
			if f.CanceledAt == nil {
				return domain.NotAllowed(op, "all fulfillments must be canceled before the order can be canceled")
			}
		}
		for _, r := range order.Returns {
			if r.Status != domain.ReturnStatusCanceled {
				return domain.NotAllowed(op, "all returns must be canceled before the order can be canceled")
			}
		}
		for _, sw := range order.Swaps {
			if sw.CanceledAt == nil {
				return domain.NotAllowed(op, "all swaps must be canceled before the order can be canceled")
			}
		}
		for _, c := range order.Claims {
			if c.CanceledAt == nil {
				return domain.NotAllowed(op, "all claims must be canceled before the order can be canceled")
			}
		}

		for i := range order.Payments {
			p := &order.Payments[i]
			canceled, err := s.payments.CancelPayment(ctx, p)
			if err != nil {
				return domain.Internal(err, op, "canceling payment")
			}
			*p = *canceled
		}

		now := time.Now().UTC()
		order.Status = domain.OrderStatusCanceled
		order.FulfillmentStatus = domain.FulfillmentStatusCanceled
		order.PaymentStatus = domain.PaymentStatusCanceled
		order.CanceledAt = &now
		order.UpdatedAt = now
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		// Restock only once every fallible write has gone through, so a
		// rollback cannot leave the shelves out of step with the order.
		if err := s.adjustOrderInventory(ctx, order.Items, 1); err != nil {
			return err
		}

		outbox.Emit(events.OrderCanceled, map[string]any{
			"id":              order.ID,
			"no_notification": order.NoNotification,
		})
		s.metrics.OrdersCanceled.WithLabelValues(order.RegionID).Inc()
		return nil
	})
}

func (s *orderService) CompleteOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.CompleteOrder"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status == domain.OrderStatusCanceled {
			return domain.NotAllowed(op, "a canceled order cannot be completed")
		}

		order.Status = domain.OrderStatusCompleted
		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}

		outbox.Emit(events.OrderCompleted, map[string]any{
			"id":              order.ID,
			"no_notification": order.NoNotification,
		})
		s.metrics.OrdersCompleted.WithLabelValues(order.RegionID).Inc()
		return nil
	})
}

func (s *orderService) Archive(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.Archive"

	return s.withOrder(ctx, op, orderID, func(ctx context.Context, tx store.Tx, order *domain.Order, outbox *events.Outbox) error {
		if order.Status != domain.OrderStatusCompleted && order.PaymentStatus != domain.PaymentStatusRefunded {
			return domain.NotAllowed(op, "cannot archive an unprocessed order")
		}

		order.Status = domain.OrderStatusArchived
		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return domain.Internal(err, op, "saving order")
		}
		return nil
	})
}
