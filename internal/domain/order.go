package domain

import (
	"time"
)

// OrderStatus is the top-level lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusArchived  OrderStatus = "archived"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// FulfillmentStatus tracks how far an order's items have progressed through
// fulfillment and shipping.
type FulfillmentStatus string

const (
	FulfillmentStatusNotFulfilled       FulfillmentStatus = "not_fulfilled"
	FulfillmentStatusPartiallyFulfilled FulfillmentStatus = "partially_fulfilled"
	FulfillmentStatusFulfilled          FulfillmentStatus = "fulfilled"
	FulfillmentStatusPartiallyShipped   FulfillmentStatus = "partially_shipped"
	FulfillmentStatusShipped            FulfillmentStatus = "shipped"
	FulfillmentStatusPartiallyReturned  FulfillmentStatus = "partially_returned"
	FulfillmentStatusReturned           FulfillmentStatus = "returned"
	FulfillmentStatusRequiresAction     FulfillmentStatus = "requires_action"
	FulfillmentStatusCanceled           FulfillmentStatus = "canceled"
)

// PaymentStatus tracks the payment side of the order lifecycle.
type PaymentStatus string

const (
	PaymentStatusAwaiting          PaymentStatus = "awaiting"
	PaymentStatusCaptured          PaymentStatus = "captured"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusRequiresAction    PaymentStatus = "requires_action"
	PaymentStatusCanceled          PaymentStatus = "canceled"
)

// ReturnStatus is the lifecycle status of a return.
type ReturnStatus string

const (
	ReturnStatusRequested      ReturnStatus = "requested"
	ReturnStatusReceived       ReturnStatus = "received"
	ReturnStatusRequiresAction ReturnStatus = "requires_action"
	ReturnStatusCanceled       ReturnStatus = "canceled"
)

// Address is a shipping or billing address. Addresses are owned exclusively
// by the order that references them.
type Address struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

// Country is a country belonging to a region.
type Country struct {
	ISO2     string `json:"iso_2"`
	Name     string `json:"name"`
	RegionID string `json:"region_id,omitempty"`
}

// Region carries the tax and currency rules used when pricing an order.
// Regions are shared entities; orders hold a non-owning reference plus a
// snapshot used for totals computation.
type Region struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CurrencyCode     string    `json:"currency_code"`
	TaxRate          float64   `json:"tax_rate"`
	GiftCardsTaxable bool      `json:"gift_cards_taxable"`
	Countries        []Country `json:"countries,omitempty"`
}

// DiscountRule describes how a discount applies.
type DiscountRule struct {
	ID         string `json:"id"`
	Type       string `json:"type"` // "fixed", "percentage" or "free_shipping"
	Value      int64  `json:"value"`
	Allocation string `json:"allocation,omitempty"` // "total" or "item"
}

// Discount is a shared promotion entity referenced by an order.
type Discount struct {
	ID   string        `json:"id"`
	Code string        `json:"code"`
	Rule *DiscountRule `json:"rule,omitempty"`
}

// GiftCard is a stored-value card. Its balance is decremented atomically as
// it is consumed during order creation.
type GiftCard struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Value      int64     `json:"value"`
	Balance    int64     `json:"balance"`
	RegionID   string    `json:"region_id,omitempty"`
	IsDisabled bool      `json:"is_disabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// GiftCardTransaction records an immutable consumption of gift card balance
// against an order, including the taxability and rate at time of use.
type GiftCardTransaction struct {
	ID         string    `json:"id"`
	GiftCardID string    `json:"gift_card_id"`
	OrderID    string    `json:"order_id"`
	Amount     int64     `json:"amount"`
	IsTaxable  bool      `json:"is_taxable"`
	TaxRate    *float64  `json:"tax_rate,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TaxLine is a single tax rate applied to a line item or shipping method.
type TaxLine struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Code string  `json:"code,omitempty"`
	Rate float64 `json:"rate"` // percentage, e.g. 10 for 10%
}

// LineItemAdjustment is a discount amount allocated to a single line item.
type LineItemAdjustment struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	DiscountID  string `json:"discount_id,omitempty"`
	Amount      int64  `json:"amount"`
}

// LineItem belongs to exactly one order, or to a swap/claim's additional
// items. Quantities obey fulfilled_quantity <= quantity; shipped_quantity is
// tracked independently and may lag fulfilled_quantity.
type LineItem struct {
	ID                string               `json:"id"`
	OrderID           string               `json:"order_id,omitempty"`
	SwapID            string               `json:"swap_id,omitempty"`
	ClaimOrderID      string               `json:"claim_order_id,omitempty"`
	VariantID         string               `json:"variant_id"`
	Title             string               `json:"title"`
	Description       string               `json:"description,omitempty"`
	Quantity          int64                `json:"quantity"`
	FulfilledQuantity int64                `json:"fulfilled_quantity"`
	ShippedQuantity   int64                `json:"shipped_quantity"`
	ReturnedQuantity  int64                `json:"returned_quantity"`
	UnitPrice         int64                `json:"unit_price"`
	IsGiftCard        bool                 `json:"is_giftcard,omitempty"`
	IncludesTax       bool                 `json:"includes_tax"`
	Adjustments       []LineItemAdjustment `json:"adjustments,omitempty"`
	TaxLines          []TaxLine            `json:"tax_lines,omitempty"`
	Metadata          map[string]any       `json:"metadata,omitempty"`

	// Derived totals, attached by decoration. Never a source of truth.
	Subtotal      int64 `json:"subtotal"`
	DiscountTotal int64 `json:"discount_total"`
	TaxTotal      int64 `json:"tax_total"`
	Total         int64 `json:"total"`
	Refundable    int64 `json:"refundable"`
}

// ShippingOption identifies a provider-side shipping option. Options belong
// to a shipping profile; an order carries at most one active method per
// profile.
type ShippingOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfileID  string `json:"profile_id"`
	ProviderID string `json:"provider_id,omitempty"`
	Amount     int64  `json:"amount"`
}

// ShippingMethod is a priced application of a shipping option to one order.
type ShippingMethod struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id,omitempty"`
	ShippingOptionID string          `json:"shipping_option_id"`
	ShippingOption   *ShippingOption `json:"shipping_option,omitempty"`
	Price            int64           `json:"price"`
	IncludesTax      bool            `json:"includes_tax"`
	TaxLines         []TaxLine       `json:"tax_lines,omitempty"`
	Data             map[string]any  `json:"data,omitempty"`

	// Derived totals, attached by decoration.
	Subtotal int64 `json:"subtotal"`
	TaxTotal int64 `json:"tax_total"`
	Total    int64 `json:"total"`
}

// FulfillmentItem links a line item to a fulfillment with a quantity.
type FulfillmentItem struct {
	FulfillmentID string `json:"fulfillment_id,omitempty"`
	ItemID        string `json:"item_id"`
	Quantity      int64  `json:"quantity"`
}

// TrackingLink is a carrier tracking reference attached to a shipment.
type TrackingLink struct {
	TrackingNumber string `json:"tracking_number"`
	URL            string `json:"url,omitempty"`
}

// Fulfillment represents a provider-side fulfillment of a subset of an
// order's line items.
type Fulfillment struct {
	ID             string            `json:"id"`
	OrderID        string            `json:"order_id"`
	ProviderID     string            `json:"provider_id,omitempty"`
	Items          []FulfillmentItem `json:"items"`
	TrackingLinks  []TrackingLink    `json:"tracking_links,omitempty"`
	NoNotification bool              `json:"no_notification"`
	ShippedAt      *time.Time        `json:"shipped_at,omitempty"`
	CanceledAt     *time.Time        `json:"canceled_at,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

// Payment is an authorized (and possibly captured) payment on an order.
type Payment struct {
	ID         string         `json:"id"`
	OrderID    string         `json:"order_id,omitempty"`
	CartID     string         `json:"cart_id,omitempty"`
	ProviderID string         `json:"provider_id,omitempty"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency_code"`
	CapturedAt *time.Time     `json:"captured_at,omitempty"`
	CanceledAt *time.Time     `json:"canceled_at,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Refund is money returned to the customer against an order's payments.
type Refund struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReturnItem links a returned line item to a return with a quantity.
type ReturnItem struct {
	ItemID           string `json:"item_id"`
	Quantity         int64  `json:"quantity"`
	ReceivedQuantity int64  `json:"received_quantity"`
}

// Return represents items coming back from the customer, possibly entitling
// them to a refund.
type Return struct {
	ID             string       `json:"id"`
	OrderID        string       `json:"order_id"`
	Status         ReturnStatus `json:"status"`
	Items          []ReturnItem `json:"items,omitempty"`
	RefundAmount   int64        `json:"refund_amount"`
	NoNotification bool         `json:"no_notification"`
	ReceivedAt     *time.Time   `json:"received_at,omitempty"`
}

// Swap is an exchange of order items; it carries its own additional items and
// must reach a canceled/terminal state before the order can be canceled.
type Swap struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	AdditionalItems []LineItem `json:"additional_items,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
}

// ClaimOrder is a claim (replacement or refund for faulty items); like swaps
// it must be canceled/resolved before the order can be canceled.
type ClaimOrder struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	Type            string     `json:"type,omitempty"` // "replace" or "refund"
	AdditionalItems []LineItem `json:"additional_items,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
}

// Order is the root aggregate. It exclusively owns its line items, shipping
// methods and addresses, and holds non-owning references to its customer,
// region, cart, discounts and gift cards.
type Order struct {
	ID                string            `json:"id"`
	DisplayID         int64             `json:"display_id"`
	ExternalID        string            `json:"external_id,omitempty"`
	Status            OrderStatus       `json:"status"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	CurrencyCode      string            `json:"currency_code"`
	Email             string            `json:"email"`
	CustomerID        string            `json:"customer_id,omitempty"`
	CartID            string            `json:"cart_id,omitempty"`
	DraftOrderID      string            `json:"draft_order_id,omitempty"`
	RegionID          string            `json:"region_id"`
	Region            *Region           `json:"region,omitempty"`
	ShippingAddress   *Address          `json:"shipping_address,omitempty"`
	BillingAddress    *Address          `json:"billing_address,omitempty"`
	NoNotification    bool              `json:"no_notification"`
	Metadata          map[string]any    `json:"metadata,omitempty"`

	Items                []LineItem            `json:"items,omitempty"`
	ShippingMethods      []ShippingMethod      `json:"shipping_methods,omitempty"`
	Fulfillments         []Fulfillment         `json:"fulfillments,omitempty"`
	Payments             []Payment             `json:"payments,omitempty"`
	Refunds              []Refund              `json:"refunds,omitempty"`
	Returns              []Return              `json:"returns,omitempty"`
	Swaps                []Swap                `json:"swaps,omitempty"`
	Claims               []ClaimOrder          `json:"claims,omitempty"`
	Discounts            []Discount            `json:"discounts,omitempty"`
	GiftCards            []GiftCard            `json:"gift_cards,omitempty"`
	GiftCardTransactions []GiftCardTransaction `json:"gift_card_transactions,omitempty"`

	// TaxRate is the legacy flat rate used when line items carry no tax lines.
	TaxRate *float64 `json:"tax_rate,omitempty"`

	CanceledAt *time.Time `json:"canceled_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Derived monetary fields, attached by decoration. Legacy decoration may
	// write a subset of them back; they are never the source of truth.
	Subtotal         int64 `json:"subtotal"`
	DiscountTotal    int64 `json:"discount_total"`
	ShippingTotal    int64 `json:"shipping_total"`
	TaxTotal         int64 `json:"tax_total"`
	GiftCardTotal    int64 `json:"gift_card_total"`
	GiftCardTaxTotal int64 `json:"gift_card_tax_total"`
	Total            int64 `json:"total"`
	PaidTotal        int64 `json:"paid_total"`
	RefundedTotal    int64 `json:"refunded_total"`
	RefundableAmount int64 `json:"refundable_amount"`
}

// Cart is the pre-order shopping cart the order is created from. The cart
// subsystem is an external collaborator; the order core only reads carts that
// have already been priced, so the derived totals are pointers to distinguish
// "computed as zero" from "never computed".
type Cart struct {
	ID                  string           `json:"id"`
	Email               string           `json:"email"`
	CustomerID          string           `json:"customer_id,omitempty"`
	RegionID            string           `json:"region_id"`
	Region              *Region          `json:"region,omitempty"`
	Type                string           `json:"type,omitempty"` // "" or "draft_order"
	Items               []LineItem       `json:"items,omitempty"`
	ShippingMethods     []ShippingMethod `json:"shipping_methods,omitempty"`
	Discounts           []Discount       `json:"discounts,omitempty"`
	GiftCards           []GiftCard       `json:"gift_cards,omitempty"`
	Payment             *Payment         `json:"payment,omitempty"`
	ShippingAddress     *Address         `json:"shipping_address,omitempty"`
	BillingAddress      *Address         `json:"billing_address,omitempty"`
	Metadata            map[string]any   `json:"metadata,omitempty"`
	PaymentAuthorizedAt *time.Time       `json:"payment_authorized_at,omitempty"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`

	Subtotal      *int64 `json:"subtotal,omitempty"`
	DiscountTotal *int64 `json:"discount_total,omitempty"`
	GiftCardTotal *int64 `json:"gift_card_total,omitempty"`
	Total         *int64 `json:"total,omitempty"`
}

// DraftOrder carries per-draft notification preferences applied when the
// draft's cart is converted into an order.
type DraftOrder struct {
	ID                  string `json:"id"`
	CartID              string `json:"cart_id"`
	NoNotificationOrder bool   `json:"no_notification_order"`
}

// UpdateOrderInput is the set of fields update accepts. Status fields are
// deliberately absent; they only change through lifecycle operations.
type UpdateOrderInput struct {
	Email           *string
	ExternalID      *string
	ShippingAddress *Address
	BillingAddress  *Address
	NoNotification  *bool
	Metadata        map[string]any
	Items           []LineItem
	Payment         *Payment
}

// AllItemsReturned reports whether every line item has been fully returned.
func (o *Order) AllItemsReturned() bool {
	for _, item := range o.Items {
		if item.ReturnedQuantity != item.Quantity {
			return false
		}
	}
	return true
}

// FindItem returns the line item with the given id, or nil.
func (o *Order) FindItem(itemID string) *LineItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// FindFulfillment returns the fulfillment with the given id, or nil.
func (o *Order) FindFulfillment(fulfillmentID string) *Fulfillment {
	for i := range o.Fulfillments {
		if o.Fulfillments[i].ID == fulfillmentID {
			return &o.Fulfillments[i]
		}
	}
	return nil
}

// SetMetadata merges the given key-value pairs into the order metadata.
// A nil value deletes the key.
func (o *Order) SetMetadata(values map[string]any) {
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	for k, v := range values {
		if v == nil {
			delete(o.Metadata, k)
			continue
		}
		o.Metadata[k] = v
	}
}
