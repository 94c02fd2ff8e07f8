package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/repositories"
)

type orderDocument struct {
	UserID          string              `firestore:"userId"`
	Items           []orderItemDocument `firestore:"items"`
	ShippingAddress string              `firestore:"shippingAddress"`
	PaymentMethod   string              `firestore:"paymentMethod"`

	Status        string  `firestore:"status"`
	PaymentStatus string  `firestore:"paymentStatus"`
	ReturnStatus  *string `firestore:"returnStatus"`

	TotalAmount    int64  `firestore:"totalAmount"`
	RefundedAmount int64  `firestore:"refundedAmount"`
	Currency       string `firestore:"currency"`

	TrackingNumber        string   `firestore:"trackingNumber,omitempty"`
	CancelReason          string   `firestore:"cancelReason,omitempty"`
	ReturnReason          string   `firestore:"returnReason,omitempty"`
	ReturnRejectionReason string   `firestore:"returnRejectionReason,omitempty"`
	ReturnImages          []string `firestore:"returnImages,omitempty"`

	CreatedAt          time.Time  `firestore:"createdAt"`
	UpdatedAt          time.Time  `firestore:"updatedAt"`
	PaymentConfirmedAt *time.Time `firestore:"paymentConfirmedAt,omitempty"`
	ShippedAt          *time.Time `firestore:"shippedAt,omitempty"`
	DeliveredAt        *time.Time `firestore:"deliveredAt,omitempty"`
	CancelledAt        *time.Time `firestore:"cancelledAt,omitempty"`
	ReturnRequestedAt  *time.Time `firestore:"returnRequestedAt,omitempty"`
	ReturnApprovedAt   *time.Time `firestore:"returnApprovedAt,omitempty"`
	ReturnRejectedAt   *time.Time `firestore:"returnRejectedAt,omitempty"`
	ReturnReceivedAt   *time.Time `firestore:"returnReceivedAt,omitempty"`
	RefundInitiatedAt  *time.Time `firestore:"refundInitiatedAt,omitempty"`
	RefundCompletedAt  *time.Time `firestore:"refundCompletedAt,omitempty"`
}

type orderItemDocument struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
}

func newOrderDocument(o domain.Order) orderDocument {
	doc := orderDocument{
		UserID:                o.UserID,
		Items:                 make([]orderItemDocument, 0, len(o.Items)),
		ShippingAddress:       o.ShippingAddress,
		PaymentMethod:         o.PaymentMethod,
		Status:                string(o.Status),
		PaymentStatus:         string(o.PaymentStatus),
		TotalAmount:           o.TotalAmount,
		RefundedAmount:        o.RefundedAmount,
		Currency:              o.Currency,
		TrackingNumber:        o.TrackingNumber,
		CancelReason:          o.CancelReason,
		ReturnReason:          o.ReturnReason,
		ReturnRejectionReason: o.ReturnRejectionReason,
		ReturnImages:          append([]string(nil), o.ReturnImages...),
		CreatedAt:             o.CreatedAt.UTC(),
		UpdatedAt:             o.UpdatedAt.UTC(),
		PaymentConfirmedAt:    utcPtr(o.PaymentConfirmedAt),
		ShippedAt:             utcPtr(o.ShippedAt),
		DeliveredAt:           utcPtr(o.DeliveredAt),
		CancelledAt:           utcPtr(o.CancelledAt),
		ReturnRequestedAt:     utcPtr(o.ReturnRequestedAt),
		ReturnApprovedAt:      utcPtr(o.ReturnApprovedAt),
		ReturnRejectedAt:      utcPtr(o.ReturnRejectedAt),
		ReturnReceivedAt:      utcPtr(o.ReturnReceivedAt),
		RefundInitiatedAt:     utcPtr(o.RefundInitiatedAt),
		RefundCompletedAt:     utcPtr(o.RefundCompletedAt),
	}
	if o.ReturnStatus != nil {
		status := string(*o.ReturnStatus)
		doc.ReturnStatus = &status
	}
	for _, item := range o.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:                    id,
		UserID:                d.UserID,
		ShippingAddress:       d.ShippingAddress,
		PaymentMethod:         d.PaymentMethod,
		Status:                domain.OrderStatus(d.Status),
		PaymentStatus:         domain.PaymentStatus(d.PaymentStatus),
		TotalAmount:           d.TotalAmount,
		RefundedAmount:        d.RefundedAmount,
		Currency:              d.Currency,
		TrackingNumber:        d.TrackingNumber,
		CancelReason:          d.CancelReason,
		ReturnReason:          d.ReturnReason,
		ReturnRejectionReason: d.ReturnRejectionReason,
		ReturnImages:          d.ReturnImages,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
		PaymentConfirmedAt:    d.PaymentConfirmedAt,
		ShippedAt:             d.ShippedAt,
		DeliveredAt:           d.DeliveredAt,
		CancelledAt:           d.CancelledAt,
		ReturnRequestedAt:     d.ReturnRequestedAt,
		ReturnApprovedAt:      d.ReturnApprovedAt,
		ReturnRejectedAt:      d.ReturnRejectedAt,
		ReturnReceivedAt:      d.ReturnReceivedAt,
		RefundInitiatedAt:     d.RefundInitiatedAt,
		RefundCompletedAt:     d.RefundCompletedAt,
	}
	if d.ReturnStatus != nil && *d.ReturnStatus != "" {
		status := domain.ReturnStatus(*d.ReturnStatus)
		order.ReturnStatus = &status
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return order
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

type orderRepository struct {
	orders *pfirestore.Collection[orderDocument]
}

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.orders.Create(ctx, order.ID, newOrderDocument(order))
}

func (r orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.orders.Provider().RunInTx(ctx, func(ctx context.Context) error {
		if _, err := r.orders.Get(ctx, order.ID); err != nil {
			return err
		}
		return r.orders.Set(ctx, order.ID, newOrderDocument(order))
	})
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain(orderID), nil
}

// List pushes the owner filter to Firestore and applies the status axes in process, newest first.
func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		if len(filter.Status) > 0 && len(filter.Status) <= 30 {
			q = q.Where("status", "in", filter.Status)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data.toDomain(doc.ID)
		if repositories.MatchesOrderFilter(order, filter) {
			orders = append(orders, order)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return pagination.Slice(orders, filter.Pagination)
}
