package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/repositories"
)

// orderRecord is the JSON document stored alongside the indexed order columns.
type orderRecord struct {
	Items                 []orderItemRecord `json:"items"`
	ShippingAddress       string            `json:"shippingAddress"`
	PaymentMethod         string            `json:"paymentMethod"`
	TrackingNumber        string            `json:"trackingNumber,omitempty"`
	CancelReason          string            `json:"cancelReason,omitempty"`
	ReturnReason          string            `json:"returnReason,omitempty"`
	ReturnRejectionReason string            `json:"returnRejectionReason,omitempty"`
	ReturnImages          []string          `json:"returnImages,omitempty"`

	PaymentConfirmedAt *time.Time `json:"paymentConfirmedAt,omitempty"`
	ShippedAt          *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	ReturnRequestedAt  *time.Time `json:"returnRequestedAt,omitempty"`
	ReturnApprovedAt   *time.Time `json:"returnApprovedAt,omitempty"`
	ReturnRejectedAt   *time.Time `json:"returnRejectedAt,omitempty"`
	ReturnReceivedAt   *time.Time `json:"returnReceivedAt,omitempty"`
	RefundInitiatedAt  *time.Time `json:"refundInitiatedAt,omitempty"`
	RefundCompletedAt  *time.Time `json:"refundCompletedAt,omitempty"`
}

type orderItemRecord struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

func encodeOrder(o domain.Order) ([]byte, error) {
	record := orderRecord{
		Items:                 make([]orderItemRecord, 0, len(o.Items)),
		ShippingAddress:       o.ShippingAddress,
		PaymentMethod:         o.PaymentMethod,
		TrackingNumber:        o.TrackingNumber,
		CancelReason:          o.CancelReason,
		ReturnReason:          o.ReturnReason,
		ReturnRejectionReason: o.ReturnRejectionReason,
		ReturnImages:          o.ReturnImages,
		PaymentConfirmedAt:    o.PaymentConfirmedAt,
		ShippedAt:             o.ShippedAt,
		DeliveredAt:           o.DeliveredAt,
		CancelledAt:           o.CancelledAt,
		ReturnRequestedAt:     o.ReturnRequestedAt,
		ReturnApprovedAt:      o.ReturnApprovedAt,
		ReturnRejectedAt:      o.ReturnRejectedAt,
		ReturnReceivedAt:      o.ReturnReceivedAt,
		RefundInitiatedAt:     o.RefundInitiatedAt,
		RefundCompletedAt:     o.RefundCompletedAt,
	}
	for _, item := range o.Items {
		record.Items = append(record.Items, orderItemRecord(item))
	}
	return json.Marshal(record)
}

const orderColumns = "id, user_id, status, payment_status, return_status, total_amount, refunded_amount, currency, document, created_at, updated_at"

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o            domain.Order
		status       string
		payment      string
		returnStatus sql.NullString
		raw          []byte
	)
	if err := row.Scan(&o.ID, &o.UserID, &status, &payment, &returnStatus, &o.TotalAmount, &o.RefundedAmount,
		&o.Currency, &raw, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payment)
	if returnStatus.Valid && returnStatus.String != "" {
		rs := domain.ReturnStatus(returnStatus.String)
		o.ReturnStatus = &rs
	}

	var record orderRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Order{}, fmt.Errorf("decode order document: %w", err)
	}
	for _, item := range record.Items {
		o.Items = append(o.Items, domain.OrderItem(item))
	}
	o.ShippingAddress = record.ShippingAddress
	o.PaymentMethod = record.PaymentMethod
	o.TrackingNumber = record.TrackingNumber
	o.CancelReason = record.CancelReason
	o.ReturnReason = record.ReturnReason
	o.ReturnRejectionReason = record.ReturnRejectionReason
	o.ReturnImages = record.ReturnImages
	o.PaymentConfirmedAt = record.PaymentConfirmedAt
	o.ShippedAt = record.ShippedAt
	o.DeliveredAt = record.DeliveredAt
	o.CancelledAt = record.CancelledAt
	o.ReturnRequestedAt = record.ReturnRequestedAt
	o.ReturnApprovedAt = record.ReturnApprovedAt
	o.ReturnRejectedAt = record.ReturnRejectedAt
	o.ReturnReceivedAt = record.ReturnReceivedAt
	o.RefundInitiatedAt = record.RefundInitiatedAt
	o.RefundCompletedAt = record.RefundCompletedAt
	return o, nil
}

func nullableReturnStatus(o domain.Order) sql.NullString {
	if o.ReturnStatus == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*o.ReturnStatus), Valid: true}
}

type orderRepository struct{ r *Registry }

func (repo orderRepository) Insert(ctx context.Context, o domain.Order) error {
	doc, err := encodeOrder(o)
	if err != nil {
		return fmt.Errorf("orders.insert: encode: %w", err)
	}
	_, err = repo.r.q(ctx).ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.UserID, string(o.Status), string(o.PaymentStatus), nullableReturnStatus(o),
		o.TotalAmount, o.RefundedAmount, o.Currency, doc, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	return wrapError("orders.insert", err)
}

func (repo orderRepository) Update(ctx context.Context, o domain.Order) error {
	doc, err := encodeOrder(o)
	if err != nil {
		return fmt.Errorf("orders.update: encode: %w", err)
	}
	res, err := repo.r.q(ctx).ExecContext(ctx,
		`UPDATE orders SET status = $2, payment_status = $3, return_status = $4, total_amount = $5,
		        refunded_amount = $6, document = $7, updated_at = $8
		  WHERE id = $1`,
		o.ID, string(o.Status), string(o.PaymentStatus), nullableReturnStatus(o),
		o.TotalAmount, o.RefundedAmount, doc, o.UpdatedAt.UTC())
	if err != nil {
		return wrapError("orders.update", err)
	}
	return requireRow(res, "orders.update", "order %s not found", o.ID)
}

// FindByID locks the row when called inside a transaction so lifecycle transitions serialise.
func (repo orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	query := lockForTx(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`)
	o, err := scanOrder(repo.r.q(ctx).QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, notFound("orders.find", "order %s not found", orderID)
	}
	if err != nil {
		return domain.Order{}, wrapError("orders.find", err)
	}
	return o, nil
}

func (repo orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	offset, err := pagination.DecodeOffset(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := pageSize(filter.Pagination)

	where, args := orderFilterClause(filter)
	query := `SELECT ` + orderColumns + ` FROM orders`
	if where != "" {
		query += " WHERE " + where
	}
	args = append(args, size+1, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := repo.r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
	}
	defer rows.Close()

	items := make([]domain.Order, 0, size)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
	}
	return page(items, offset, size), nil
}

func orderFilterClause(filter repositories.OrderListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if len(filter.Status) > 0 {
		add("status = ANY($%d)", pq.Array(filter.Status))
	}
	if filter.HasReturn {
		clauses = append(clauses, "return_status IS NOT NULL")
	}
	if len(filter.ReturnStatus) > 0 {
		add("return_status = ANY($%d)", pq.Array(filter.ReturnStatus))
	}
	if len(filter.ExcludeReturn) > 0 {
		add("(return_status IS NULL OR NOT (return_status = ANY($%d)))", pq.Array(filter.ExcludeReturn))
	}
	return strings.Join(clauses, " AND "), args
}
