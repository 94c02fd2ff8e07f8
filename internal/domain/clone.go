package domain

import "time"

// Clone returns a deep copy so callers can mutate the result without aliasing stored state.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = append([]CartItem(nil), c.Items...)
	}
	return out
}

// Clone returns a deep copy of the order including items, images and timestamps.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = append([]OrderItem(nil), o.Items...)
	}
	if o.ReturnImages != nil {
		out.ReturnImages = append([]string(nil), o.ReturnImages...)
	}
	if o.ReturnStatus != nil {
		status := *o.ReturnStatus
		out.ReturnStatus = &status
	}
	out.PaymentConfirmedAt = cloneTime(o.PaymentConfirmedAt)
	out.ShippedAt = cloneTime(o.ShippedAt)
	out.DeliveredAt = cloneTime(o.DeliveredAt)
	out.CancelledAt = cloneTime(o.CancelledAt)
	out.ReturnRequestedAt = cloneTime(o.ReturnRequestedAt)
	out.ReturnApprovedAt = cloneTime(o.ReturnApprovedAt)
	out.ReturnRejectedAt = cloneTime(o.ReturnRejectedAt)
	out.ReturnReceivedAt = cloneTime(o.ReturnReceivedAt)
	out.RefundInitiatedAt = cloneTime(o.RefundInitiatedAt)
	out.RefundCompletedAt = cloneTime(o.RefundCompletedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
