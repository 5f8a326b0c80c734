// internal/domain/models/invoice.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invoice bills a set of unpaid freight-prepaid usages of one owner.
type Invoice struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Number   string             `bson:"number" json:"number"` // INV-000001
	OwnerRef `bson:",inline"`

	PeriodFrom *time.Time `bson:"period_from,omitempty" json:"periodFrom,omitempty"`
	PeriodTo   *time.Time `bson:"period_to,omitempty" json:"periodTo,omitempty"`

	UsageIDs []primitive.ObjectID `bson:"usage_ids" json:"usageIds"`
	Lines    []InvoiceLine        `bson:"lines" json:"lines"`

	Subtotal primitive.Decimal128 `bson:"subtotal" json:"subtotal"`
	Total    primitive.Decimal128 `bson:"total" json:"total"`

	PaymentStatus string     `bson:"payment_status" json:"paymentStatus"`
	PaidAt        *time.Time `bson:"paid_at,omitempty" json:"paidAt,omitempty"`

	CreatedBy string    `bson:"created_by" json:"createdBy"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// InvoiceLine is one billed consignment.
type InvoiceLine struct {
	UsageID           primitive.ObjectID   `bson:"usage_id" json:"usageId"`
	ConsignmentNumber int64                `bson:"consignment_number" json:"consignmentNumber"`
	BookingReference  string               `bson:"booking_reference" json:"bookingReference"`
	UsedAt            time.Time            `bson:"used_at" json:"usedAt"`
	FreightCharges    primitive.Decimal128 `bson:"freight_charges" json:"freightCharges"`
	TotalAmount       primitive.Decimal128 `bson:"total_amount" json:"totalAmount"`
}
