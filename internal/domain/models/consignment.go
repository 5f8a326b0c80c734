// internal/domain/models/consignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConsignmentAssignment grants the closed range [StartNumber, EndNumber]
// to one owner. Active assignments never overlap. Records are never
// deleted; deactivation only flips IsActive.
type ConsignmentAssignment struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerRef `bson:",inline"`

	StartNumber  int64 `bson:"start_number" json:"startNumber"`
	EndNumber    int64 `bson:"end_number" json:"endNumber"`
	TotalNumbers int64 `bson:"total_numbers" json:"totalNumbers"`

	AssignedBy     string    `bson:"assigned_by" json:"assignedBy"`
	AssignedByName string    `bson:"assigned_by_name,omitempty" json:"assignedByName,omitempty"`
	AssignedAt     time.Time `bson:"assigned_at" json:"assignedAt"`
	IsActive       bool      `bson:"is_active" json:"isActive"`
	Notes          string    `bson:"notes,omitempty" json:"notes,omitempty"`

	DeactivatedAt *time.Time `bson:"deactivated_at,omitempty" json:"deactivatedAt,omitempty"`
	DeactivatedBy string     `bson:"deactivated_by,omitempty" json:"deactivatedBy,omitempty"`
}

// Contains reports whether n lies inside the assignment's range.
func (a ConsignmentAssignment) Contains(n int64) bool {
	return n >= a.StartNumber && n <= a.EndNumber
}

// Usage statuses.
const (
	UsageActive    = "active"
	UsageInvoiced  = "invoiced"
	UsageCancelled = "cancelled"
)

// Payment statuses shared by usages and invoices.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// Payment types. Only freight-prepaid bookings are billed to the
// account; to-pay bookings are collected from the consignee on delivery.
const (
	PaymentTypeFreightPrepaid = "FP"
	PaymentTypeToPay          = "TP"
)

// ConsignmentUsage records that one number was consumed by a booking.
// (entity_type, entity_id, consignment_number) is unique.
type ConsignmentUsage struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerRef `bson:",inline"`

	ConsignmentNumber int64              `bson:"consignment_number" json:"consignmentNumber"`
	AssignmentID      primitive.ObjectID `bson:"assignment_id" json:"assignmentId"`
	BookingReference  string             `bson:"booking_reference" json:"bookingReference"`
	BookingData       bson.M             `bson:"booking_data,omitempty" json:"bookingData,omitempty"`
	UsedAt            time.Time          `bson:"used_at" json:"usedAt"`

	Status         string               `bson:"status" json:"status"`
	PaymentStatus  string               `bson:"payment_status" json:"paymentStatus"`
	PaymentType    string               `bson:"payment_type" json:"paymentType"`
	FreightCharges primitive.Decimal128 `bson:"freight_charges" json:"freightCharges"`
	TotalAmount    primitive.Decimal128 `bson:"total_amount" json:"totalAmount"`

	InvoiceID   *primitive.ObjectID `bson:"invoice_id,omitempty" json:"invoiceId,omitempty"`
	InvoicedAt  *time.Time          `bson:"invoiced_at,omitempty" json:"invoicedAt,omitempty"`
	CancelledAt *time.Time          `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	RecordedBy  string              `bson:"recorded_by,omitempty" json:"recordedBy,omitempty"`
}
