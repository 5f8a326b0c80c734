// internal/domain/models/corporate.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Corporate is a business client that books shipments on account.
// Name and code have folded companions for case-insensitive lookup.
type Corporate struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	CompanyName   string             `bson:"company_name" json:"companyName"`
	CompanyNameCI string             `bson:"company_name_ci" json:"-"`
	Code          string             `bson:"code" json:"code"` // short account code printed on labels
	CodeCI        string             `bson:"code_ci" json:"-"`
	Email         string             `bson:"email" json:"email"`
	EmailCI       string             `bson:"email_ci" json:"-"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	GSTNumber     string             `bson:"gst_number,omitempty" json:"gstNumber,omitempty"`
	Address       string             `bson:"address,omitempty" json:"address,omitempty"`
	Status        string             `bson:"status" json:"status"` // active | disabled

	PasswordHash string `bson:"password_hash,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Owner returns the range-owner variant for this corporate.
func (c Corporate) Owner() Owner {
	return CorporateOwner{CorporateID: c.ID}
}
