// internal/domain/models/officeuser.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Office user roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Session-only role for corporate portal logins.
const RoleCorporate = "corporate"

// OfficeUser is back-office staff. Admins manage ranges and invoicing;
// staff book shipments and may hold their own consignment ranges.
type OfficeUser struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	FullName   string             `bson:"full_name" json:"fullName"`
	FullNameCI string             `bson:"full_name_ci" json:"-"`
	Email      string             `bson:"email" json:"email"`
	EmailCI    string             `bson:"email_ci" json:"-"`
	Role       string             `bson:"role" json:"role"`             // admin | staff
	Status     string             `bson:"status" json:"status"`         // active | disabled
	AuthMethod string             `bson:"auth_method" json:"authMethod"` // password | google

	PasswordHash string `bson:"password_hash,omitempty" json:"-"`
	GoogleID     string `bson:"google_id,omitempty" json:"-"`

	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Owner returns the range-owner variant for this office user.
func (u OfficeUser) Owner() Owner {
	return OfficeUserOwner{OfficeUserID: u.ID}
}
