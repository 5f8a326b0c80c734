// internal/domain/models/owner.go
package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EntityType is the persisted tag for the kind of range owner.
type EntityType string

const (
	EntityCorporate  EntityType = "corporate"
	EntityOfficeUser EntityType = "office_user"
)

// Valid reports whether t names a known owner kind.
func (t EntityType) Valid() bool {
	return t == EntityCorporate || t == EntityOfficeUser
}

// Owner identifies the holder of consignment ranges and usages.
//
// Owner is closed: the only implementations are CorporateOwner and
// OfficeUserOwner. Switch on the concrete type when behavior differs by
// kind; use Kind/ID only at the storage and wire boundaries.
type Owner interface {
	Kind() EntityType
	ID() primitive.ObjectID
	String() string
	owner()
}

// CorporateOwner is a corporate account that holds ranges.
type CorporateOwner struct {
	CorporateID primitive.ObjectID
}

func (o CorporateOwner) Kind() EntityType { return EntityCorporate }
func (o CorporateOwner) ID() primitive.ObjectID { return o.CorporateID }
func (o CorporateOwner) String() string { return "corporate:" + o.CorporateID.Hex() }
func (CorporateOwner) owner() {}

// OfficeUserOwner is an office user (booking clerk) that holds ranges.
type OfficeUserOwner struct {
	OfficeUserID primitive.ObjectID
}

func (o OfficeUserOwner) Kind() EntityType { return EntityOfficeUser }
func (o OfficeUserOwner) ID() primitive.ObjectID { return o.OfficeUserID }
func (o OfficeUserOwner) String() string { return "office_user:" + o.OfficeUserID.Hex() }
func (OfficeUserOwner) owner() {}

// OwnerFrom rebuilds an Owner from its persisted (entity_type, entity_id) pair.
func OwnerFrom(kind EntityType, id primitive.ObjectID) (Owner, error) {
	switch kind {
	case EntityCorporate:
		return CorporateOwner{CorporateID: id}, nil
	case EntityOfficeUser:
		return OfficeUserOwner{OfficeUserID: id}, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", kind)
	}
}

// ParseOwner parses the wire form ("corporate", "<hex id>").
func ParseOwner(kind, id string) (Owner, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid entity id %q", id)
	}
	return OwnerFrom(EntityType(kind), oid)
}

// OwnerRef is the embedded persisted form of an Owner.
type OwnerRef struct {
	EntityType EntityType         `bson:"entity_type" json:"entityType"`
	EntityID   primitive.ObjectID `bson:"entity_id" json:"entityId"`
}

// RefOf returns the persisted reference for o.
func RefOf(o Owner) OwnerRef {
	return OwnerRef{EntityType: o.Kind(), EntityID: o.ID()}
}

// Owner converts the reference back into the tagged variant.
func (r OwnerRef) Owner() (Owner, error) {
	return OwnerFrom(r.EntityType, r.EntityID)
}
