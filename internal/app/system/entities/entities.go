// internal/app/system/entities/entities.go
package entities

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/courierhub/internal/domain/models"
	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Checker reports whether a record with the given id exists.
type Checker interface {
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Resolver answers "does this owner exist" for the allocator. Positive
// answers are cached for ttl; negative answers always hit the store so a
// just-created entity is visible immediately.
type Resolver struct {
	corporates  Checker
	officeUsers Checker
	cache       *gocache.Cache
}

// DefaultTTL applies when NewResolver is given a non-positive ttl.
const DefaultTTL = 5 * time.Minute

func NewResolver(corporates, officeUsers Checker, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		corporates:  corporates,
		officeUsers: officeUsers,
		cache:       gocache.New(ttl, 2*ttl),
	}
}

func (r *Resolver) Exists(ctx context.Context, owner models.Owner) (bool, error) {
	key := owner.String()
	if _, ok := r.cache.Get(key); ok {
		return true, nil
	}

	var (
		found bool
		err   error
	)
	switch o := owner.(type) {
	case models.CorporateOwner:
		found, err = r.corporates.Exists(ctx, o.CorporateID)
	case models.OfficeUserOwner:
		found, err = r.officeUsers.Exists(ctx, o.OfficeUserID)
	default:
		return false, fmt.Errorf("entities: unsupported owner %T", owner)
	}
	if err != nil {
		return false, err
	}
	if found {
		r.cache.SetDefault(key, struct{}{})
	}
	return found, nil
}
