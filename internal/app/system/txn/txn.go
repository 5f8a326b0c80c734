// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotSupported is returned by Run when the deployment cannot execute
// multi-document transactions (standalone mongod, some managed tiers).
// Callers fall back to another serialization strategy.
var ErrNotSupported = errors.New("transactions not supported by this deployment")

// Run executes fn inside a transaction on a fresh session. The driver
// retries fn on transient errors such as write conflicts, so fn must be
// safe to run more than once.
func Run(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fmt.Errorf("%w: %v", ErrNotSupported, err)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		return fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	return err
}

// IsNotSupported reports whether err means transactions are unavailable,
// as opposed to a failure inside the transaction body.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, // IllegalOperation: "Transaction numbers are only allowed on a replica set member"
			51,  // legacy IllegalOperation
			263: // OperationNotSupportedInTransaction
			return true
		}
	}

	s := strings.ToLower(err.Error())
	hasTxn := strings.Contains(s, "transaction")
	switch {
	case hasTxn && strings.Contains(s, "replica set"):
		return true
	case hasTxn && strings.Contains(s, "session"):
		return true
	case hasTxn && strings.Contains(s, "illegal operation"):
		return true
	case strings.Contains(s, "session") && strings.Contains(s, "not supported"):
		return true
	}
	return false
}
