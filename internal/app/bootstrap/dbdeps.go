// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/app/system/tasks"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value to every hook, so the services built in
// Startup hang off a pointer allocated in ConnectDB.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	svc *services
}

// services are the long-lived components shared by handlers and jobs.
type services struct {
	allocator *allocator.Service
	emitter   *events.Emitter
	audit     *auditlog.Logger
	scheduler *tasks.Scheduler
}
