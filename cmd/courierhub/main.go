// Command courierhub runs the consignment number allocation service.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/courierhub/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
