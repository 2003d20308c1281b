package main

import (
	"context"
	"log"

	"skyward/internal/app/bootstrap"
)

// Station process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (bus + modules + adapters).
// 3) Start consumers, workers, simulators, then the HTTP ingress.
func main() {
	log.Println("skyward station starting")
	app, err := bootstrap.Build()
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("station shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("skyward station stopped with error: %v", err)
	}
}
