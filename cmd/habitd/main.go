package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/arnold/habitgrid-api/internal/commands"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := commands.New().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("error during command execution: %v", err)
	}
}
