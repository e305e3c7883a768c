package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/database"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/utilities"
)

// migrate applies the embedded schema migrations and exits.
func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	sqlDB, err := database.Connect(context.Background(), database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	if err := database.Migrate(sqlDB, sugar); err != nil {
		sugar.Fatalf("db migrate: %v", err)
	}
}
