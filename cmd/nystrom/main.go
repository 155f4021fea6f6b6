package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cobra.CheckErr(NewCLI().ExecuteContext(context.Background()))
}
