package main

import (
	"flag"
	"fmt"
	"os"
	"threadmark/internal/di"
	"threadmark/internal/structures"

	"github.com/joho/godotenv"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "configs/threadmark.yml", "path to the YAML config file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "enable debug logging")
	flag.Parse()

	if _, err := di.InitApp(flags); err != nil {
		fmt.Fprintf(os.Stderr, "threadmark: %v\n", err)
		os.Exit(1)
	}
}
