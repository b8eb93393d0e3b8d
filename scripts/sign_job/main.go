package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"querysource/internal/security"
)

// Prints a signed agent command for a query file:
//
//	go run ./scripts/sign_job -file reports/daily.sql -batch 5000
func main() {
	_ = godotenv.Load()

	secret := flag.String("secret", os.Getenv("AGENT_SECRET"), "Signing secret (default AGENT_SECRET)")
	file := flag.String("file", "", "Query file")
	batch := flag.Int("batch", 0, "Rows per fetch (0 uses the agent default)")
	ttl := flag.Duration("ttl", 10*time.Minute, "Token lifetime")
	flag.Parse()

	if *file == "" {
		fmt.Println("Usage: go run ./scripts/sign_job -file <query.sql> [-batch n] [-ttl 10m]")
		os.Exit(2)
	}
	query, err := os.ReadFile(*file)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	token, err := security.SignJob(*secret, security.JobClaims{
		QueryPath: *file,
		Query:     string(query),
		BatchSize: *batch,
	}, *ttl)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.Marshal(map[string]string{"id": uuid.NewString(), "token": token})
	fmt.Println(string(out))
}
