package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func main() {
	size := flag.Int("bytes", 32, "Secret length in bytes")
	flag.Parse()

	buf := make([]byte, *size)
	if _, err := rand.Read(buf); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	secret := hex.EncodeToString(buf)

	fmt.Println("=== New Agent Secret ===")
	fmt.Println(secret)
	fmt.Println("========================")
	fmt.Println("Set AGENT_SECRET to this value on the agent and on the service that signs jobs.")
}
