// Command mockapi runs a mock OpenAI-compatible completions endpoint
// for local benchmark testing.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inference-bench/inference-bench/test/mockapi"
)

func main() {
	addr := flag.String("addr", ":8888", "Server address")
	tokenDelay := flag.Duration("token-delay", 20*time.Millisecond, "Pause between streamed tokens")
	failEvery := flag.Int("fail-every", 0, "Fail every Nth completion request (0 = never)")
	flag.Parse()

	state := mockapi.NewState()
	state.TokenDelay = *tokenDelay
	state.FailEvery(*failEvery)

	server := mockapi.NewServer(state)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down mock API...")
		os.Exit(0)
	}()

	log.Printf("Starting mock completions API on %s", *addr)
	if err := server.Run(*addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
