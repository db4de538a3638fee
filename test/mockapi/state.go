package mockapi

import (
	"sync"
	"time"
)

// State manages the in-memory configuration for the mock API
type State struct {
	mu sync.Mutex

	// Models advertised by the /v1/models endpoint
	Models []string

	// MaxTokens caps the number of tokens in a generated completion
	MaxTokens int

	// TokenDelay is the pause between streamed tokens
	TokenDelay time.Duration

	// Lorem is the word pool completions are generated from
	Lorem string

	// failEvery makes every Nth completion request return a 500
	failEvery int
	requests  int
}

// NewState creates mock state with workable defaults
func NewState() *State {
	return &State{
		Models:    []string{"llama-3.3-70b", "qwen-3-32b"},
		MaxTokens: 64,
		Lorem:     "the quick brown fox jumps over the lazy dog and keeps on running through the quiet green field",
	}
}

// FailEvery makes every nth completion request fail. Zero disables
// failure injection.
func (s *State) FailEvery(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failEvery = n
	s.requests = 0
}

func (s *State) failNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEvery <= 0 {
		return false
	}
	s.requests++
	return s.requests%s.failEvery == 0
}
