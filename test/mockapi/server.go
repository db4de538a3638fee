// Package mockapi implements a mock OpenAI-compatible completions
// endpoint for exercising the benchmark client without a real API key.
package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Server is a mock completions API server
type Server struct {
	router *gin.Engine
	state  *State
}

// NewServer creates a mock server with the given state
func NewServer(state *State) *Server {
	if state == nil {
		state = NewState()
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		state:  state,
	}
	s.setupRoutes()
	return s
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// State returns the mutable server state
func (s *Server) State() *State {
	return s.state
}

// Run starts the server on the given address
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	v1 := s.router.Group("/v1")
	{
		v1.POST("/completions", s.handleCompletions)
		v1.GET("/models", s.handleListModels)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListModels(c *gin.Context) {
	models := make([]gin.H, 0, len(s.state.Models))
	for _, name := range s.state.Models {
		models = append(models, gin.H{"id": name, "object": "model"})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": models})
}

type completionRequest struct {
	Model     string  `json:"model"`
	Prompt    string  `json:"prompt"`
	MaxTokens int     `json:"max_tokens"`
	Stream    *bool   `json:"stream"`
	Temp      float64 `json:"temperature"`
}

func (s *Server) handleCompletions(c *gin.Context) {
	if s.state.failNext() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "injected failure"}})
		return
	}

	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	tokens := s.responseTokens(req)
	promptTokens := len(strings.Fields(req.Prompt))

	if req.Stream == nil || *req.Stream {
		s.streamCompletion(c, req.Model, tokens, promptTokens)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      "cmpl-mock",
		"object":  "text_completion",
		"created": time.Now().Unix(),
		"model":   req.Model,
		"choices": []gin.H{
			{"text": strings.Join(tokens, ""), "index": 0, "finish_reason": "length"},
		},
		"usage": gin.H{
			"prompt_tokens":     promptTokens,
			"completion_tokens": len(tokens),
			"total_tokens":      promptTokens + len(tokens),
		},
	})
}

func (s *Server) streamCompletion(c *gin.Context, model string, tokens []string, promptTokens int) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	w := c.Writer
	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	for _, tok := range tokens {
		fmt.Fprintf(w, "data: {\"id\":\"cmpl-mock\",\"object\":\"text_completion\",\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", model, tok)
		flush()
		if s.state.TokenDelay > 0 {
			time.Sleep(s.state.TokenDelay)
		}
	}

	total := time.Duration(len(tokens)) * s.state.TokenDelay
	fmt.Fprintf(w,
		"data: {\"id\":\"cmpl-mock\",\"object\":\"text_completion\",\"model\":%q,\"choices\":[],"+
			"\"usage\":{\"prompt_tokens\":%d,\"completion_tokens\":%d,\"total_tokens\":%d},"+
			"\"time_info\":{\"queue_time\":0.001,\"prompt_time\":0.002,\"completion_time\":%.6f,\"total_time\":%.6f,\"created\":%d}}\n\n",
		model, promptTokens, len(tokens), promptTokens+len(tokens),
		total.Seconds(), total.Seconds()+0.003, time.Now().Unix())
	flush()

	fmt.Fprint(w, "data: [DONE]\n\n")
	flush()
}

func (s *Server) responseTokens(req completionRequest) []string {
	n := req.MaxTokens
	if n <= 0 || n > s.state.MaxTokens {
		n = s.state.MaxTokens
	}

	words := strings.Fields(s.state.Lorem)
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tokens = append(tokens, words[i%len(words)]+" ")
	}
	return tokens
}
