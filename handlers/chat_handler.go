package handlers

import (
	"context"
	"log"
	"net/http"

	"sasfiscal-backend/llm"
	"sasfiscal-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Answerer is the service surface the chat handler needs. Tests inject a
// fake; production wires *service.RAGService.
type Answerer interface {
	Answer(ctx context.Context, req service.AnswerRequest) (*service.AnswerResult, error)
}

// ChatHandler handles HTTP requests for the fiscal assistant.
type ChatHandler struct {
	svc Answerer
	db  *pgxpool.Pool
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc Answerer, db *pgxpool.Pool) *ChatHandler {
	return &ChatHandler{svc: svc, db: db}
}

// ChatRequest represents the request body for POST /chat.
type ChatRequest struct {
	Question  string        `json:"question" binding:"required"`
	Regimen   string        `json:"regimen"`
	Ejercicio int           `json:"ejercicio"`
	Trace     bool          `json:"trace"`
	History   []llm.Message `json:"history"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "invalid request: " + err.Error(),
		})
		return
	}

	traceID := uuid.New().String()

	result, err := h.svc.Answer(c.Request.Context(), service.AnswerRequest{
		Question:  req.Question,
		Regimen:   req.Regimen,
		Ejercicio: req.Ejercicio,
		History:   req.History,
		Trace:     req.Trace,
	})
	if err != nil {
		log.Printf("chat %s failed: %v", traceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Error en el motor RAG: " + err.Error(),
		})
		return
	}

	// "response" is the legacy field name; clients migrate to "answer".
	body := gin.H{
		"answer":   result.Answer,
		"response": result.Answer,
	}
	if result.Debug != nil {
		body["debug"] = gin.H{
			"trace_id":       traceID,
			"route":          result.Debug.Route,
			"used_year":      result.Debug.UsedYear,
			"evidence_count": result.Debug.EvidenceCount,
			"literal":        result.Debug.Literal,
			"candidates":     result.Debug.Candidates,
			"evidence":       result.Debug.Evidence,
		}
	}
	c.JSON(http.StatusOK, body)
}

// Health handles GET /api/health.
func (h *ChatHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			dbStatus = "error"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "Online",
		"mode":   "Tier 2 RAG",
		"db":     dbStatus,
	})
}
