package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/research"
)

// MCPSession represents an MCP session
type MCPSession struct {
	ID      string
	Created int64
}

// MCPRequest represents an MCP JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an MCP JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sessionArgs struct {
	ID string `json:"id"`
}

// MCPHandler handles MCP protocol requests
func (h *Handler) MCPHandler(c *gin.Context) {
	sessionID := c.GetHeader("Mcp-Session-Id")

	var req MCPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &MCPError{
				Code:    -32700,
				Message: "Parse error",
			},
		})
		return
	}

	if req.Method == "initialize" {
		if sessionID == "" {
			sessionID = uuid.New().String()
			c.Header("Mcp-Session-Id", sessionID)

			h.mcpMu.Lock()
			h.mcpSessions[sessionID] = &MCPSession{
				ID:      sessionID,
				Created: time.Now().Unix(),
			}
			h.mcpMu.Unlock()
		}

		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"serverInfo": map[string]interface{}{
					"name":    "deep-research-mcp",
					"version": "1.0.0",
				},
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
			},
		})
		return
	}

	if sessionID == "" {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32000,
				Message: "Bad Request: No valid session ID provided",
			},
		})
		return
	}

	h.mcpMu.RLock()
	_, exists := h.mcpSessions[sessionID]
	h.mcpMu.RUnlock()

	if !exists {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32000,
				Message: "Invalid session ID",
			},
		})
		return
	}

	switch req.Method {
	case "tools/list":
		h.handleToolsList(c, req)
	case "tools/call":
		h.handleToolsCall(c, req)
	case "ping":
		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		})
	default:
		h.sendError(c, req.ID, -32601, "Method not found")
	}
}

func idSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{"id"},
	}
}

func (h *Handler) handleToolsList(c *gin.Context, req MCPRequest) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": []map[string]interface{}{
				{
					"name":        "get_research_session",
					"description": "Get the stage, goal, queries and iteration count of a research session.",
					"inputSchema": idSchema("The research session ID."),
				},
				{
					"name":        "get_research_report",
					"description": "Get the final markdown report of a completed research session.",
					"inputSchema": idSchema("The research session ID."),
				},
			},
		},
	})
}

func (h *Handler) handleToolsCall(c *gin.Context, req MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.sendError(c, req.ID, -32602, "Invalid params")
		return
	}

	var args sessionArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		h.sendError(c, req.ID, -32602, "Invalid arguments")
		return
	}
	id, err := uuid.Parse(args.ID)
	if err != nil {
		h.sendError(c, req.ID, -32602, "Invalid arguments: id must be a uuid")
		return
	}

	switch params.Name {
	case "get_research_session":
		sess, err := h.Service.GetSession(c.Request.Context(), id)
		if err != nil {
			h.sendError(c, req.ID, -32603, err.Error())
			return
		}
		text, err := json.MarshalIndent(sessionView(sess), "", "  ")
		if err != nil {
			h.sendError(c, req.ID, -32603, err.Error())
			return
		}
		h.sendResult(c, req.ID, string(text))

	case "get_research_report":
		sess, err := h.Service.GetSession(c.Request.Context(), id)
		if err != nil {
			h.sendError(c, req.ID, -32603, err.Error())
			return
		}
		if sess.Stage != research.StageComplete {
			h.sendError(c, req.ID, -32603, fmt.Sprintf("report not available in stage %s", sess.Stage))
			return
		}
		h.sendResult(c, req.ID, sess.Report)

	default:
		h.sendError(c, req.ID, -32601, fmt.Sprintf("Tool not found: %s", params.Name))
	}
}

// sessionView is the compact session shape handed to MCP clients.
func sessionView(s *research.Session) map[string]interface{} {
	return map[string]interface{}{
		"id":              s.ID,
		"topic":           s.Topic,
		"stage":           s.Stage,
		"goal":            s.Plan.Goal,
		"current_queries": s.CurrentQueries,
		"iteration":       s.Iteration,
		"searches":        len(s.Collected),
		"summary":         research.Summarize(s),
	}
}

func (h *Handler) sendError(c *gin.Context, id interface{}, code int, msg string) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: msg,
		},
	})
}

func (h *Handler) sendResult(c *gin.Context, id interface{}, text string) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": text,
				},
			},
		},
	})
}
