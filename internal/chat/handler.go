package chat

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/llm"
)

// Close codes for authentication failures on the chat socket.
const (
	CloseUnauthenticated = 4001
	CloseWrongRole       = 4003
)

const writeWait = 10 * time.Second

// Handler upgrades /api/{role}/chat connections and runs the agent loop over
// them. Authentication uses a token query parameter because browsers cannot
// set headers on WebSocket dials.
type Handler struct {
	verifier *auth.Verifier
	agent    *Agent
	safety   *llm.Client
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the chat handler.
func NewHandler(verifier *auth.Verifier, agent *Agent, safety *llm.Client, logger *slog.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		agent:    agent,
		safety:   safety,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Routes registers the per-role chat endpoint.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/api/{role}/chat", h.handleChat)
}

// clientFrame is the inbound message shape.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	principal, err := h.verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.closeWith(conn, CloseUnauthenticated, "unauthenticated")
		return
	}
	pathRole := auth.Role(mux.Vars(r)["role"])
	if principal.Role != pathRole {
		h.closeWith(conn, CloseWrongRole, "wrong role for this endpoint")
		return
	}

	uc := UserContext{
		UserID:    principal.UserID,
		UserRole:  principal.Role,
		SessionID: uuid.NewString(),
	}
	h.logger.Info("chat session opened", "session_id", uc.SessionID, "role", uc.UserRole)

	emit := func(f Frame) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			h.logger.Error("chat frame write failed", "session_id", uc.SessionID, "error", err)
		}
	}

	var history []llm.Message
	for {
		var in clientFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Error("chat read failed", "session_id", uc.SessionID, "error", err)
			}
			return
		}
		if in.Type != "message" || in.Content == "" {
			continue
		}

		// Safety classification fails open; a down classifier never blocks
		// the surface.
		if verdict := h.safety.CheckInput(r.Context(), in.Content); !verdict.IsSafe {
			h.logger.Warn("chat input flagged",
				"session_id", uc.SessionID, "categories", verdict.Categories)
			emit(Frame{Type: "error", Content: "message rejected by content policy"})
			continue
		}

		history = h.agent.RunTurn(r.Context(), uc, history, in.Content, emit)
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
