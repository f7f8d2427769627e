package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/homelend/platform/pkg/llm"
)

// maxToolRounds bounds one turn; a model that keeps asking for tools past
// this gets cut off with whatever it produced last.
const maxToolRounds = 6

// Frame is one server-to-client message.
type Frame struct {
	Type    string `json:"type"` // token, tool_call, final, error
	Content any    `json:"content"`
}

// Agent drives the completion loop for one role-scoped conversation.
type Agent struct {
	llm      *llm.Client
	registry *Registry
	logger   *slog.Logger
}

// NewAgent builds an agent over the inference client and tool registry.
func NewAgent(client *llm.Client, registry *Registry, logger *slog.Logger) *Agent {
	return &Agent{llm: client, registry: registry, logger: logger}
}

// toolDirective is the JSON shape the prompt asks the model to emit when it
// wants a tool run instead of answering.
type toolDirective struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// RunTurn processes one user message: completion, tool rounds, final answer.
// Frames are pushed through emit as they happen. The returned messages are
// the history extended with this turn.
func (a *Agent) RunTurn(ctx context.Context, uc UserContext, history []llm.Message, userInput string, emit func(Frame)) []llm.Message {
	messages := append([]llm.Message{llm.TextMessage("system", a.systemPrompt(uc))}, history...)
	messages = append(messages, llm.TextMessage("user", userInput))

	var finalText string
	for round := 0; round < maxToolRounds; round++ {
		reply, err := a.llm.GetCompletion(ctx, messages)
		if err != nil {
			a.logger.Error("chat completion failed", "session_id", uc.SessionID, "error", err)
			emit(Frame{Type: "error", Content: "assistant unavailable, try again"})
			return history
		}

		directive, ok := parseToolDirective(reply)
		if !ok {
			finalText = reply
			break
		}

		emit(Frame{Type: "tool_call", Content: map[string]any{
			"tool":      directive.Tool,
			"arguments": directive.Arguments,
		}})

		result, err := a.registry.Invoke(ctx, uc, directive.Tool, directive.Arguments)
		messages = append(messages, llm.TextMessage("assistant", reply))
		if err != nil {
			messages = append(messages, llm.TextMessage("user",
				fmt.Sprintf("Tool %s failed: %s. Answer without it or try another tool.", directive.Tool, err)))
			continue
		}
		payload, _ := json.Marshal(result)
		messages = append(messages, llm.TextMessage("user",
			fmt.Sprintf("Tool %s result: %s", directive.Tool, payload)))
	}

	if finalText == "" {
		finalText = "I could not finish that request. Please try rephrasing."
	}
	for _, chunk := range chunkText(finalText, 80) {
		emit(Frame{Type: "token", Content: chunk})
	}
	emit(Frame{Type: "final", Content: finalText})

	history = append(history, llm.TextMessage("user", userInput))
	history = append(history, llm.TextMessage("assistant", finalText))
	return history
}

func (a *Agent) systemPrompt(uc UserContext) string {
	var b strings.Builder
	b.WriteString("You are the HomeLend mortgage assistant. The user's role is ")
	b.WriteString(string(uc.UserRole))
	b.WriteString(".\nNever reveal data about other users. Available tools:\n")
	for _, t := range a.registry.ForRole(uc.UserRole) {
		fmt.Fprintf(&b, "- %s %s: %s\n", t.Name, t.Parameters, t.Description)
	}
	b.WriteString(`To use a tool respond with only this JSON and nothing else:
{"tool": "<name>", "arguments": {...}}
Otherwise answer the user directly in plain text.`)
	return b.String()
}

// parseToolDirective recognizes a reply that is solely a tool request.
func parseToolDirective(reply string) (toolDirective, bool) {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.Index(trimmed, "\n"); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if !strings.HasPrefix(trimmed, "{") {
		return toolDirective{}, false
	}
	var d toolDirective
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil || d.Tool == "" {
		return toolDirective{}, false
	}
	if d.Arguments == nil {
		d.Arguments = map[string]any{}
	}
	return d, true
}

func chunkText(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
