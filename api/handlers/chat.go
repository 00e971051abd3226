package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/api"
	"github.com/MeriemTerki/Project2CS/types"
)

// =============================================================================
// 💬 文本对话 Handler
// =============================================================================

// ReplyGenerator 根据对话生成回复，失败时返回兜底文本
type ReplyGenerator interface {
	Reply(ctx context.Context, messages []types.Message) string
}

// ChatHandler 文本对话处理器，与语音会话共用同一个回复生成器
type ChatHandler struct {
	responder ReplyGenerator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewChatHandler 创建文本对话处理器；timeout <= 0 时不额外限时
func NewChatHandler(responder ReplyGenerator, timeout time.Duration, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		responder: responder,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "chat_handler")),
	}
}

// HandleChat 处理 POST /chat 请求：{messages} → {reply}
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	messages, verr := convertMessages(req.Messages)
	if verr != nil {
		WriteError(w, verr, h.logger)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	reply := h.responder.Reply(ctx, messages)

	h.logger.Info("chat reply",
		zap.Int("messages", len(messages)),
		zap.Duration("duration", time.Since(start)),
	)

	WriteJSON(w, http.StatusOK, api.ChatResponse{Reply: reply})
}

// convertMessages 校验并转换请求中的对话轮次
func convertMessages(in []api.Message) ([]types.Message, *types.Error) {
	if len(in) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "messages cannot be empty")
	}

	out := make([]types.Message, 0, len(in))
	hasUser := false
	for i, m := range in {
		role := types.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		switch role {
		case types.RoleSystem, types.RoleUser, types.RoleAssistant:
		default:
			return nil, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("messages[%d]: unsupported role %q", i, m.Role))
		}
		if role == types.RoleUser && strings.TrimSpace(m.Content) != "" {
			hasUser = true
		}
		out = append(out, types.NewMessage(role, m.Content))
	}

	if !hasUser {
		return nil, types.NewError(types.ErrInvalidRequest, "at least one non-empty user message is required")
	}
	return out, nil
}
