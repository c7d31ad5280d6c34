package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pkg/errcode"
	"github.com/xxxsen/pdfqa/internal/pkg/response"
	"github.com/xxxsen/pdfqa/internal/service"
)

type Chatter interface {
	Chat(ctx context.Context, req service.ChatRequest) (*model.Answer, error)
}

type ChatHandler struct {
	chat Chatter
}

func NewChatHandler(chat Chatter) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.chat.Chat(c.Request.Context(), service.ChatRequest{Question: req.Question, TopK: req.TopK})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}
