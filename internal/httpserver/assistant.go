package httpserver

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"nexus-storefront/internal/ai"
)

const maxImageBytes = 5 << 20

type questionRequest struct {
	Question string `json:"question"`
}

type describeRequest struct {
	Title       string `json:"title"`
	SubCategory string `json:"subCategory"`
}

func bindQuestion(c *gin.Context) (string, bool) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		badRequest(c, "question is required")
		return "", false
	}
	return strings.TrimSpace(req.Question), true
}

func (h *handlers) chat(c *gin.Context) {
	q, ok := bindQuestion(c)
	if !ok {
		return
	}
	answer, err := h.deps.Assistant.Chat(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *handlers) visualSearch(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	if fh.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable image")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		badRequest(c, "unreadable image")
		return
	}

	mime := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "file is not an image"})
		return
	}

	match := h.deps.Assistant.VisualSearch(c.Request.Context(), ai.Image{MIMEType: mime, Data: data})
	c.JSON(http.StatusOK, match)
}

func (h *handlers) describe(c *gin.Context) {
	var req describeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		badRequest(c, "title is required")
		return
	}
	answer, err := h.deps.Assistant.Describe(c.Request.Context(), req.Title, req.SubCategory)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *handlers) analyst(c *gin.Context) {
	q, ok := bindQuestion(c)
	if !ok {
		return
	}
	answer, err := h.deps.Assistant.Analyst(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
