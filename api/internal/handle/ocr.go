package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/util"
)

type OCRRequest struct {
	LLMName string `json:"llm_name"`
	ocr.Request
}

type OCRResponse struct {
	Text      string `json:"text"`
	Engine    string `json:"engine"`
	Model     string `json:"model"`
	RequestID string `json:"request_id"`
}

// OCR is the JSON form of the upload: base64 (or data URL) in, text out.
func (h *Handle) OCR(c *gin.Context) {
	limit := h.maxBody*4/3 + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var req OCRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err, c.Request.ContentLength, limit) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad json: " + err.Error()})
		return
	}
	img, hint, err := util.DecodeImagePayload(req.ImageB64)
	if err != nil || len(img) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad image_b64"})
		return
	}
	if int64(len(img)) > h.maxBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return
	}

	eng, err := h.engs.GetEngine(req.LLMName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = h.prompt
	}
	res, err := h.run(c, extraction{
		source: "api",
		eng:    eng,
		img:    img,
		mime:   mimeFor(req.MIMEType, hint, img),
		prompt: prompt,
	})
	rid := c.GetString(requestIDKey)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      ocr.Render(res, err),
			"kind":       ocr.KindOf(err).String(),
			"request_id": rid,
		})
		return
	}
	c.JSON(http.StatusOK, OCRResponse{Text: res.Text, Engine: res.Engine, Model: res.Model, RequestID: rid})
}
