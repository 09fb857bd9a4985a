package handle

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"receipt-ocr/api/internal/logging"
	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/store"
	"receipt-ocr/api/internal/util"
)

// ReceiptPrompt is what the upload form asks for when the user leaves the
// prompt empty and no DEFAULT_PROMPT is configured.
const ReceiptPrompt = "Extract all text and key information like total amount, date, and line items from this invoice or receipt. Present it clearly."

// Journal records extraction metadata. *store.ExtractionRepo satisfies it.
type Journal interface {
	Insert(ctx context.Context, e *store.Extraction) error
	Recent(ctx context.Context, limit int) ([]store.Extraction, error)
}

type Options struct {
	DefaultPrompt  string
	Timeout        time.Duration
	MaxUploadBytes int64
	Journal        Journal // nil disables the journal
	Logger         log.Logger
}

type Handle struct {
	engs    *ocr.Engines
	prompt  string
	timeout time.Duration
	maxBody int64
	journal Journal
	logger  log.Logger
}

func New(engs *ocr.Engines, o Options) *Handle {
	h := &Handle{
		engs:    engs,
		prompt:  strings.TrimSpace(o.DefaultPrompt),
		timeout: o.Timeout,
		maxBody: o.MaxUploadBytes,
		journal: o.Journal,
		logger:  logging.OrNop(o.Logger),
	}
	if h.timeout <= 0 {
		h.timeout = 180 * time.Second
	}
	if h.maxBody <= 0 {
		h.maxBody = 10 << 20
	}
	return h
}

// Register mounts every route on r.
func (h *Handle) Register(r *gin.Engine) {
	r.SetHTMLTemplate(pageTemplate)
	r.Use(requestID())

	r.GET("/", h.Page)
	r.POST("/extract", h.Upload)
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/ocr", h.OCR)
	v1.GET("/extractions", h.Extractions)
}

func (h *Handle) Healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok", "engines": h.engs.Names(), "journal": h.journal != nil})
}

const requestIDKey = "request_id"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// deadline reads X-Request-Timeout, then ?timeoutSec=, in seconds.
func (h *Handle) deadline(c *gin.Context) time.Duration {
	if ts := c.GetHeader("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	} else if ts := c.Query("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return h.timeout
}

type extraction struct {
	source string
	eng    ocr.Engine
	img    []byte
	mime   string
	prompt string
}

// run sends one image through eng and journals the outcome.
func (h *Handle) run(c *gin.Context, x extraction) (ocr.Result, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.deadline(c))
	defer cancel()

	start := time.Now()
	res, err := x.eng.Extract(ctx, ocr.Request{
		ImageB64: util.EncodeBase64(x.img),
		MIMEType: x.mime,
		Prompt:   x.prompt,
	})
	took := time.Since(start)

	logger := log.With(h.logger, "request_id", c.GetString(requestIDKey), "source", x.source,
		"engine", x.eng.Name(), "model", x.eng.GetModel(), "kind", ocr.KindOf(err), "took", took)
	if err != nil {
		_ = level.Warn(logger).Log("msg", "extraction failed", "err", err)
	} else {
		_ = level.Info(logger).Log("msg", "extraction done", "chars", len(res.Text))
	}

	if h.journal != nil {
		row := store.Outcome(x.source, x.eng, x.img, x.mime, x.prompt, err, took)
		// the client may already be gone; the row is still worth keeping
		jctx, jcancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer jcancel()
		if jerr := h.journal.Insert(jctx, row); jerr != nil {
			_ = level.Error(logger).Log("msg", "journal insert failed", "err", jerr)
		}
	}
	return res, err
}

// mimeFor keeps an explicit type, else sniffs; a non-image sniff leaves the
// engine default in place.
func mimeFor(explicit, hint string, img []byte) string {
	m := util.PickMIME(explicit, hint, img)
	if strings.TrimSpace(explicit) == "" && strings.TrimSpace(hint) == "" && !util.IsImageMIME(m) {
		return ""
	}
	return m
}
