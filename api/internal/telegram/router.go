package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"receipt-ocr/api/internal/logging"
	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/store"
)

// Telegram rejects messages longer than 4096 characters.
const maxReply = 3900

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Journal interface {
	Insert(ctx context.Context, e *store.Extraction) error
}

type Router struct {
	Bot        Bot
	EngManager *ocr.Manager
	Journal    Journal // optional
	Logger     log.Logger

	DefaultPrompt string // DEFAULT_PROMPT / PROMPT_FILE; empty means ocr.DefaultPrompt

	Timeout  time.Duration // per extraction
	MaxBytes int64         // largest image downloaded
	HTTP     *http.Client
}

func (r *Router) logger() log.Logger { return logging.OrNop(r.Logger) }

// prompt is the chat's own prompt, else the configured default. An empty
// result lets the engine apply ocr.DefaultPrompt.
func (r *Router) prompt(chatID int64) string {
	if p := r.EngManager.Prompt(chatID); p != "" {
		return p
	}
	return strings.TrimSpace(r.DefaultPrompt)
}

// HandleUpdate dispatches one update: commands, photos and image documents.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.HandleCommand(cid, msg.Command(), msg.CommandArguments())
	case len(msg.Photo) > 0:
		// последний размер самый крупный
		ph := msg.Photo[len(msg.Photo)-1]
		r.acceptImage(ctx, cid, ph.FileID, "image/jpeg")
	case msg.Document != nil:
		if !isImageDocument(msg.Document) {
			r.send(cid, "Only images are supported (JPG, PNG, WEBP). Send the receipt as a photo or an image file.")
			return
		}
		r.acceptImage(ctx, cid, msg.Document.FileID, msg.Document.MimeType)
	case strings.TrimSpace(msg.Text) != "":
		r.send(cid, "Send a photo of an invoice or receipt. /help lists the commands.")
	}
}

func (r *Router) send(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(m); err != nil {
		_ = level.Warn(r.logger()).Log("msg", "telegram send failed", "chat_id", chatID, "err", err)
	}
}

// SendResult sends the extracted text, split into messages Telegram accepts.
func (r *Router) SendResult(chatID int64, text string) {
	chunks := splitReply(text)
	if len(chunks) == 0 {
		r.send(chatID, "The model returned no text for this image.")
		return
	}
	for _, c := range chunks {
		r.send(chatID, c)
	}
}

func (r *Router) SendError(chatID int64, msg string) {
	r.send(chatID, "OCR failed: "+msg)
}
