package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/store"
	"receipt-ocr/api/internal/util"
)

func isImageDocument(d *tgbotapi.Document) bool {
	return d != nil && util.IsImageMIME(d.MimeType)
}

func (r *Router) acceptImage(ctx context.Context, chatID int64, fileID, mime string) {
	eng, err := r.EngManager.Get(chatID)
	if err != nil {
		r.SendError(chatID, err.Error())
		return
	}

	img, err := r.fetch(ctx, fileID)
	if err != nil {
		// error text may carry the bot token
		_ = level.Warn(r.logger()).Log("msg", "download failed", "chat_id", chatID, "err", redactToken(err.Error()))
		r.SendError(chatID, "cannot download the file, please send it again")
		return
	}
	if sniffed := util.SniffMimeHTTP(img); util.IsImageMIME(sniffed) {
		mime = sniffed
	}

	r.send(chatID, "Processing image...")

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := r.prompt(chatID)
	start := time.Now()
	res, err := eng.Extract(ectx, ocr.Request{ImageB64: util.EncodeBase64(img), MIMEType: mime, Prompt: prompt})
	took := time.Since(start)

	logger := log.With(r.logger(), "chat_id", chatID, "engine", eng.Name(), "model", eng.GetModel(),
		"kind", ocr.KindOf(err), "took", took)
	if err != nil {
		_ = level.Warn(logger).Log("msg", "extraction failed", "err", err)
		r.SendError(chatID, ocr.Render(res, err))
	} else {
		_ = level.Info(logger).Log("msg", "extraction done", "chars", len(res.Text))
		r.SendResult(chatID, res.Text)
	}

	if r.Journal != nil {
		jctx, jcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer jcancel()
		if jerr := r.Journal.Insert(jctx, store.Outcome("telegram", eng, img, mime, prompt, err, took)); jerr != nil {
			_ = level.Error(logger).Log("msg", "journal insert failed", "err", jerr)
		}
	}
}

func (r *Router) fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	return r.download(ctx, url)
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	hc := r.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	max := r.MaxBytes
	if max <= 0 {
		max = 10 << 20
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("file exceeds %d bytes", max)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	return b, nil
}

// splitReply prefixes the first chunk with a header and keeps each chunk
// under the Telegram limit.
func splitReply(text string) []string {
	const header = "📝 Extracted text:\n\n"
	chunks := util.SplitMessage(text, maxReply-len(header))
	if len(chunks) > 0 {
		chunks[0] = header + chunks[0]
	}
	return chunks
}

var reBotToken = regexp.MustCompile(`/(file/)?bot[^/\s]+/`)

func redactToken(s string) string {
	return reBotToken.ReplaceAllString(s, "/${1}bot<token>/")
}
