package handle

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/util"
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

var uploadExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

const uploadTooLarge = "The file is larger than the upload limit."

// tooLarge reports whether err came from a body cut off by http.MaxBytesReader.
func tooLarge(err error, contentLength, limit int64) bool {
	if err == nil {
		return false
	}
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || contentLength > limit
}

type pageData struct {
	Engines  []string
	Engine   string
	Prompt   string
	MaxMB    int64
	FileName string
	Preview  template.URL
	Text     string
	Error    string
	Kind     string
	Done     bool
}

func (h *Handle) newPage(engine, prompt string) pageData {
	if prompt == "" {
		prompt = h.formPrompt()
	}
	if engine == "" {
		engine = h.engs.Default
	}
	return pageData{Engines: h.engs.Names(), Engine: engine, Prompt: prompt, MaxMB: h.maxBody >> 20}
}

func (h *Handle) formPrompt() string {
	if h.prompt != "" {
		return h.prompt
	}
	return ReceiptPrompt
}

func (h *Handle) Page(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.newPage("", ""))
}

// Upload handles the form post: one image, optional prompt and engine.
func (h *Handle) Upload(c *gin.Context) {
	limit := h.maxBody + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	// the form is parsed here, so a body over the limit fails before any field is read
	fh, ferr := c.FormFile("image")

	prompt := strings.TrimSpace(c.PostForm("prompt"))
	page := h.newPage(c.PostForm("engine"), prompt)
	fail := func(code int, msg string) {
		page.Error = msg
		c.HTML(code, "index.html", page)
	}

	switch {
	case tooLarge(ferr, c.Request.ContentLength, limit):
		fail(http.StatusRequestEntityTooLarge, uploadTooLarge)
		return
	case ferr != nil:
		fail(http.StatusBadRequest, "Please upload an image to get started.")
		return
	}
	page.FileName = filepath.Base(fh.Filename)
	if fh.Size > h.maxBody {
		fail(http.StatusRequestEntityTooLarge, uploadTooLarge)
		return
	}
	extMIME, ok := uploadExt[strings.ToLower(filepath.Ext(fh.Filename))]
	if !ok {
		fail(http.StatusUnsupportedMediaType, "Choose an image file (JPG, PNG, WEBP).")
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(http.StatusBadRequest, "Could not read the upload: "+err.Error())
		return
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil || len(img) == 0 {
		fail(http.StatusBadRequest, "The uploaded file is empty.")
		return
	}

	eng, err := h.engs.GetEngine(c.PostForm("engine"))
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}
	page.Engine = eng.Name()

	mime := extMIME
	if sniffed := util.SniffMimeHTTP(img); util.IsImageMIME(sniffed) {
		mime = sniffed
	}
	page.Preview = template.URL(util.MakeDataURL(mime, util.EncodeBase64(img)))

	res, err := h.run(c, extraction{source: "web", eng: eng, img: img, mime: mime, prompt: page.Prompt})
	page.Done = true
	if err != nil {
		page.Error = ocr.Render(res, err)
		page.Kind = ocr.KindOf(err).String()
		c.HTML(http.StatusOK, "index.html", page)
		return
	}
	page.Text = res.Text
	c.HTML(http.StatusOK, "index.html", page)
}
