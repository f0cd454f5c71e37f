package sites

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/storages"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/reusee/infsite/sites")

// Handler serves every non-API path: short-circuit assets, cached documents
// and fresh generations.
type Handler struct {
	config       Config
	head         string
	getStore     storages.GetStore
	getGenerator generators.GetDefaultGenerator
	slot         generators.GenerationSlot
	newPolicy    NewBodyPolicy
	logger       logs.Logger
}

var _ http.Handler = new(Handler)

func (Module) Handler(
	config Config,
	getStore storages.GetStore,
	getGenerator generators.GetDefaultGenerator,
	slot generators.GenerationSlot,
	newPolicy NewBodyPolicy,
	logger logs.Logger,
) *Handler {
	return &Handler{
		config:       config,
		head:         documentHead(config.StylesheetPath),
		getStore:     getStore,
		getGenerator: getGenerator,
		slot:         slot,
		newPolicy:    newPolicy,
		logger:       logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := newPageRequest(r)
	switch h.config.classify(req.Path) {
	case routeStylesheet:
		h.serveStylesheet(w, r)
	case routeImage:
		h.redirectImage(w, r, req)
	case routeInert:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	default:
		h.servePage(w, r, req)
	}
}

func (h *Handler) serveStylesheet(w http.ResponseWriter, r *http.Request) {
	path := h.config.StylesheetFile
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		h.logger.ErrorContext(r.Context(), "open stylesheet",
			"path", path,
			"error", logs.WrapSpan(r.Context(), err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// extensionless runtimes are sniffed
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" || contentType == "application/octet-stream" {
		mt, err := mimetype.DetectFile(path)
		if err == nil {
			contentType = mt.String()
		}
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) redirectImage(w http.ResponseWriter, r *http.Request, req pageRequest) {
	query := r.URL.Query()
	width := positiveInt(query.Get("w"), h.config.ImageWidth)
	height := positiveInt(query.Get("h"), h.config.ImageHeight)
	target := h.config.ImageBaseURL + "/seed/" + string(req.Key) + "/" +
		strconv.Itoa(width) + "/" + strconv.Itoa(height)
	http.Redirect(w, r, target, http.StatusFound)
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, req pageRequest) {
	ctx := r.Context()

	store, err := h.getStore()
	if err != nil {
		h.logger.ErrorContext(ctx, "get store",
			"error", logs.WrapSpan(ctx, err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	content, ok, err := store.Get(ctx, string(req.Key))
	if err != nil {
		// read failures degrade to a miss
		h.logger.WarnContext(ctx, "cache read",
			"key", req.Key,
			"error", err,
		)
		ok = false
	}
	if ok {
		h.logger.InfoContext(ctx, "cache hit",
			"path", req.FullPath,
			"key", req.Key,
		)
		header := w.Header()
		header.Set("Content-Type", "text/html; charset=utf-8")
		header.Set("Content-Length", strconv.Itoa(len(content)))
		header.Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
		return
	}

	if !h.slot.TryAcquire() {
		h.logger.InfoContext(ctx, "busy",
			"path", req.FullPath,
		)
		http.Error(w, busyMessage, http.StatusServiceUnavailable)
		return
	}
	defer h.slot.Release()

	h.generate(w, r, req, store)
}
