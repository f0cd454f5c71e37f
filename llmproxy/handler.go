package llmproxy

import (
	"bufio"
	"errors"
	"io"
	"net/http"

	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/logs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/reusee/infsite/llmproxy")

const (
	busyMessage   = "An LLM request is already in progress. Please try again later."
	noBodyMessage = "LLM response has no body"
	// sent upstream when the request has no prompt
	missingPrompt = "No prompt"
)

// Handler relays a single prompt to the model and streams back the text.
type Handler struct {
	client generators.GeminiSSE
	slot   generators.GenerationSlot
	logger logs.Logger
}

var _ http.Handler = new(Handler)

func (Module) Handler(
	newClient generators.NewGeminiSSE,
	model ModelName,
	baseURL BaseURL,
	slot generators.GenerationSlot,
	logger logs.Logger,
) *Handler {
	return &Handler{
		client: newClient(generators.GeneratorArgs{
			BaseURL: string(baseURL),
			Model:   string(model),
		}),
		slot:   slot,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.slot.TryAcquire() {
		h.logger.InfoContext(ctx, "busy")
		writeText(w, http.StatusTooManyRequests, busyMessage)
		return
	}
	defer h.slot.Release()

	query := r.URL.Query()
	prompt := query.Get("prompt")
	if !query.Has("prompt") {
		prompt = missingPrompt
	}
	streaming := query.Get("stream") != "false"

	ctx, span := tracer.Start(ctx, "llmproxy.relay",
		trace.WithAttributes(
			attribute.Bool("llm.stream", streaming),
			attribute.Int("llm.prompt_bytes", len(prompt)),
		),
	)
	defer span.End()

	var resp *http.Response
	var err error
	if streaming {
		resp, err = h.client.OpenStream(ctx, prompt)
	} else {
		resp, err = h.client.Generate(ctx, prompt)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, "upstream request",
			"error", logs.WrapSpan(ctx, err),
		)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("upstream.status", resp.StatusCode))

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	body := bufio.NewReader(resp.Body)
	if ok {
		if _, err := body.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.ErrorContext(ctx, "read upstream",
					"error", logs.WrapSpan(ctx, err),
				)
			}
			writeText(w, http.StatusInternalServerError, noBodyMessage)
			return
		}
	}

	if !streaming {
		// relayed as is, whatever the status
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, body); err != nil {
			h.logger.WarnContext(ctx, "relay body",
				"error", err,
			)
		}
		return
	}

	if !ok {
		errBody, _ := io.ReadAll(body)
		h.logger.ErrorContext(ctx, "upstream status",
			"status", resp.StatusCode,
			"body", string(errBody),
		)
		span.SetStatus(codes.Error, resp.Status)
		writeText(w, resp.StatusCode, string(errBody))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	var n int
	for text, err := range generators.ParseSSE(body) {
		if err != nil {
			var malformed *generators.MalformedChunkError
			if errors.As(err, &malformed) {
				h.logger.WarnContext(ctx, "skip malformed line",
					"error", err,
				)
				continue
			}
			// the status line is already sent
			span.RecordError(err)
			h.logger.ErrorContext(ctx, "upstream stream",
				"error", logs.WrapSpan(ctx, err),
			)
			break
		}
		if _, err := io.WriteString(w, text); err != nil {
			h.logger.InfoContext(ctx, "client gone",
				"error", err,
			)
			break
		}
		n += len(text)
		_ = rc.Flush()
	}
	h.logger.InfoContext(ctx, "relayed",
		"bytes", n,
	)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
