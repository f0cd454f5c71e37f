package sites

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/storages"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type GenerationState uint8

const (
	AwaitingUpstream GenerationState = iota
	StreamingBody
	GenerationDone
	GenerationFailed
)

func (s GenerationState) String() string {
	switch s {
	case AwaitingUpstream:
		return "awaiting upstream"
	case StreamingBody:
		return "streaming body"
	case GenerationDone:
		return "done"
	case GenerationFailed:
		return "failed"
	}
	return "unknown"
}

const storeTimeout = 30 * time.Second

// generation writes one document to the client and keeps a copy of every
// byte written, in the same order.
type generation struct {
	ctx          context.Context
	w            http.ResponseWriter
	rc           *http.ResponseController
	logger       logs.Logger
	span         trace.Span
	state        GenerationState
	accumulated  strings.Builder
	disconnected bool
}

func (g *generation) transition(to GenerationState) {
	if g.state == to {
		return
	}
	g.logger.DebugContext(g.ctx, "generation state",
		"from", g.state,
		"to", to,
	)
	g.span.AddEvent(to.String())
	g.state = to
}

// emit writes and flushes text. It reports false once the client is gone.
func (g *generation) emit(text string) bool {
	if g.disconnected {
		return false
	}
	if text == "" {
		return true
	}
	if _, err := g.w.Write([]byte(text)); err != nil {
		g.disconnected = true
		return false
	}
	g.accumulated.WriteString(text)
	if err := g.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		g.disconnected = true
		return false
	}
	return true
}

func (g *generation) fail(err error) {
	g.transition(GenerationFailed)
	g.span.RecordError(err)
	g.span.SetStatus(codes.Error, err.Error())
	if g.ctx.Err() != nil {
		g.logger.InfoContext(g.ctx, "client gone",
			"error", err,
		)
		return
	}
	var upstreamErr *generators.UpstreamError
	if errors.As(err, &upstreamErr) {
		g.span.SetAttributes(attribute.Int("upstream.status", upstreamErr.StatusCode))
	}
	g.logger.ErrorContext(g.ctx, "generation failed",
		"error", logs.WrapSpan(g.ctx, err),
	)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, req pageRequest, store storages.Store) {
	ctx, span := tracer.Start(r.Context(), "sites.generate",
		trace.WithAttributes(
			attribute.String("page.path", req.FullPath),
			attribute.String("page.key", string(req.Key)),
		),
	)
	defer span.End()

	g := &generation{
		ctx:    ctx,
		w:      w,
		rc:     http.NewResponseController(w),
		logger: h.logger,
		span:   span,
	}
	policy := h.newPolicy()

	h.logger.InfoContext(ctx, "generating",
		"path", req.FullPath,
		"key", req.Key,
	)
	start := time.Now()

	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	g.emit(h.head)

	generator, err := h.getGenerator()
	if err != nil {
		g.fail(err)
	} else if !g.disconnected {
		for chunk, err := range generator.Stream(ctx, buildPrompt(h.config.StylesheetPath, req.FullPath)) {
			if err != nil {
				var malformed *generators.MalformedChunkError
				if errors.As(err, &malformed) {
					h.logger.WarnContext(ctx, "skip malformed chunk",
						"error", err,
					)
					continue
				}
				g.fail(err)
				break
			}
			g.transition(StreamingBody)
			if !g.emit(policy.Feed(chunk)) {
				break
			}
			if policy.Done() {
				// stop consuming the upstream, the rest is discarded
				break
			}
		}
	}

	if g.disconnected {
		if g.state != GenerationFailed {
			g.fail(errors.New("client write failed"))
		}
		return
	}

	if g.state == GenerationFailed {
		g.emit(errorFragment)
		g.emit(closingSequence)
		return
	}

	g.emit(policy.Finish())
	g.emit(closingSequence)
	if g.disconnected {
		g.fail(errors.New("client write failed"))
		return
	}
	g.transition(GenerationDone)

	document := g.accumulated.String()
	h.logger.InfoContext(ctx, "generated",
		"path", req.FullPath,
		"bytes", len(document),
		"duration", time.Since(start),
	)

	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := store.Put(putCtx, string(req.Key), []byte(document)); err != nil {
		h.logger.ErrorContext(ctx, "cache write",
			"key", req.Key,
			"error", logs.WrapSpan(ctx, err),
		)
		span.RecordError(err)
	}
}
