package generators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/reusee/dscope"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/nets"
	"github.com/reusee/infsite/vars"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiSSE talks to the REST surface of the Gemini API.
type GeminiSSE struct {
	args   GeneratorArgs
	Client dscope.Inject[nets.HTTPClient]
	APIKey dscope.Inject[GoogleAPIKey]
	Logger dscope.Inject[logs.Logger]
}

var _ Generator = GeminiSSE{}

func (g GeminiSSE) Args() GeneratorArgs {
	return g.args
}

type restRequest struct {
	Contents []restContent `json:"contents"`
	Config   *restConfig   `json:"generationConfig,omitempty"`
}

type restContent struct {
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text string `json:"text"`
}

type restConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty"`
}

func (g GeminiSSE) url(method string) string {
	base := strings.TrimSuffix(vars.FirstNonZero(g.args.BaseURL, DefaultGeminiBaseURL), "/")
	return base + "/" + modelPath(g.args.Model) + ":" + method
}

func (g GeminiSSE) post(ctx context.Context, url string, prompt string) (*http.Response, error) {
	body := restRequest{
		Contents: []restContent{
			{
				Parts: []restPart{
					{Text: prompt},
				},
			},
		},
	}
	if g.args.MaxGenerateTokens != nil || g.args.Temperature != nil {
		body.Config = &restConfig{
			MaxOutputTokens: g.args.MaxGenerateTokens,
			Temperature:     g.args.Temperature,
		}
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-goog-api-key", vars.FirstNonZero(g.args.APIKey, string(g.APIKey())))

	g.Logger().InfoContext(ctx, "upstream request",
		"url", url,
	)
	return g.Client().Do(httpReq)
}

// OpenStream starts a streamGenerateContent call. The caller owns the
// response, including non-2xx ones.
func (g GeminiSSE) OpenStream(ctx context.Context, prompt string) (*http.Response, error) {
	return g.post(ctx, g.url("streamGenerateContent")+"?alt=sse", prompt)
}

// Generate performs one non-streaming generateContent call.
func (g GeminiSSE) Generate(ctx context.Context, prompt string) (*http.Response, error) {
	return g.post(ctx, g.url("generateContent"), prompt)
}

func (g GeminiSSE) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := g.OpenStream(ctx, prompt)
		if err != nil {
			yield("", fmt.Errorf("open stream: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*int64(K)))
			yield("", &UpstreamError{
				StatusCode: resp.StatusCode,
				Body:       string(body),
			})
			return
		}

		for text, err := range ParseSSE(resp.Body) {
			if !yield(text, err) {
				return
			}
		}
	}
}

type NewGeminiSSE func(args GeneratorArgs) GeminiSSE

func (Module) NewGeminiSSE(
	inject dscope.InjectStruct,
) NewGeminiSSE {
	return func(args GeneratorArgs) GeminiSSE {
		ret := GeminiSSE{
			args: args,
		}
		inject(&ret)
		return ret
	}
}
