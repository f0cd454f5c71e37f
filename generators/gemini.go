package generators

import (
	"context"
	"errors"
	"io"
	"iter"
	"net"
	"strings"
	"sync"
	"time"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/avast/retry-go/v4"
	"github.com/reusee/dscope"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/nets"
	"github.com/reusee/infsite/vars"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
)

type Gemini struct {
	args      GeneratorArgs
	GetClient dscope.Inject[GetGeminiClient]
	Logger    dscope.Inject[logs.Logger]
}

var _ Generator = Gemini{}

func (g Gemini) Args() GeneratorArgs {
	return g.args
}

func (g Gemini) request(prompt string) *generativelanguagepb.GenerateContentRequest {
	var maxOutputTokens *int32
	if g.args.MaxGenerateTokens != nil {
		maxOutputTokens = vars.PtrTo(int32(*g.args.MaxGenerateTokens))
	}
	return &generativelanguagepb.GenerateContentRequest{
		Model: modelPath(g.args.Model),
		Contents: []*generativelanguagepb.Content{
			{
				Role: "user",
				Parts: []*generativelanguagepb.Part{
					{
						Data: &generativelanguagepb.Part_Text{
							Text: prompt,
						},
					},
				},
			},
		},
		GenerationConfig: &generativelanguagepb.GenerationConfig{
			MaxOutputTokens: maxOutputTokens,
			Temperature:     g.args.Temperature,
		},
	}
}

func (g Gemini) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		client, err := g.GetClient()(ctx, g.args.APIKey)
		if err != nil {
			yield("", err)
			return
		}
		req := g.request(prompt)

		g.Logger().InfoContext(ctx, "generating",
			"model", req.Model,
		)

		// the first Recv is where most call errors surface, so it is part of
		// the retried unit. nothing has been yielded at that point.
		var stream generativelanguagepb.GenerativeService_StreamGenerateContentClient
		var resp *generativelanguagepb.GenerateContentResponse
		err = retry.Do(
			func() error {
				s, err := client.StreamGenerateContent(ctx, req)
				if err != nil {
					return err
				}
				first, err := s.Recv()
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				stream, resp = s, first
				return nil
			},
			openRetryOptions(ctx, g.Logger())...,
		)
		if err != nil {
			yield("", err)
			return
		}

		for resp != nil {
			if text := geminiResponseText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
			if reason := firstCandidate(resp).GetFinishReason(); reason > 0 {
				g.Logger().DebugContext(ctx, "finish",
					"reason", reason.String(),
				)
			}
			resp, err = stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}

func firstCandidate(resp *generativelanguagepb.GenerateContentResponse) *generativelanguagepb.Candidate {
	if len(resp.GetCandidates()) == 0 {
		return nil
	}
	return resp.Candidates[0]
}

// geminiResponseText concatenates the non-thought text parts of the first candidate.
func geminiResponseText(resp *generativelanguagepb.GenerateContentResponse) string {
	candidate := firstCandidate(resp)
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Thought {
			continue
		}
		if data, ok := part.Data.(*generativelanguagepb.Part_Text); ok {
			b.WriteString(data.Text)
		}
	}
	return b.String()
}

func openRetryOptions(ctx context.Context, logger logs.Logger) []retry.Option {
	return []retry.Option{
		retry.Attempts(5),
		retry.Delay(1 * time.Second),
		retry.MaxDelay(16 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.WarnContext(ctx, "retry",
				"attempt", n+1, "error", err,
			)
		}),
	}
}

type GetGeminiClient = func(ctx context.Context, key string) (*generativelanguage.GenerativeClient, error)

func (Module) GetGeminiClient(
	dialer nets.Dialer,
	apiKey GoogleAPIKey,
) GetGeminiClient {
	var clients sync.Map // key -> *generativelanguage.GenerativeClient
	return func(ctx context.Context, key string) (*generativelanguage.GenerativeClient, error) {
		key = vars.FirstNonZero(
			key,
			string(apiKey),
		)

		if v, ok := clients.Load(key); ok {
			return v.(*generativelanguage.GenerativeClient), nil
		}

		clientOptions := []option.ClientOption{
			option.WithAPIKey(key),
			option.WithGRPCDialOption(
				grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
					return dialer.DialContext(ctx, "tcp", addr)
				}),
			),
		}
		// the client outlives the request that created it
		client, err := generativelanguage.NewGenerativeClient(context.WithoutCancel(ctx), clientOptions...)
		if err != nil {
			return nil, err
		}

		v, loaded := clients.LoadOrStore(key, client)
		if loaded {
			// not store
			client.Close()
		}

		return v.(*generativelanguage.GenerativeClient), nil
	}
}

type NewGemini func(args GeneratorArgs) Gemini

func (Module) NewGemini(
	inject dscope.InjectStruct,
) NewGemini {
	return func(args GeneratorArgs) Gemini {
		ret := Gemini{
			args: args,
		}
		inject(&ret)
		return ret
	}
}
