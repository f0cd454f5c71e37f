package generators

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"
	"strings"
)

// GenerateContentResponse is the REST shape of one generateContent answer
// or one streamed SSE event.
type GenerateContentResponse struct {
	Candidates []struct {
		Content struct {
			Role  string `json:"role"`
			Parts []struct {
				Text    string `json:"text"`
				Thought bool   `json:"thought"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (r GenerateContentResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// ParseSSE yields the text carried by each "data:" line of an event stream.
// Lines are reassembled across reads. A line that is not valid JSON yields a
// *MalformedChunkError and parsing continues; an in-band error object yields
// an *UpstreamError and ends the stream.
func ParseSSE(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*K), 16*M)
		for scanner.Scan() {
			line := strings.TrimSuffix(scanner.Text(), "\r")
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				return
			}

			var resp GenerateContentResponse
			if err := json.Unmarshal([]byte(data), &resp); err != nil {
				if !yield("", &MalformedChunkError{
					Data: data,
					Err:  err,
				}) {
					return
				}
				continue
			}
			if resp.Error != nil {
				yield("", &UpstreamError{
					StatusCode: resp.Error.Code,
					Body:       resp.Error.Message,
				})
				return
			}

			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
		}
	}
}
