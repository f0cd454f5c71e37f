package sites

import (
	"strings"
)

// BodyPolicy decides which parts of the model output reach the document.
// Feed returns the text to forward for one chunk, Finish the text to forward
// once the upstream has ended. Done reports that nothing more will be
// forwarded.
type BodyPolicy interface {
	Feed(chunk string) string
	Finish() string
	Done() bool
}

type BodyPolicyKind string

const (
	BodyPolicyPassthrough BodyPolicyKind = "passthrough"
	BodyPolicyMarker      BodyPolicyKind = "marker"
)

type NewBodyPolicy func() BodyPolicy

func (Module) NewBodyPolicy(
	config Config,
) NewBodyPolicy {
	if config.BodyPolicy == BodyPolicyMarker {
		return func() BodyPolicy {
			return NewMarkerPolicy(config.StartMarker, config.EndMarker)
		}
	}
	return func() BodyPolicy {
		return new(passthroughPolicy)
	}
}

type passthroughPolicy struct{}

func (*passthroughPolicy) Feed(chunk string) string {
	return chunk
}

func (*passthroughPolicy) Finish() string {
	return ""
}

func (*passthroughPolicy) Done() bool {
	return false
}

type MarkerState uint8

const (
	AwaitingMarker MarkerState = iota
	Forwarding
	MarkerDone
)

func (s MarkerState) String() string {
	switch s {
	case AwaitingMarker:
		return "awaiting marker"
	case Forwarding:
		return "forwarding"
	case MarkerDone:
		return "done"
	}
	return "unknown"
}

// MarkerPolicy forwards the text from the first start marker up to and
// including the first end marker after it. Markers may span chunks.
type MarkerPolicy struct {
	start   string
	end     string
	state   MarkerState
	pending strings.Builder
	scanned int
	// tail holds the last len(end)-1 forwarded bytes
	tail string
}

var _ BodyPolicy = new(MarkerPolicy)

func NewMarkerPolicy(start, end string) *MarkerPolicy {
	return &MarkerPolicy{
		start: start,
		end:   end,
	}
}

func (m *MarkerPolicy) State() MarkerState {
	return m.state
}

func (m *MarkerPolicy) Feed(chunk string) string {
	switch m.state {

	case AwaitingMarker:
		m.pending.WriteString(chunk)
		buf := m.pending.String()
		i := strings.Index(buf[m.scanned:], m.start)
		if i < 0 {
			// a partial marker may sit at the end
			m.scanned = max(0, len(buf)-len(m.start)+1)
			return ""
		}
		text := buf[m.scanned+i:]
		m.pending.Reset()
		m.scanned = 0
		m.state = Forwarding
		return m.forward(text)

	case Forwarding:
		return m.forward(chunk)

	}
	return ""
}

func (m *MarkerPolicy) forward(text string) string {
	combined := m.tail + text
	if i := strings.Index(combined, m.end); i >= 0 {
		cut := i + len(m.end) - len(m.tail)
		m.state = MarkerDone
		m.tail = ""
		return text[:cut]
	}
	keep := len(m.end) - 1
	if len(combined) > keep {
		m.tail = combined[len(combined)-keep:]
	} else {
		m.tail = combined
	}
	return text
}

// Finish forwards nothing: text buffered while awaiting the start marker is
// dropped, and an unterminated body has already been forwarded.
func (m *MarkerPolicy) Finish() string {
	m.pending.Reset()
	return ""
}

func (m *MarkerPolicy) Done() bool {
	return m.state == MarkerDone
}
