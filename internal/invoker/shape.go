package invoker

import (
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/resilient-ai-invoker/internal/jsonx"
)

// ResponseKind tags the classified shape of a raw upstream result. Some
// proxies wrap the completion object in odd envelopes (a bare string, an
// array of string fragments) or return an HTML error page; classification
// happens once so the normalizer can consume the shapes exhaustively.
type ResponseKind int

const (
	// KindHTMLPage means the endpoint returned a web page instead of API
	// data. Retrying is provably useless.
	KindHTMLPage ResponseKind = iota

	// KindFragments is an ordered sequence of string fragments to be
	// concatenated.
	KindFragments

	// KindString is a single text payload.
	KindString

	// KindChatObject is a structured chat-completion object.
	KindChatObject
)

// RawResponse is the classified form of an upstream result. Exactly one of
// Text, Fragments, or Object is meaningful, selected by Kind.
type RawResponse struct {
	Kind      ResponseKind
	Text      string
	Fragments []string
	Object    map[string]interface{}
}

// Classify determines the shape of a raw upstream body. Non-JSON text that
// is not an HTML page is treated as a plain string payload.
func Classify(body []byte) RawResponse {
	text := string(body)
	if isHTMLPage(text) {
		return RawResponse{Kind: KindHTMLPage, Text: text}
	}

	var parsed interface{}
	if err := jsonx.Unmarshal(body, &parsed); err != nil {
		return RawResponse{Kind: KindString, Text: text}
	}

	switch v := parsed.(type) {
	case string:
		if isHTMLPage(v) {
			return RawResponse{Kind: KindHTMLPage, Text: v}
		}
		return RawResponse{Kind: KindString, Text: v}
	case []interface{}:
		fragments := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				fragments = append(fragments, s)
			}
		}
		return RawResponse{Kind: KindFragments, Fragments: fragments}
	case map[string]interface{}:
		return RawResponse{Kind: KindChatObject, Object: v}
	default:
		return RawResponse{Kind: KindString, Text: text}
	}
}

// ExtractText normalizes a classified response to a single text payload.
// An HTML page is a terminal configuration error; an empty or
// whitespace-only payload is a recoverable "no usable content" failure.
func ExtractText(raw RawResponse) (string, error) {
	var text string

	switch raw.Kind {
	case KindHTMLPage:
		return "", newConfigError(
			"upstream endpoint returned an HTML page instead of an API response",
			"Verify "+EnvBaseURL+" points at a chat-completions API, not a web console or proxy landing page.")
	case KindFragments:
		buf := bytebufferpool.Get()
		for _, f := range raw.Fragments {
			buf.WriteString(f)
		}
		text = buf.String()
		bytebufferpool.Put(buf)
	case KindString:
		text = raw.Text
	case KindChatObject:
		text = chatContent(raw.Object)
	}

	if strings.TrimSpace(text) == "" {
		return "", newTransientError("no usable content in upstream response", nil)
	}
	return text, nil
}

// chatContent extracts the first choice's message content from a
// chat-completion object.
func chatContent(obj map[string]interface{}) string {
	choices, ok := obj["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return ""
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return ""
	}
	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return ""
	}
	content, _ := message["content"].(string)
	return content
}

// isHTMLPage reports whether the trimmed, case-folded text starts with a
// doctype or html tag.
func isHTMLPage(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(t, "<!doctype") || strings.HasPrefix(t, "<html")
}
