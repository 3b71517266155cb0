package translation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the longest text the backend accepts in a single request.
const MaxTextLength = 10000

// DefaultChunkSize is the target chunk length used when a too-long text is
// split for piecewise retry.
const DefaultChunkSize = 1000

// Options carries the optional knobs of a translation request. They are part
// of the cache fingerprint: a text-only and a text+audio request for the same
// text are different artifacts.
type Options struct {
	Voice        string `json:"voice,omitempty"`
	IncludeAudio bool   `json:"include_audio,omitempty"`
}

// Request is one translation to perform.
type Request struct {
	Text       string  `json:"text"`
	SourceLang string  `json:"source_lang"`
	TargetLang string  `json:"target_lang"`
	Options    Options `json:"options"`
}

// Response is the backend's answer to a Request.
type Response struct {
	TranslatedText string  `json:"translated_text"`
	Confidence     float64 `json:"confidence"`
	Audio          []byte  `json:"audio,omitempty"`
}

// Validate checks the request preconditions that must hold before any I/O
// is spent on it.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return NewInputInvalid("text is empty")
	}
	if utf8.RuneCountInString(r.Text) > MaxTextLength {
		return NewTextTooLong(utf8.RuneCountInString(r.Text))
	}
	if r.SourceLang == "" || r.TargetLang == "" {
		return NewInputInvalid("source and target languages are required")
	}
	return nil
}

// Fingerprint returns the cache key for this request: a hex SHA-256 over the
// text, the language pair and the voice/audio options. Two requests with the
// same fingerprint are guaranteed to produce the same artifact.
func (r Request) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%t",
		r.Text, r.SourceLang, r.TargetLang, r.Options.Voice, r.Options.IncludeAudio)
	return hex.EncodeToString(h.Sum(nil))
}

// ChunkText splits text into pieces of at most chunkSize runes, preferring to
// break on whitespace so words survive intact. Used by the split-and-retry
// recovery path for over-long inputs.
func ChunkText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= chunkSize {
			chunk := strings.TrimSpace(string(runes))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Scan backwards from the cut point for a whitespace boundary.
		cut := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if isSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}

	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
