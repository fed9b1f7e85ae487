package engine

import "strings"

// Token is one decoded character with its position in the audio.
type Token struct {
	Text string
	// Timestep is the 20ms engine step the token was emitted at.
	Timestep int
	// StartTime is the token position in seconds.
	StartTime float32
}

// CandidateTranscript is one hypothesis of an n-best decode.
type CandidateTranscript struct {
	Text       string
	Tokens     []Token
	Confidence float64
}

// Metadata is what an engine returns from a decode, best candidate first.
type Metadata struct {
	Transcripts []CandidateTranscript
}

// Result is a partial or final transcript handed to callers.
type Result struct {
	Text       string
	Candidates []CandidateTranscript
}

// NewResult builds a Result from engine metadata. Candidates with no Text
// but with tokens get their text joined from the tokens.
func NewResult(md Metadata) Result {
	candidates := make([]CandidateTranscript, 0, len(md.Transcripts))
	for _, c := range md.Transcripts {
		if c.Text == "" && len(c.Tokens) > 0 {
			c.Text = TokensText(c.Tokens)
		}
		c.Tokens = append([]Token(nil), c.Tokens...)
		candidates = append(candidates, c)
	}
	r := Result{Candidates: candidates}
	if len(candidates) > 0 {
		r.Text = candidates[0].Text
	}
	return r
}

func TokensText(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Empty reports whether the result carries no text.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}
