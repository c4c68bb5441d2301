package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"unicode"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	// NoInformationMessage is returned when retrieval produced nothing to answer from
	NoInformationMessage = "I couldn't find relevant information to answer your question."

	DefaultHFAPIURL = "https://api-inference.huggingface.co/models/microsoft/DialoGPT-large"

	minGeneratedAnswer = 10
	minSentenceLength  = 20
	maxSentences       = 3
	excerptWords       = 100
)

// AnswerProvider is one strategy in the answer chain. ok is false when the
// provider could not produce an answer and the next one should be tried.
type AnswerProvider interface {
	Name() string
	TryAnswer(ctx context.Context, results []domain.RetrievalResult, query string) (answer string, ok bool)
}

// ChatCompleter sends a single prompt to a chat model
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

func buildContext(results []domain.RetrievalResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("From %s:\n%s", r.SourceFile, r.Text)
	}
	return strings.Join(parts, "\n\n")
}

// ChatProvider asks a hosted chat model (Groq by default)
type ChatProvider struct {
	client ChatCompleter
}

// NewChatProvider returns a provider that always fails over when client is nil
func NewChatProvider(client ChatCompleter) *ChatProvider {
	return &ChatProvider{client: client}
}

func (p *ChatProvider) Name() string { return "chat" }

func (p *ChatProvider) TryAnswer(ctx context.Context, results []domain.RetrievalResult, query string) (string, bool) {
	if p.client == nil {
		return "", false
	}

	prompt := fmt.Sprintf("Based on the following context, please answer the question clearly and concisely.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		buildContext(results), query)

	answer, err := p.client.Complete(ctx, prompt)
	if err != nil {
		log.Printf("answer: chat provider failed: %v", err)
		return "", false
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", false
	}
	return answer, true
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// HuggingFaceProvider calls the Hugging Face text-generation inference API
type HuggingFaceProvider struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewHuggingFaceProvider(url, token string, httpClient *http.Client) *HuggingFaceProvider {
	if url == "" {
		url = DefaultHFAPIURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HuggingFaceProvider{url: url, token: token, httpClient: httpClient}
}

func (p *HuggingFaceProvider) Name() string { return "huggingface" }

func (p *HuggingFaceProvider) TryAnswer(ctx context.Context, results []domain.RetrievalResult, query string) (string, bool) {
	if p.token == "" {
		return "", false
	}

	answer, err := p.generate(ctx, fmt.Sprintf("Context: %s\n\nQuestion: %s\n\nAnswer:", buildContext(results), query))
	if err != nil {
		log.Printf("answer: huggingface provider failed: %v", err)
		return "", false
	}

	answer = strings.TrimSpace(answer)
	if len(answer) < minGeneratedAnswer {
		return "", false
	}
	return answer, true
}

func (p *HuggingFaceProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens: 150,
			Temperature:  0.7,
			TopP:         0.9,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var list []hfGeneration
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("empty generation list")
		}
		return list[0].GeneratedText, nil
	}

	var single hfGeneration
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("unexpected response: %w", err)
	}
	return single.GeneratedText, nil
}

// ExtractiveProvider assembles an answer from retrieved sentences without
// calling any model. It always succeeds.
type ExtractiveProvider struct {
	synonyms *SynonymTable
}

func NewExtractiveProvider(synonyms *SynonymTable) *ExtractiveProvider {
	return &ExtractiveProvider{synonyms: synonyms}
}

func (p *ExtractiveProvider) Name() string { return "extractive" }

func (p *ExtractiveProvider) TryAnswer(_ context.Context, results []domain.RetrievalResult, query string) (string, bool) {
	return p.Answer(results, query), true
}

// Answer returns a numbered list of sentences relevant to query, an excerpt
// of the best result when none are relevant, or NoInformationMessage when
// there are no results.
func (p *ExtractiveProvider) Answer(results []domain.RetrievalResult, query string) string {
	if len(results) == 0 {
		return NoInformationMessage
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	sentences := strings.Split(strings.Join(texts, " "), ". ")
	lowered := make([]string, len(sentences))
	for i, s := range sentences {
		lowered[i] = strings.ToLower(s)
	}

	keywords := queryKeywords(query)

	var relevant []string
	for i, s := range lowered {
		for _, kw := range keywords {
			if strings.Contains(s, kw) {
				relevant = append(relevant, sentences[i])
				break
			}
		}
	}

	if len(relevant) == 0 {
		for _, term := range p.synonyms.RelatedTerms(keywords, query) {
			for i, s := range lowered {
				if strings.Contains(s, term) {
					relevant = append(relevant, sentences[i])
					break
				}
			}
		}
	}

	selected := selectSentences(relevant)
	if len(selected) == 0 {
		words := strings.Fields(results[0].Text)
		if len(words) > excerptWords {
			words = words[:excerptWords]
		}
		return fmt.Sprintf("Based on the available research, here's relevant information:\n\n%s...", strings.Join(words, " "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the research documents, here's what I found about %s:\n\n", query)
	for i, s := range selected {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, s)
	}
	return strings.TrimSpace(b.String())
}

// queryKeywords lower-cases the query, splits it on whitespace and trims
// surrounding punctuation from each word.
func queryKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		kw := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// selectSentences cleans, de-duplicates in first-seen order, drops short
// fragments and keeps at most maxSentences.
func selectSentences(sentences []string) []string {
	seen := make(map[string]bool, len(sentences))
	var out []string
	for _, s := range sentences {
		clean := strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
		if len(clean) <= minSentenceLength || seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
		if len(out) == maxSentences {
			break
		}
	}
	return out
}
