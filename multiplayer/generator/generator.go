// Package generator talks to the remote story-generation service.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storyserver/models"
)

// LastChoice is the choice that closed the previous segment.
type LastChoice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Request asks for the next story segment; an empty PreviousContent asks for
// the opening segment.
type Request struct {
	GenreID           string                `json:"genreId"`
	PersonalityTraits []string              `json:"personalityTraits"`
	Character         string                `json:"character,omitempty"`
	PreviousContent   string                `json:"previousContent,omitempty"`
	LastChoice        *LastChoice           `json:"lastChoice,omitempty"`
	ChoiceHistory     []models.ChoiceRecord `json:"choiceHistory,omitempty"`
	IsMultiplayer     bool                  `json:"isMultiplayer"`
}

// Segment is the generator's answer.
type Segment struct {
	Content              string                   `json:"content"`
	Choices              []models.Choice          `json:"choices"`
	IsStoryComplete      bool                     `json:"isStoryComplete"`
	LastChoiceEvaluation *models.ChoiceEvaluation `json:"lastChoiceEvaluation,omitempty"`
}

// Generator produces story segments.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Segment, error)
}

// HTTPGenerator posts requests as JSON to a generation endpoint.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{url: url, client: &http.Client{Timeout: timeout}}
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Segment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call story generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("story generator returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var seg Segment
	if err := json.NewDecoder(resp.Body).Decode(&seg); err != nil {
		return nil, fmt.Errorf("decode story segment: %w", err)
	}
	return &seg, nil
}
