package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcriptionPrompt asks the model for a verbatim transcription so the
// downstream parser sees the same line structure the printed receipt has.
const transcriptionPrompt = `Transcribe all text visible in this receipt image, exactly as printed.

Rules:
- Keep the original line breaks: one printed line per output line
- Keep currency symbols and amounts exactly as printed
- Do not translate, summarize, or reorder anything
- Do not add any commentary before or after the transcription`

// Gemini implements Extractor using Google Gemini as the OCR engine. It
// is the offline-account alternative to the Document AI processor.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini extractor.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Extract transcribes the receipt image. Gemini classifies nothing, so
// the entity list is always empty.
func (g *Gemini) Extract(imageData []byte, contentType string) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	finalImageData, err := NormalizeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects the format suffix, not the full MIME type;
	// NormalizeImage always yields PNG.
	parts := []genai.Part{
		genai.ImageData("png", finalImageData),
		genai.Text(transcriptionPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return &Result{Text: strings.TrimSpace(text.String())}, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
