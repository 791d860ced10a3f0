package tagger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Tagger produces a short scene description for an image.
type Tagger interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

const chatModel = openai.ChatModelGPT4_1Mini

const systemPrompt = `You tag photos for a personal photo library.
Respond with a JSON object of the form {"tags": ["tag1", "tag2", "tag3"]}
containing at most three short lowercase tags describing the main subjects
and setting of the photo. No sentences, no punctuation inside tags.`

// OpenAITagger asks a vision model for scene tags. Thumbnails are sent
// rather than originals to keep token usage down.
type OpenAITagger struct {
	client *openai.Client
}

// NewOpenAITagger builds a tagger using the given API key.
func NewOpenAITagger(apiKey string) *OpenAITagger {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAITagger{client: &client}
}

type tagResponse struct {
	Tags []string `json:"tags"`
}

// Describe returns up to three comma-joined tags for the image at
// imagePath, e.g. "beach, sunset, dog".
func (t *OpenAITagger) Describe(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", imagePath, err)
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							openai.TextContentPart("Tag this photo."),
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    imageURL,
								Detail: "low",
							}),
						},
					},
				},
			},
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(100),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	var parsed tagResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse tag response: %w", err)
	}

	tags := parsed.Tags
	if len(tags) > 3 {
		tags = tags[:3]
	}
	var clean []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			clean = append(clean, tag)
		}
	}
	if len(clean) == 0 {
		return "", errors.New("empty tag response")
	}
	return strings.Join(clean, ", "), nil
}
