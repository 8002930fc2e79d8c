// Package qa turns retrieved review passages into natural-language answers.
//
// It owns the prompt assembly and the call to an OpenAI-compatible chat
// model; retrieval itself is delegated to the hybrid store.
package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/hybrid"
	"github.com/carqa/carqa/internal/vectorstore"
)

// retrievalK is how many passages are retrieved per question.
const retrievalK = 10

// Config holds settings for the answer-generation model.
type Config struct {
	// BaseURL is an OpenAI-compatible chat completions endpoint. Empty
	// means the provider default.
	BaseURL string `koanf:"base_url"`
	// Model is the chat model name.
	Model string `koanf:"model"`
	// APIKey authenticates against the endpoint.
	APIKey string `koanf:"api_key"`
	// Temperature controls generation randomness.
	Temperature float64 `koanf:"temperature"`
}

const systemTemplate = `You are a car expert analyzing expert reviews and long-term ownership experiences. Provide clear, specific answers based ONLY on the review content.
If information is missing, explicitly state that. Never add assumptions or external information.

Distinguish between:
- Expert reviews: Professional evaluations from test drives.
- Long-term reviews: Real-world experiences over time (costs, maintenance, usability).

For follow-up questions:
1. Maintain context using pronouns (it, this car, etc.).
2. Avoid repeating previous information.
3. If the question is ambiguous, ask for clarification.

Format responses clearly:
- Use bullet points for lists.
- Separate expert and long-term review insights.
- Be concise and avoid repetition.

If information is unavailable, say: "The reviews don't mention this. Would you like to ask something else?"
If the question is off-topic, redirect to car-related topics.

Current car being discussed: {{.current_car}}`

const userTemplate = `Previous context: {{.previous_context}}

Current question: {{.question}}

Relevant review sections:
{{.context}}`

// Service answers questions about car reviews using retrieval-augmented
// generation.
type Service struct {
	llm    llms.Model
	store  *hybrid.Store
	system prompts.PromptTemplate
	user   prompts.PromptTemplate
	config Config
	logger *zap.Logger
}

// NewService creates a Q&A service. A misconfigured model endpoint is
// surfaced here, before any question is asked.
func NewService(cfg Config, store *hybrid.Store, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing chat model: %w", err)
	}

	return &Service{
		llm:    llm,
		store:  store,
		system: prompts.NewPromptTemplate(systemTemplate, []string{"current_car"}),
		user:   prompts.NewPromptTemplate(userTemplate, []string{"previous_context", "question", "context"}),
		config: cfg,
		logger: logger,
	}, nil
}

// Answer answers a question about car reviews. The filter restricts
// retrieval to matching metadata (conjunctive equality); previousContext
// carries the conversation so far for follow-up questions.
func (s *Service) Answer(ctx context.Context, question string, filter map[string]string, previousContext string) (string, error) {
	currentCar := "None"
	if filter["make"] != "" && filter["model"] != "" {
		currentCar = filter["make"] + " " + filter["model"]
		question = enrichQuestion(question, currentCar)
	}

	docs, err := s.store.Search(ctx, question, retrievalK, filter)
	if err != nil {
		return "", fmt.Errorf("retrieving review passages: %w", err)
	}

	if len(docs) == 0 {
		if currentCar != "None" {
			return fmt.Sprintf("I couldn't find any information about %s. Please try another question or select a different car.", currentCar), nil
		}
		return "I couldn't find any information about the car you asked about. Please try another question or select a different car.", nil
	}

	systemMsg, err := s.system.Format(map[string]any{"current_car": currentCar})
	if err != nil {
		return "", fmt.Errorf("formatting system prompt: %w", err)
	}

	if previousContext == "" {
		previousContext = "None"
	}
	userMsg, err := s.user.Format(map[string]any{
		"previous_context": previousContext,
		"question":         question,
		"context":          FormatDocuments(docs),
	})
	if err != nil {
		return "", fmt.Errorf("formatting user prompt: %w", err)
	}

	resp, err := s.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, systemMsg),
			llms.TextParts(schema.ChatMessageTypeHuman, userMsg),
		},
		llms.WithTemperature(s.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat model returned no choices")
	}

	s.logger.Debug("question answered",
		zap.String("current_car", currentCar),
		zap.Int("passages", len(docs)),
	)

	return resp.Choices[0].Content, nil
}

// enrichQuestion makes the car under discussion explicit in the question so
// retrieval works on bare follow-ups like "is the car reliable?".
func enrichQuestion(question, carName string) string {
	lower := strings.ToLower(question)
	if strings.Contains(lower, "car") {
		return strings.ReplaceAll(lower, "car", carName)
	}
	if !strings.Contains(lower, strings.ToLower(carName)) {
		return question + " for " + carName
	}
	return question
}

// FormatDocuments renders retrieved passages into the prompt context block.
func FormatDocuments(docs []vectorstore.Document) string {
	sections := make([]string, len(docs))
	for i, doc := range docs {
		carInfo := strings.TrimSpace(fmt.Sprintf("%s %s %s",
			doc.Metadata["model_year"],
			doc.Metadata["make"],
			doc.Metadata["model"],
		))
		sections[i] = fmt.Sprintf("Section from %s review:\n%s\n", carInfo, doc.Content)
	}
	return strings.Join(sections, "\n---\n")
}
