package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/scholarkit/scholarkit-go/scholarkit"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini is an adapter for Google's Gemini models.
//
// Wraps the Google GenAI SDK. Declared ToolSpecs become Gemini function
// declarations; function calls in the response surface as Message.ToolCalls.
// Gemini matches function responses by name rather than call id, so the
// adapter synthesizes ids from the function name.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a new Gemini adapter.
//
// If apiKey is empty, GEMINI_API_KEY then GOOGLE_API_KEY are consulted.
// If model is empty, gemini-2.0-flash is used.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini api key required: provide apiKey or set GEMINI_API_KEY or GOOGLE_API_KEY")
		}
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// Model returns the model identifier.
func (g *Gemini) Model() string {
	return g.model
}

// Complete generates a completion from Gemini.
func (g *Gemini) Complete(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (*scholarkit.Message, error) {
	options := BuildCallOptions(opts...)

	model := g.client.GenerativeModel(g.model)
	if err := g.configureModel(model, options); err != nil {
		return nil, err
	}

	history, lastParts, err := g.convertMessages(model, messages)
	if err != nil {
		return nil, err
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, lastParts...)
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}

	response := scholarkit.NewMessage(scholarkit.RoleAssistant, "")
	response.Metadata["model"] = g.model

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				response.Content += string(p)
			case genai.FunctionCall:
				response.ToolCalls = append(response.ToolCalls, scholarkit.ToolCall{
					ID:        "call-" + p.Name,
					Name:      p.Name,
					Arguments: p.Args,
				})
			}
		}
	}

	if resp.UsageMetadata != nil {
		response.Metadata["usage"] = map[string]interface{}{
			"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
			"completion_tokens": resp.UsageMetadata.CandidatesTokenCount,
			"total_tokens":      resp.UsageMetadata.TotalTokenCount,
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != 0 {
		response.Metadata["finish_reason"] = resp.Candidates[0].FinishReason.String()
	}

	return response, nil
}

// Stream generates completion chunks from Gemini.
func (g *Gemini) Stream(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (<-chan *scholarkit.Message, error) {
	options := BuildCallOptions(opts...)

	model := g.client.GenerativeModel(g.model)
	if err := g.configureModel(model, options); err != nil {
		return nil, err
	}

	history, lastParts, err := g.convertMessages(model, messages)
	if err != nil {
		return nil, err
	}

	session := model.StartChat()
	session.History = history

	iter := session.SendMessageStream(ctx, lastParts...)

	messageChan := make(chan *scholarkit.Message)

	go func() {
		defer close(messageChan)

		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errorMsg := scholarkit.NewMessage(scholarkit.RoleAssistant, "")
				errorMsg.Metadata["error"] = err.Error()
				errorMsg.Metadata["streaming"] = true
				select {
				case messageChan <- errorMsg:
				case <-ctx.Done():
				}
				return
			}

			content := extractGeminiText(resp)
			if content != "" {
				chunk := scholarkit.NewMessage(scholarkit.RoleAssistant, content)
				chunk.Metadata["streaming"] = true
				chunk.Metadata["model"] = g.model
				select {
				case messageChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return messageChan, nil
}

// configureModel applies call options to the generative model.
func (g *Gemini) configureModel(model *genai.GenerativeModel, options *CallOptions) error {
	if options.Temperature != nil {
		temp := float32(*options.Temperature)
		model.Temperature = &temp
	}
	if options.MaxTokens != nil {
		maxTokens := int32(*options.MaxTokens)
		model.MaxOutputTokens = &maxTokens
	}
	if options.TopP != nil {
		topP := float32(*options.TopP)
		model.TopP = &topP
	}
	if topK, ok := options.Extra["top_k"].(int); ok {
		topKInt := int32(topK)
		model.TopK = &topKInt
	}
	if stopSequences, ok := options.Extra["stop_sequences"].([]string); ok {
		model.StopSequences = stopSequences
	}

	if len(options.Tools) > 0 {
		tool := &genai.Tool{}
		for _, spec := range options.Tools {
			schema, err := convertGeminiSchema(spec.Parameters)
			if err != nil {
				return fmt.Errorf("tool %q: %w", spec.Name, err)
			}
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  schema,
			})
		}
		model.Tools = []*genai.Tool{tool}

		switch options.ToolChoice {
		case "", "auto":
			model.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAuto}}
		case "none":
			model.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingNone}}
		case "required":
			model.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAny}}
		default:
			return fmt.Errorf("unknown tool choice %q", options.ToolChoice)
		}
	}

	return nil
}

// convertMessages converts scholarkit Messages to Gemini chat history.
//
// System messages become the model's system instruction. Tool results become
// function-response parts. Returns the history plus the parts for the final
// message being sent.
func (g *Gemini) convertMessages(model *genai.GenerativeModel, messages []*scholarkit.Message) ([]*genai.Content, []genai.Part, error) {
	var conversational []*scholarkit.Message
	for _, msg := range messages {
		if msg.Role == scholarkit.RoleSystem {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
			continue
		}
		conversational = append(conversational, msg)
	}

	if len(conversational) == 0 {
		return nil, nil, errors.New("gemini requires at least one non-system message")
	}

	var history []*genai.Content
	for _, msg := range conversational[:len(conversational)-1] {
		content, err := geminiContent(msg)
		if err != nil {
			return nil, nil, err
		}
		history = append(history, content)
	}

	last, err := geminiContent(conversational[len(conversational)-1])
	if err != nil {
		return nil, nil, err
	}

	return history, last.Parts, nil
}

// geminiContent converts one message into a Gemini content block.
func geminiContent(msg *scholarkit.Message) (*genai.Content, error) {
	switch msg.Role {
	case scholarkit.RoleTool:
		// Gemini keys function responses by function name, carried in the
		// synthesized "call-<name>" id.
		name := msg.ToolCallID
		if len(name) > 5 && name[:5] == "call-" {
			name = name[5:]
		}
		return &genai.Content{
			Role: "function",
			Parts: []genai.Part{genai.FunctionResponse{
				Name:     name,
				Response: map[string]interface{}{"content": msg.Content},
			}},
		}, nil

	case scholarkit.RoleAssistant:
		content := &genai.Content{Role: "model"}
		if msg.Content != "" {
			content.Parts = append(content.Parts, genai.Text(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			content.Parts = append(content.Parts, genai.FunctionCall{
				Name: tc.Name,
				Args: tc.Arguments,
			})
		}
		if len(content.Parts) == 0 {
			content.Parts = append(content.Parts, genai.Text(""))
		}
		return content, nil

	case scholarkit.RoleUser:
		return &genai.Content{
			Role:  "user",
			Parts: []genai.Part{genai.Text(msg.Content)},
		}, nil

	default:
		// Unknown roles map to assistant, matching the other adapters.
		return &genai.Content{
			Role:  "model",
			Parts: []genai.Part{genai.Text(msg.Content)},
		}, nil
	}
}

// convertGeminiSchema converts a JSON Schema object into a genai.Schema.
//
// Handles the subset of JSON Schema the function-calling tools in this
// repository use: scalar types, objects with properties/required, arrays
// with items, descriptions, and enums.
func convertGeminiSchema(schema map[string]interface{}) (*genai.Schema, error) {
	if schema == nil {
		return nil, errors.New("schema is nil")
	}

	out := &genai.Schema{}

	typeName, _ := schema["type"].(string)
	switch typeName {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typeName)
	}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}

	if enumVals, ok := schema["enum"].([]interface{}); ok {
		for _, v := range enumVals {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			propSchema, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("property %q is not a schema object", name)
			}
			converted, err := convertGeminiSchema(propSchema)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			out.Properties[name] = converted
		}
	}

	if required, ok := schema["required"].([]interface{}); ok {
		for _, v := range required {
			if s, ok := v.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	} else if required, ok := schema["required"].([]string); ok {
		out.Required = append(out.Required, required...)
	}

	if items, ok := schema["items"].(map[string]interface{}); ok {
		converted, err := convertGeminiSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = converted
	}

	return out, nil
}

// extractGeminiText concatenates the text parts of a response.
func extractGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var content string
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content += string(txt)
		}
	}
	return content
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Unwrap returns the underlying *genai.Client.
func (g *Gemini) Unwrap() interface{} {
	return g.client
}
