package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// Bedrock is an adapter for Amazon Bedrock foundation models.
//
// Uses the Converse API, which gives a uniform request shape (including tool
// configuration) across the foundation models Bedrock hosts: Claude, Llama,
// Mistral, Nova, and others.
//
// Supports the full AWS credential chain:
//   - Explicit credentials (access key ID, secret access key)
//   - AWS profiles (~/.aws/config)
//   - Environment variables (AWS_ACCESS_KEY_ID, etc.)
//   - IAM roles (EC2, ECS, EKS)
//
// Example:
//
//	client, err := llm.NewBedrock(ctx, llm.BedrockConfig{
//	    ModelID: "anthropic.claude-3-5-sonnet-20241022-v2:0",
//	    Region:  "us-west-2",
//	})
type Bedrock struct {
	client  *bedrockruntime.Client
	modelID string
}

// BedrockConfig holds configuration for creating a Bedrock adapter.
type BedrockConfig struct {
	// ModelID is the Bedrock model identifier
	// (default: anthropic.claude-3-5-sonnet-20241022-v2:0).
	ModelID string

	// Region is the AWS region (default: us-east-1).
	Region string

	// Profile is the AWS profile name (optional).
	Profile string

	// AccessKeyID / SecretAccessKey / SessionToken are explicit
	// credentials (optional; the default credential chain applies
	// when unset).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// EndpointURL is a custom endpoint for VPC endpoints (optional).
	EndpointURL string
}

// NewBedrock creates a new Bedrock adapter.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))
	if cfg.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*bedrockruntime.Options)
	if cfg.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}

	return &Bedrock{
		client:  bedrockruntime.NewFromConfig(awsConfig, clientOpts...),
		modelID: cfg.ModelID,
	}, nil
}

// Model returns the model identifier.
func (b *Bedrock) Model() string {
	return b.modelID
}

// Complete generates a completion from Bedrock.
//
// Response metadata includes model, usage, and stop_reason ("tool_use" when
// the model requested tool invocations).
func (b *Bedrock) Complete(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (*scholarkit.Message, error) {
	options := BuildCallOptions(opts...)

	bedrockMessages, systemPrompts, err := b.convertMessages(messages)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(b.modelID),
		Messages:        bedrockMessages,
		InferenceConfig: b.inferenceConfig(options),
	}
	if len(systemPrompts) > 0 {
		input.System = systemPrompts
	}
	if len(options.Tools) > 0 {
		toolConfig, err := b.toolConfig(options)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = toolConfig
	}

	output, err := b.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock api error: %w", err)
	}

	response := scholarkit.NewMessage(scholarkit.RoleAssistant, "")
	response.Metadata["model"] = b.modelID

	if output.Output != nil {
		msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
		if !ok {
			return nil, fmt.Errorf("bedrock returned unexpected output type %T", output.Output)
		}
		for _, block := range msg.Value.Content {
			switch blk := block.(type) {
			case *types.ContentBlockMemberText:
				response.Content += blk.Value
			case *types.ContentBlockMemberToolUse:
				call := scholarkit.ToolCall{
					ID:   aws.ToString(blk.Value.ToolUseId),
					Name: aws.ToString(blk.Value.Name),
				}
				if blk.Value.Input != nil {
					raw, err := blk.Value.Input.MarshalSmithyDocument()
					if err != nil {
						return nil, fmt.Errorf("decode tool input for %q: %w", call.Name, err)
					}
					if err := json.Unmarshal(raw, &call.Arguments); err != nil {
						return nil, fmt.Errorf("decode tool input for %q: %w", call.Name, err)
					}
				}
				response.ToolCalls = append(response.ToolCalls, call)
			}
		}
	}

	if output.Usage != nil {
		response.Metadata["usage"] = map[string]interface{}{
			"prompt_tokens":     aws.ToInt32(output.Usage.InputTokens),
			"completion_tokens": aws.ToInt32(output.Usage.OutputTokens),
			"total_tokens":      aws.ToInt32(output.Usage.TotalTokens),
		}
	}
	if output.StopReason != "" {
		response.Metadata["stop_reason"] = string(output.StopReason)
	}

	return response, nil
}

// Stream generates completion chunks from Bedrock.
func (b *Bedrock) Stream(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (<-chan *scholarkit.Message, error) {
	options := BuildCallOptions(opts...)

	bedrockMessages, systemPrompts, err := b.convertMessages(messages)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(b.modelID),
		Messages:        bedrockMessages,
		InferenceConfig: b.inferenceConfig(options),
	}
	if len(systemPrompts) > 0 {
		input.System = systemPrompts
	}

	output, err := b.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock api error: %w", err)
	}

	messageChan := make(chan *scholarkit.Message)

	go func() {
		defer close(messageChan)

		stream := output.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			if e, ok := event.(*types.ConverseStreamOutputMemberContentBlockDelta); ok {
				if e.Value.Delta == nil {
					continue
				}
				if textDelta, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
					chunk := scholarkit.NewMessage(scholarkit.RoleAssistant, textDelta.Value)
					chunk.Metadata["streaming"] = true
					chunk.Metadata["model"] = b.modelID
					select {
					case messageChan <- chunk:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			errorMsg := scholarkit.NewMessage(scholarkit.RoleAssistant, "")
			errorMsg.Metadata["error"] = err.Error()
			errorMsg.Metadata["streaming"] = true
			select {
			case messageChan <- errorMsg:
			case <-ctx.Done():
			}
		}
	}()

	return messageChan, nil
}

// inferenceConfig maps call options onto the Converse inference block.
func (b *Bedrock) inferenceConfig(options *CallOptions) *types.InferenceConfiguration {
	cfg := &types.InferenceConfiguration{}

	if options.Temperature != nil {
		cfg.Temperature = aws.Float32(float32(*options.Temperature))
	}
	maxTokens := 4096
	if options.MaxTokens != nil {
		maxTokens = *options.MaxTokens
	}
	cfg.MaxTokens = aws.Int32(int32(maxTokens))
	if options.TopP != nil {
		cfg.TopP = aws.Float32(float32(*options.TopP))
	}
	if stopSeq, ok := options.Extra["stopSequences"].([]string); ok && len(stopSeq) > 0 {
		cfg.StopSequences = stopSeq
	}

	return cfg
}

// toolConfig converts declared tool specs into a Converse tool configuration.
func (b *Bedrock) toolConfig(options *CallOptions) (*types.ToolConfiguration, error) {
	cfg := &types.ToolConfiguration{}

	for _, spec := range options.Tools {
		cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(spec.Name),
				Description: aws.String(spec.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(spec.Parameters),
				},
			},
		})
	}

	switch options.ToolChoice {
	case "", "auto", "none":
		// Converse has no "none"; callers wanting plain text omit tools.
		cfg.ToolChoice = &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
	case "required":
		cfg.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
	default:
		return nil, fmt.Errorf("unknown tool choice %q", options.ToolChoice)
	}

	return cfg, nil
}

// convertMessages converts scholarkit Messages to the Converse format.
//
// System messages are split out into the system parameter. Assistant tool
// calls become toolUse blocks; tool-role messages become user-role toolResult
// blocks, which is how Converse expects tool results back.
func (b *Bedrock) convertMessages(messages []*scholarkit.Message) ([]types.Message, []types.SystemContentBlock, error) {
	var bedrockMessages []types.Message
	var systemPrompts []types.SystemContentBlock

	for _, msg := range messages {
		switch msg.Role {
		case scholarkit.RoleSystem:
			systemPrompts = append(systemPrompts, &types.SystemContentBlockMemberText{
				Value: msg.Content,
			})

		case scholarkit.RoleTool:
			bedrockMessages = append(bedrockMessages, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolResult{
						Value: types.ToolResultBlock{
							ToolUseId: aws.String(msg.ToolCallID),
							Content: []types.ToolResultContentBlock{
								&types.ToolResultContentBlockMemberText{Value: msg.Content},
							},
						},
					},
				},
			})

		case scholarkit.RoleAssistant:
			var blocks []types.ContentBlock
			if msg.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(tc.Arguments),
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			bedrockMessages = append(bedrockMessages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: blocks,
			})

		case scholarkit.RoleUser:
			bedrockMessages = append(bedrockMessages, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: msg.Content},
				},
			})

		default:
			// Unknown roles map to assistant, matching the other adapters.
			bedrockMessages = append(bedrockMessages, types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: msg.Content},
				},
			})
		}
	}

	return bedrockMessages, systemPrompts, nil
}

// Unwrap returns the underlying *bedrockruntime.Client.
func (b *Bedrock) Unwrap() interface{} {
	return b.client
}
