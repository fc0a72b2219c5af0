package codex

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/responses"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
)

// runDirect serves a tool-less execution straight from the Responses
// API. Selected only when tools are explicitly disabled and a service
// credential is present.
func (a *Adapter) runDirect(ctx context.Context, opts provider.ExecuteOptions) *domain.MessageStream {
	clientOpts := []option.RequestOption{option.WithAPIKey(a.env(credentialVar))}
	if a.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	model := opts.Model
	if model == "" {
		if def, ok := provider.DefaultModel(models); ok {
			model = def.ID
		}
	}

	params := responses.ResponseNewParams{
		Model: openai.ChatModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: buildInput(opts)},
	}
	if opts.SystemPrompt != "" {
		params.Instructions = param.NewOpt(opts.SystemPrompt)
	}

	stream := domain.NewMessageStream()
	go a.pumpDirect(ctx, client.Responses.NewStreaming(ctx, params), stream)
	return stream
}

// buildInput lays the conversation out as input items: prior turns in
// order, then the prompt as the final user message. The direct path is
// text only; image blocks are flattened away.
func buildInput(opts provider.ExecuteOptions) responses.ResponseInputParam {
	input := make(responses.ResponseInputParam, 0, len(opts.History)+1)
	for _, turn := range opts.History {
		role := "user"
		if turn.Role == history.RoleAssistant {
			role = "assistant"
		}
		input = append(input, responses.ResponseInputItemUnionParam{
			OfMessage: &responses.EasyInputMessageParam{
				Role:    responses.EasyInputMessageRole(role),
				Content: responses.EasyInputMessageContentUnionParam{OfString: param.NewOpt(turn.PlainText())},
			},
		})
	}
	input = append(input, responses.ResponseInputItemUnionParam{
		OfMessage: &responses.EasyInputMessageParam{
			Role:    responses.EasyInputMessageRole("user"),
			Content: responses.EasyInputMessageContentUnionParam{OfString: param.NewOpt(history.PromptText(opts.Prompt, opts.PromptBlocks))},
		},
	})
	return input
}

func (a *Adapter) pumpDirect(ctx context.Context, sse *ssestream.Stream[responses.ResponseStreamEventUnion], stream *domain.MessageStream) {
	defer stream.Finish()

	final := ""
	terminal := false

	for sse.Next() {
		event := sse.Current()
		var msg domain.ProviderMessage
		emit := false

		switch event.AsAny().(type) {
		case responses.ResponseTextDoneEvent:
			final = event.Text
			msg, emit = domain.NewAssistantText(event.Text), true
		case responses.ResponseReasoningSummaryTextDoneEvent:
			msg, emit = domain.NewAssistantMessage(domain.ThinkingBlock(event.Text)), true
		case responses.ResponseCompletedEvent:
			msg, emit = domain.NewResultMessage(final), true
		case responses.ResponseErrorEvent:
			c := provider.ClassifyMessage(event.Message)
			msg, emit = domain.NewErrorMessage(c.Kind, c.Message), true
		case responses.ResponseFailedEvent:
			message := event.Response.Error.Message
			if message == "" {
				message = "response failed"
			}
			c := provider.ClassifyMessage(message)
			msg, emit = domain.NewErrorMessage(c.Kind, c.Message), true
		}

		if !emit {
			continue
		}
		if msg.IsTerminal() {
			terminal = true
		}
		if !stream.Send(ctx, msg) {
			return
		}
	}

	if err := sse.Err(); err != nil && !terminal && ctx.Err() == nil {
		c := provider.Classify(err)
		stream.Send(ctx, domain.NewErrorMessage(c.Kind, c.Message))
	}
}
