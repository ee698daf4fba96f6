// Package genai adapts Google's Gemini API to the reasoner port.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	backend "google.golang.org/genai"

	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
	"github.com/cadenzahq/cadenza/pkg/schema"
)

// Reasoner implements ports.Reasoner on the Gemini API. Decisions run on the
// decision model with a constrained response schema; replies run on the main
// model with function declarations built from the tool whitelist.
type Reasoner struct {
	client        *backend.Client
	model         string
	decisionModel string
}

var _ ports.Reasoner = (*Reasoner)(nil)

// New creates a Gemini-backed reasoner. decisionModel falls back to model
// when empty.
func New(ctx context.Context, apiKey, model, decisionModel string) (*Reasoner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := backend.NewClient(ctx, &backend.ClientConfig{
		APIKey:  apiKey,
		Backend: backend.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if decisionModel == "" {
		decisionModel = model
	}
	return &Reasoner{client: client, model: model, decisionModel: decisionModel}, nil
}

// Decide asks for a single enum value. The response schema constrains the
// model's output server-side; anything that still falls outside the choice
// set surfaces as domain.ErrMalformedDecision.
func (r *Reasoner) Decide(ctx context.Context, req ports.DecideRequest) (string, error) {
	config := &backend.GenerateContentConfig{
		SystemInstruction: backend.NewContentFromText(req.System, backend.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &backend.Schema{
			Type: backend.TypeString,
			Enum: req.Choices,
		},
	}

	resp, err := r.client.Models.GenerateContent(ctx, r.decisionModel, toContents(req.Messages), config)
	if err != nil {
		return "", fmt.Errorf("gemini decide: %w", err)
	}

	raw := strings.TrimSpace(resp.Text())
	var value string
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		// Some models answer the bare token instead of a JSON string.
		value = strings.Trim(raw, `"`)
	}
	for _, choice := range req.Choices {
		if strings.EqualFold(value, choice) {
			return choice, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrMalformedDecision, value)
}

// Respond generates the next assistant message, offering the handler's tool
// whitelist as function declarations.
func (r *Reasoner) Respond(ctx context.Context, req ports.RespondRequest) (domain.Message, error) {
	config := &backend.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = backend.NewContentFromText(req.System, backend.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*backend.Tool{{
			FunctionDeclarations: toDeclarations(req.Tools),
		}}
	}

	resp, err := r.client.Models.GenerateContent(ctx, r.model, toContents(req.Messages), config)
	if err != nil {
		return domain.Message{}, fmt.Errorf("gemini respond: %w", err)
	}
	return fromResponse(resp), nil
}

// toContents converts conversation messages into Gemini contents. Tool
// results travel as user-role text; Gemini correlates them positionally.
func toContents(messages []domain.Message) []*backend.Content {
	var contents []*backend.Content
	for _, m := range messages {
		switch m.Role {
		case domain.RoleAssistant:
			var parts []*backend.Part
			if m.Content != "" {
				parts = append(parts, backend.NewPartFromText(m.Content))
			}
			for _, req := range m.Requests {
				parts = append(parts, &backend.Part{
					FunctionCall: &backend.FunctionCall{Name: req.Name, Args: req.Args},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, backend.NewContentFromParts(parts, backend.RoleModel))
			}
		case domain.RoleTool:
			contents = append(contents, backend.NewContentFromText("[tool result] "+m.Content, backend.RoleUser))
		default:
			contents = append(contents, backend.NewContentFromText(m.Content, backend.RoleUser))
		}
	}
	return contents
}

func fromResponse(resp *backend.GenerateContentResponse) domain.Message {
	msg := domain.Message{Role: domain.RoleAssistant}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return msg
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			msg.Requests = append(msg.Requests, domain.OperationRequest{
				ID:   uuid.NewString(),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	msg.Content = strings.TrimSpace(text.String())
	return msg
}

func toDeclarations(tools []domain.ToolDescriptor) []*backend.FunctionDeclaration {
	decls := make([]*backend.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &backend.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toSchema(t.Parameters),
		})
	}
	return decls
}

func toSchema(s schema.Schema) *backend.Schema {
	out := &backend.Schema{
		Type:       backend.TypeObject,
		Properties: make(map[string]*backend.Schema, len(s)),
	}
	for name, field := range s {
		prop := &backend.Schema{}
		switch field.Kind {
		case schema.KindInt:
			prop.Type = backend.TypeInteger
		default:
			prop.Type = backend.TypeString
		}
		if len(field.Enum) > 0 {
			prop.Enum = append([]string(nil), field.Enum...)
		}
		out.Properties[name] = prop
		if field.Required {
			out.Required = append(out.Required, name)
		}
	}
	return out
}
