package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// DefaultModel は回答生成に使う既定のモデルです。
const DefaultModel = "gemini-2.5-flash"

var (
	// ErrMissingAPIKey は API キーが未設定の場合に返されます。
	ErrMissingAPIKey = errors.New("gemini: api key is required")
	// ErrBlocked はプロンプトが安全フィルタで拒否された場合に返されます。
	ErrBlocked = errors.New("gemini: prompt blocked")
)

// Options は Gemini クライアントの設定です。
type Options struct {
	APIKey string
	Model  string
	// Endpoint は空の場合 Google の既定エンドポイントを使います。
	Endpoint string
}

// Model は generativelanguage API で文章を生成します。
type Model struct {
	svc   *generativelanguage.Service
	model string
}

// New は Model を生成します。
func New(ctx context.Context, opts Options) (*Model, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create service: %w", err)
	}

	return &Model{svc: svc, model: modelResource(opts.Model)}, nil
}

// Name はリソース名 ("models/<id>") を返します。
func (m *Model) Name() string {
	return m.model
}

// Generate は prompt に対する最初の候補の本文を返します。候補が空の場合は空文字を返します。
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}

	resp, err := m.svc.Models.GenerateContent(m.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}

	return firstCandidateText(resp), nil
}

func firstCandidateText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func modelResource(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "models/") {
		return id
	}
	return "models/" + id
}
