package assistant

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider answers without a network call. It is meant for local runs and
// demos without an API key.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (MockProvider) Name() string { return "mock" }

func (MockProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	question, _, _ := strings.Cut(req.Prompt, "\n")
	return fmt.Sprintf("**📊 핵심 요약**\n\n%s\n\n(모의 응답입니다. 이전 대화 %d건을 참고했습니다.)",
		strings.TrimSpace(question), len(req.History)), nil
}
