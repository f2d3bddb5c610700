/*
 * @module service/explain/anthropic
 * @description Anthropic LLM后端，实现解释适配器所需的文本补全接口
 * @architecture 适配器模式 - 封装第三方LLM客户端
 * @documentReference dev_docs/requirements.md
 * @stateFlow 构造客户端 -> 发送消息 -> 拼接文本块返回
 * @rules 后端只负责补全调用，不做任何结果解析；超时由调用方通过context控制
 * @dependencies github.com/anthropics/anthropic-sdk-go
 * @refs service/explain/explainer.go
 */

package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend 基于Anthropic Messages API的补全后端
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicBackend 创建Anthropic后端
func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 1024,
	}
}

// Complete 发送单轮补全请求并返回拼接后的文本
func (b *AnthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("调用Anthropic API失败: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return sb.String(), nil
}
