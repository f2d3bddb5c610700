/*
 * @module service/issuetracker/github
 * @description GitHub工单连接器，为已批准的高严重度异常创建Issue
 * @architecture 适配器模式 - 封装GitHub REST API
 * @documentReference dev_docs/requirements.md
 * @stateFlow 构建Issue内容 -> POST /repos/{owner}/{repo}/issues -> 返回Issue链接
 * @rules 仅由动作路由器在人工批准后调用；缺少Token或仓库配置时返回错误
 * @dependencies net/http, encoding/json
 * @refs service/action/router.go
 */

package issuetracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"datasentinel-service/service/models"
)

// GitHubTracker GitHub工单连接器
type GitHubTracker struct {
	Token   string
	Owner   string
	Repo    string
	BaseURL string
	client  *http.Client
}

// NewGitHubTracker 创建GitHub工单连接器
func NewGitHubTracker(token, owner, repo string) *GitHubTracker {
	return &GitHubTracker{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: "https://api.github.com",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type issueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

type issueResponse struct {
	HTMLURL string `json:"html_url"`
	Number  int    `json:"number"`
}

// CreateIssue 创建GitHub Issue并返回链接
func (g *GitHubTracker) CreateIssue(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) (string, error) {
	if g.Token == "" || g.Owner == "" || g.Repo == "" {
		return "", fmt.Errorf("GitHub工单连接器未配置")
	}

	request := issueRequest{
		Title: fmt.Sprintf("[数据质量][严重度%d] %s.%s %s",
			record.Severity, record.TableName, record.ColumnName, record.IssueType),
		Body:   g.buildBody(dataset, record),
		Labels: []string{"data-quality", "auto-detected", fmt.Sprintf("severity-%d", record.Severity)},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("序列化Issue请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/issues", g.BaseURL, g.Owner, g.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用GitHub API失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("GitHub API返回状态码 %d: %s", resp.StatusCode, body)
	}

	var issue issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return "", fmt.Errorf("解析Issue响应失败: %w", err)
	}

	return issue.HTMLURL, nil
}

// 构建Issue正文
func (g *GitHubTracker) buildBody(dataset *models.Dataset, record *models.Anomaly) string {
	extraJSON, _ := json.MarshalIndent(record.Extra, "", "  ")

	body := fmt.Sprintf(`## 数据质量异常

- **数据集**: %s (`+"`%s`"+`)
- **表**: %s
- **列**: %s
- **问题类型**: %s
- **严重度**: %d
- **检测时间**: %s

### 描述

%s

### 量化指标

`+"```json\n%s\n```\n", dataset.Name, dataset.ID,
		record.TableName, record.ColumnName,
		record.IssueType, record.Severity,
		record.DetectedAt.Format(time.RFC3339),
		record.Description, extraJSON)

	if record.SuggestedSQL != "" {
		body += fmt.Sprintf("\n### 诊断SQL\n\n```sql\n%s\n```\n", record.SuggestedSQL)
	}

	if record.LLMExplanation != nil {
		if cause, ok := record.LLMExplanation["cause"].(string); ok && cause != "" {
			body += fmt.Sprintf("\n### 根因分析\n\n%s\n", cause)
		}
	}

	return body
}
