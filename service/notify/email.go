/*
 * @module service/notify/email
 * @description 邮件通知渠道，向数据集负责人发送异常邮件
 * @architecture 分层架构 - 协作者层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 构建邮件正文 -> SMTP发送
 * @rules SMTP地址为空视为未启用
 * @dependencies net/smtp
 * @refs service/notify/notify.go
 */

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// EmailChannel 邮件通知渠道
type EmailChannel struct {
	SMTPServer  string
	SMTPPort    int
	Username    string
	Password    string
	FromAddress string
	ToAddresses []string
}

// NewEmailChannel 创建邮件通知渠道
func NewEmailChannel(server string, port int, username, password, from string, to []string) *EmailChannel {
	if port <= 0 {
		port = 25
	}
	return &EmailChannel{
		SMTPServer:  server,
		SMTPPort:    port,
		Username:    username,
		Password:    password,
		FromAddress: from,
		ToAddresses: to,
	}
}

// Send 发送邮件通知
func (e *EmailChannel) Send(ctx context.Context, notification *Notification) error {
	subject := fmt.Sprintf("[数据质量告警][严重度%d] %s.%s %s",
		notification.Severity, notification.TableName, notification.ColumnName, notification.IssueType)
	body := e.buildBody(notification)

	to := e.ToAddresses
	if len(to) == 0 && notification.Owner != "" {
		to = []string{notification.Owner}
	}
	if len(to) == 0 {
		return fmt.Errorf("缺少收件人地址")
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		e.FromAddress, strings.Join(to, ","), subject, body)

	addr := fmt.Sprintf("%s:%d", e.SMTPServer, e.SMTPPort)
	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.SMTPServer)
	}

	if err := smtp.SendMail(addr, auth, e.FromAddress, to, []byte(message)); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	return nil
}

// 构建邮件正文
func (e *EmailChannel) buildBody(notification *Notification) string {
	return fmt.Sprintf(`数据质量异常详情：
- 数据集: %s (%s)
- 表: %s
- 列: %s
- 问题类型: %s
- 严重度: %d
- 描述: %s
- 检测时间: %s
`, notification.DatasetName, notification.DatasetID,
		notification.TableName, notification.ColumnName,
		notification.IssueType, notification.Severity,
		notification.Description, notification.DetectedAt.Format(time.RFC3339))
}

// GetChannelType 获取渠道类型
func (e *EmailChannel) GetChannelType() string {
	return "email"
}

// IsEnabled 检查是否启用
func (e *EmailChannel) IsEnabled() bool {
	return e.SMTPServer != ""
}
