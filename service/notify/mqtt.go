/*
 * @module service/notify/mqtt
 * @description MQTT通知渠道，将异常通知发布到平台消息总线主题
 * @architecture 分层架构 - 协作者层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 连接检查 -> 序列化通知 -> 发布到主题
 * @rules Broker地址为空视为未启用；发布QoS为1
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs service/notify/notify.go
 */

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTChannel MQTT通知渠道
type MQTTChannel struct {
	BrokerURL string
	Topic     string
	ClientID  string
	client    mqtt.Client
}

// NewMQTTChannel 创建MQTT通知渠道
func NewMQTTChannel(brokerURL, topic, clientID string) *MQTTChannel {
	channel := &MQTTChannel{
		BrokerURL: brokerURL,
		Topic:     topic,
		ClientID:  clientID,
	}
	if brokerURL == "" {
		return channel
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true)
	channel.client = mqtt.NewClient(opts)

	return channel
}

// Send 发布MQTT通知
func (m *MQTTChannel) Send(ctx context.Context, notification *Notification) error {
	if m.client == nil {
		return fmt.Errorf("MQTT通知渠道未启用")
	}

	if !m.client.IsConnected() {
		if token := m.client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("连接MQTT Broker失败: %w", token.Error())
		}
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("序列化通知数据失败: %w", err)
	}

	token := m.client.Publish(m.Topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("发布MQTT消息失败: %w", token.Error())
	}

	return nil
}

// GetChannelType 获取渠道类型
func (m *MQTTChannel) GetChannelType() string {
	return "mqtt"
}

// IsEnabled 检查是否启用
func (m *MQTTChannel) IsEnabled() bool {
	return m.client != nil
}
