package models

import "fmt"

// EventKind 报警事件类型（仅用于归档/指标，不写入 events_{name}）
type EventKind string

const (
	EventKindFall       EventKind = "fall"
	EventKindMedication EventKind = "medication"
)

// EventRecord 事件日志条目，创建后不可修改
type EventRecord struct {
	ID   int64  `json:"id"`   // 毫秒时间戳，会话内严格递增
	Time string `json:"time"` // 派发时的 "HH:MM"
	Msg  string `json:"msg"`
}

// AlertEntry 带用户和类型的事件，用于镜像到归档库/报警流
type AlertEntry struct {
	UserName string      `json:"user_name"`
	Kind     EventKind   `json:"kind"`
	Record   EventRecord `json:"record"`
}

// MedicationMessage 用药提醒事件文案
func MedicationMessage(desc string) string {
	return fmt.Sprintf("MEDICATION TIME: %s", desc)
}

// ImpactMessage 跌倒事件文案
func ImpactMessage(name string) string {
	return fmt.Sprintf("IMPACT DETECTED: %s", name)
}

// EmergencyText 发送给紧急联系人的消息
func EmergencyText(name string) string {
	return fmt.Sprintf("🚨 EMERGENCY: Fall detected for %s!", name)
}
