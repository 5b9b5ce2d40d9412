package models

import (
	"encoding/json"
	"sort"
	"time"
)

// MinuteLayout 提醒时间格式（24小时制，补零）
const MinuteLayout = "15:04"

// Reminder 用药提醒（对应 meds_{name} 列表项）
type Reminder struct {
	Time string `json:"time"` // "HH:MM"
	Desc string `json:"desc"` // 药品/说明
}

// UnmarshalJSON 兼容旧数据中的 "description" 字段
func (r *Reminder) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time        string `json:"time"`
		Desc        string `json:"desc"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Time = raw.Time
	r.Desc = raw.Desc
	if r.Desc == "" {
		r.Desc = raw.Description
	}
	return nil
}

// ValidTime 检查时间是否为合法的 HH:MM
func (r Reminder) ValidTime() bool {
	if len(r.Time) != len(MinuteLayout) {
		return false
	}
	_, err := time.Parse(MinuteLayout, r.Time)
	return err == nil
}

// SortReminders 按时间字符串升序排序（补零的 HH:MM 字典序即时间序）
func SortReminders(reminders []Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].Time < reminders[j].Time
	})
}

// FormatMinute 格式化为 "HH:MM"
func FormatMinute(t time.Time) string {
	return t.Format(MinuteLayout)
}
