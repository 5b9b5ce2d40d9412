package models

// User 用户档案（对应 hub_users 列表项 / hub_current_user）
// 密码明文保存，与旧前端数据格式保持一致
type User struct {
	Name        string `json:"name"`
	Pass        string `json:"pass"`
	TelegramID  string `json:"telegramId"`
	PatientName string `json:"patientName"`
	IsNew       bool   `json:"isNew"`
}

// DisplayName 报警中显示的患者名称
func (u User) DisplayName() string {
	if u.PatientName != "" {
		return u.PatientName
	}
	if u.Name != "" {
		return u.Name
	}
	return "Patient"
}

// HasRecipient 是否配置了 Telegram 接收人
func (u User) HasRecipient() bool {
	return u.TelegramID != ""
}

// Public 去掉密码后的档案（用于 API 返回）
func (u User) Public() User {
	u.Pass = ""
	return u
}
