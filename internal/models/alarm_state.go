package models

// AlarmState 跌倒报警状态
type AlarmState int

const (
	AlarmIdle AlarmState = iota
	AlarmActive
)

func (s AlarmState) String() string {
	if s == AlarmActive {
		return "active"
	}
	return "idle"
}

// MarshalText 以字符串形式输出到 JSON
func (s AlarmState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
