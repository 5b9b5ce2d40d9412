package repository

// 存储键与旧前端 localStorage 保持一致，不得修改
const (
	usersKey       = "hub_users"
	currentUserKey = "hub_current_user"
)

func remindersKey(userName string) string { return "meds_" + userName }

func eventsKey(userName string) string { return "events_" + userName }
