package session

import (
	"sync"
	"time"

	"wisefido-carehub/internal/eventlog"
	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/scheduler"
)

// Session 一次登录会话：持有用户档案、事件日志和提醒调度器
// 登录时创建，登出时销毁；跌倒报警属于 Manager，跨会话保留
type Session struct {
	ID        string
	StartedAt time.Time

	Events    *eventlog.EventLog
	Scheduler *scheduler.Scheduler

	mu   sync.RWMutex
	user models.User
}

// User 当前用户档案
func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) setUser(user models.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

func (s *Session) close() {
	s.Scheduler.Stop()
}
