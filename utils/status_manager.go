package utils

import "sync"

const (
	// Disconnected 没有调试引擎接入
	Disconnected = "disconnected"
	// Listening 监听中，等待调试引擎接入
	Listening = "listening"
	// Connected 调试引擎已接入
	Connected = "connected"
)

// StatusManager 记录调试会话的连接状态的
type StatusManager struct {
	lock   sync.RWMutex
	status string
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: Disconnected,
	}
}

func (s *StatusManager) Set(status string) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Get() string {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...string) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}
