// Package lock 账户级互斥锁
// 回撤状态的读改写必须按账户串行化；多实例部署用 Redis 锁，单实例用进程内锁。
package lock

import (
	"context"
	"sync"
	"time"
)

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// Lock 获取锁，阻塞直到成功或 ctx 取消
	Lock(ctx context.Context, key string, ttl time.Duration) error

	// TryLock 尝试获取锁，立即返回
	// 返回 true 表示成功获取锁，false 表示锁已被占用
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error

	// Close 关闭连接
	Close() error
}

// MemoryLock 进程内按键互斥锁（单实例模式）
type MemoryLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryLock 创建进程内锁
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{locks: make(map[string]*sync.Mutex)}
}

func (m *MemoryLock) keyMutex(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[key] = l
	return l
}

// Lock 获取按键互斥锁（进程内忽略 ttl）
func (m *MemoryLock) Lock(ctx context.Context, key string, ttl time.Duration) error {
	l := m.keyMutex(key)

	done := make(chan struct{})
	go func() {
		l.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// 锁可能稍后才拿到，拿到后立即释放
		go func() {
			<-done
			l.Unlock()
		}()
		return ctx.Err()
	}
}

// TryLock 尝试获取锁
func (m *MemoryLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.keyMutex(key).TryLock(), nil
}

// Unlock 释放锁
func (m *MemoryLock) Unlock(ctx context.Context, key string) error {
	m.keyMutex(key).Unlock()
	return nil
}

// Close 关闭（进程内锁无资源）
func (m *MemoryLock) Close() error {
	return nil
}
