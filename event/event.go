// Package event 评级升级事件的检测与分发
// 检测（对 {上次, 本次} 评级的纯函数）与投递（订阅者扇出）解耦；
// 慢订阅者丢事件告警，绝不阻塞检测路径。
package event

import (
	"sync"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
)

// UpgradeType 升级类型
type UpgradeType string

const (
	UpgradeNewSignal UpgradeType = "new-signal"        // 无信号→有信号，或方向翻转
	UpgradeImproved  UpgradeType = "grade-improvement" // 同方向评级升档
)

// Upgrade 升级事件（派生的瞬态值，只保留在环形缓冲中）
type Upgrade struct {
	Symbol        string
	StrategyID    string
	PreviousGrade string
	NewGrade      string
	Direction     string
	Type          UpgradeType
	Message       string
	At            time.Time
}

// Bus 升级事件总线（多订阅者扇出，非阻塞发布）
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan *Upgrade
	bufferSize  int
	closed      bool
}

// NewBus 创建事件总线
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe 注册订阅者（返回只读通道）
func (b *Bus) Subscribe() <-chan *Upgrade {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Upgrade, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish 发布事件（非阻塞）
// 订阅者缓冲满时丢弃该订阅者的这条事件并告警，不影响其他订阅者。
func (b *Bus) Publish(upgrade *Upgrade) {
	if upgrade == nil {
		return
	}
	if upgrade.At.IsZero() {
		upgrade.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- upgrade:
		default:
			logger.Warn("⚠️ 升级事件队列已满，丢弃事件: %s %s→%s",
				upgrade.Symbol, upgrade.PreviousGrade, upgrade.NewGrade)
		}
	}
}

// Close 关闭事件总线
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
