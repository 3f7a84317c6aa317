package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/URF365LLC/forex-decision-engine--sub000/engine"
)

// StaticAccount 静态账户数据源
// 无经纪商接入时以配置的账户规模作为权益；回撤守护将自行推算日初与峰值。
type StaticAccount struct {
	mu     sync.RWMutex
	equity float64
}

// NewStaticAccount 创建静态账户数据源
func NewStaticAccount(equity float64) *StaticAccount {
	return &StaticAccount{equity: equity}
}

// SetEquity 更新当前权益（供外部回报通道调用）
func (a *StaticAccount) SetEquity(equity float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.equity = equity
}

// Snapshot 返回账户快照
func (a *StaticAccount) Snapshot(ctx context.Context) (*engine.AccountSnapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &engine.AccountSnapshot{Equity: a.equity}, nil
}

// FileAccount 文件账户数据源
// 从JSON文件读取经纪商侧权益快照，便于外部进程按自己的节奏更新。
type FileAccount struct {
	path string
}

// NewFileAccount 创建文件账户数据源
func NewFileAccount(path string) *FileAccount {
	return &FileAccount{path: path}
}

type fileSnapshot struct {
	Equity           float64  `json:"equity"`
	StartOfDayEquity *float64 `json:"start_of_day_equity,omitempty"`
	PeakEquity       *float64 `json:"peak_equity,omitempty"`
}

// Snapshot 返回账户快照
func (a *FileAccount) Snapshot(ctx context.Context) (*engine.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("读取账户快照文件失败: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("解析账户快照文件失败: %w", err)
	}
	if snap.Equity <= 0 {
		return nil, fmt.Errorf("账户快照权益非法: %v", snap.Equity)
	}

	return &engine.AccountSnapshot{
		Equity:           snap.Equity,
		StartOfDayEquity: snap.StartOfDayEquity,
		PeakEquity:       snap.PeakEquity,
	}, nil
}
