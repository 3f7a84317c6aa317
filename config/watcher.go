package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 配置文件监控器
// 监控配置文件变更并重新加载，供运行中热替换风控参数（评级阶梯、敞口上限、亏损限额）
type Watcher struct {
	configPath  string
	watcher     *fsnotify.Watcher
	mu          sync.RWMutex
	isWatching  bool
	lastModTime time.Time
	updateChan  chan *Config
	errorChan   chan error
}

// NewWatcher 创建配置监控器
func NewWatcher(configPath string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if configDir == "" || configDir == "." {
		configDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("获取当前目录失败: %w", err)
		}
		configPath = filepath.Join(configDir, filepath.Base(configPath))
	}

	// 获取初始修改时间
	var lastModTime time.Time
	if info, err := os.Stat(configPath); err == nil {
		lastModTime = info.ModTime()
	}

	return &Watcher{
		configPath:  configPath,
		watcher:     watcher,
		lastModTime: lastModTime,
		updateChan:  make(chan *Config, 1),
		errorChan:   make(chan error, 10),
	}, nil
}

// Start 开始监控配置文件
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		return fmt.Errorf("配置监控器已经在运行")
	}

	// 监控配置文件所在目录（编辑器多为 rename+create 写入，监控目录才不会丢事件）
	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("添加监控目录失败: %w", err)
	}
	w.isWatching = true
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

// loop 事件循环
func (w *Watcher) loop(ctx context.Context) {
	// 防抖：编辑器保存会触发连续多个事件
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errorChan <- err:
			default:
			}
		}
	}
}

// reload 重新加载配置并推送
func (w *Watcher) reload() {
	info, err := os.Stat(w.configPath)
	if err != nil {
		select {
		case w.errorChan <- fmt.Errorf("读取配置文件状态失败: %w", err):
		default:
		}
		return
	}

	w.mu.Lock()
	if !info.ModTime().After(w.lastModTime) {
		w.mu.Unlock()
		return
	}
	w.lastModTime = info.ModTime()
	w.mu.Unlock()

	cfg, err := Load(w.configPath)
	if err != nil {
		select {
		case w.errorChan <- err:
		default:
		}
		return
	}

	// 只保留最新一份
	select {
	case <-w.updateChan:
	default:
	}
	w.updateChan <- cfg
}

// Updates 返回配置更新通道
func (w *Watcher) Updates() <-chan *Config {
	return w.updateChan
}

// Errors 返回错误通道
func (w *Watcher) Errors() <-chan error {
	return w.errorChan
}

// Stop 停止监控
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return
	}
	w.isWatching = false
	w.watcher.Close()
}
