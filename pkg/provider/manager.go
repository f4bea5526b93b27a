package provider

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/logger"
)

// Manager 数据源注册表。
// 按名称管理多个数据源，并为每类能力维护一个默认数据源。
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	defBar    string
	defQuote  string
	log       *logrus.Entry
}

// NewManager 创建数据源管理器
func NewManager() *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		log:       logger.WithComponent("ProviderManager"),
	}
}

// Register 注册数据源。同名数据源会被覆盖。
// 首个具备对应能力的数据源自动成为默认数据源。
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	m.providers[name] = p

	if _, ok := p.(BarProvider); ok && m.defBar == "" {
		m.defBar = name
	}
	if _, ok := p.(QuoteProvider); ok && m.defQuote == "" {
		m.defQuote = name
	}
	m.log.Infof("注册数据源: %s", name)
}

// Unregister 注销数据源并关闭其资源。
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not registered", name)
	}
	delete(m.providers, name)
	if m.defBar == name {
		m.defBar = ""
	}
	if m.defQuote == name {
		m.defQuote = ""
	}

	if closable, ok := p.(Closable); ok {
		return closable.Close()
	}
	return nil
}

// Get 按名称获取数据源
func (m *Manager) Get(name string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, exists := m.providers[name]
	return p, exists
}

// SetDefaultBarProvider 指定默认的K线数据源
func (m *Manager) SetDefaultBarProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not registered", name)
	}
	if _, ok := p.(BarProvider); !ok {
		return fmt.Errorf("provider %s does not serve daily bars", name)
	}
	m.defBar = name
	return nil
}

// BarProvider 返回默认的K线数据源，不健康时返回 core.ErrProviderNotHealthy。
func (m *Manager) BarProvider() (BarProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.defBar == "" {
		return nil, fmt.Errorf("no bar provider registered")
	}
	p := m.providers[m.defBar].(BarProvider)
	if !p.IsHealthy() {
		return nil, fmt.Errorf("%w: %s", core.ErrProviderNotHealthy, m.defBar)
	}
	return p, nil
}

// QuoteProvider 返回默认的行情数据源，不健康时返回 core.ErrProviderNotHealthy。
func (m *Manager) QuoteProvider() (QuoteProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.defQuote == "" {
		return nil, fmt.Errorf("no quote provider registered")
	}
	p := m.providers[m.defQuote].(QuoteProvider)
	if !p.IsHealthy() {
		return nil, fmt.Errorf("%w: %s", core.ErrProviderNotHealthy, m.defQuote)
	}
	return p, nil
}

// Close 关闭全部数据源，返回最后一个遇到的错误。
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	for name, p := range m.providers {
		if closable, ok := p.(Closable); ok {
			if err := closable.Close(); err != nil {
				m.log.WithError(err).Errorf("关闭数据源 %s 失败", name)
				lastErr = err
			}
		}
	}
	m.providers = make(map[string]Provider)
	m.defBar = ""
	m.defQuote = ""
	return lastErr
}
