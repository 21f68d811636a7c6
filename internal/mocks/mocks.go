// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	return m.Called().Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Network() config.NetworkConfig {
	return m.Called().Get(0).(config.NetworkConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	return m.Called().Get(0).(config.ServerConfig)
}

func (m *MockConfig) Scoring() config.ScoringConfig {
	return m.Called().Get(0).(config.ScoringConfig)
}

func (m *MockConfig) Filler() config.FillerConfig {
	return m.Called().Get(0).(config.FillerConfig)
}

func (m *MockConfig) Detector() config.DetectorConfig {
	return m.Called().Get(0).(config.DetectorConfig)
}

func (m *MockConfig) Submit() config.SubmitConfig {
	return m.Called().Get(0).(config.SubmitConfig)
}

func (m *MockConfig) Harvest() config.HarvestConfig {
	return m.Called().Get(0).(config.HarvestConfig)
}

func (m *MockConfig) Dictionary() config.DictionaryConfig {
	return m.Called().Get(0).(config.DictionaryConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool)   { m.Called(b) }
func (m *MockConfig) SetBrowserConcurrency(n int) { m.Called(n) }
func (m *MockConfig) SetServerAddr(addr string)   { m.Called(addr) }

// -- Page Mock --

// MockPage mocks schemas.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error {
	return m.Called(ctx, quiet, timeout).Error(0)
}

func (m *MockPage) Snapshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Resolve(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) Focus(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

func (m *MockPage) Clear(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

func (m *MockPage) TypeText(ctx context.Context, address, text string, delay time.Duration) error {
	return m.Called(ctx, address, text, delay).Error(0)
}

func (m *MockPage) SelectOption(ctx context.Context, address, value string) error {
	return m.Called(ctx, address, value).Error(0)
}

func (m *MockPage) Click(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

func (m *MockPage) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

func (m *MockPage) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Browser Manager Mock --

// MockBrowserManager mocks schemas.BrowserManager.
type MockBrowserManager struct {
	mock.Mock
}

func (m *MockBrowserManager) NewPage(ctx context.Context) (schemas.Page, error) {
	args := m.Called(ctx)
	var page schemas.Page
	if v := args.Get(0); v != nil {
		page = v.(schemas.Page)
	}
	return page, args.Error(1)
}

func (m *MockBrowserManager) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
