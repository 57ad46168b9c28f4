// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Automation() config.AutomationConfig {
	args := m.Called()
	return args.Get(0).(config.AutomationConfig)
}

func (m *MockConfig) Vision() config.VisionConfig {
	args := m.Called()
	return args.Get(0).(config.VisionConfig)
}

func (m *MockConfig) Engine() config.EngineConfig {
	args := m.Called()
	return args.Get(0).(config.EngineConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool)             { m.Called(b) }
func (m *MockConfig) SetEngineWorkerConcurrency(w int)      { m.Called(w) }
func (m *MockConfig) SetAutomationDetectionMethod(s string) { m.Called(s) }
func (m *MockConfig) SetAutomationSubmit(b bool)            { m.Called(b) }

// -- Page Mock --

// MockPage implements schemas.Page. Evaluate results are supplied with
// SetResult, e.g. On("Evaluate", ...).Run(mocks.SetResult(v)).Return(nil).
type MockPage struct {
	mock.Mock
}

var _ schemas.Page = (*MockPage)(nil)

// SetResult returns a Run function that copies v into the res argument of
// an Evaluate call by round tripping it through JSON, as the browser does.
func SetResult(v interface{}) func(mock.Arguments) {
	return func(args mock.Arguments) {
		res := args.Get(2)
		if res == nil {
			return
		}
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		if err := json.Unmarshal(b, res); err != nil {
			panic(err)
		}
	}
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return m.Called(ctx, expression, res).Error(0)
}

func (m *MockPage) FullScreenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockPage) Sleep(ctx context.Context, d time.Duration) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockPage) WaitFor(ctx context.Context, loc schemas.Locator) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *MockPage) Bounds(ctx context.Context, loc schemas.Locator) (schemas.Rect, error) {
	args := m.Called(ctx, loc)
	r, _ := args.Get(0).(schemas.Rect)
	return r, args.Error(1)
}

func (m *MockPage) Value(ctx context.Context, loc schemas.Locator) (string, error) {
	args := m.Called(ctx, loc)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Click(ctx context.Context, loc schemas.Locator) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *MockPage) ClickAt(ctx context.Context, p schemas.Point) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPage) Clear(ctx context.Context, loc schemas.Locator) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *MockPage) SetValue(ctx context.Context, loc schemas.Locator, value string) error {
	return m.Called(ctx, loc, value).Error(0)
}

func (m *MockPage) SelectOption(ctx context.Context, loc schemas.Locator, value string, match schemas.SelectMatch) (string, error) {
	args := m.Called(ctx, loc, value, match)
	return args.String(0), args.Error(1)
}

func (m *MockPage) SendKeys(ctx context.Context, keys string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockPage) PressKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockPage) SetUploadFiles(ctx context.Context, loc schemas.Locator, files []string) error {
	return m.Called(ctx, loc, files).Error(0)
}

func (m *MockPage) DropFiles(ctx context.Context, p schemas.Point, files []string) error {
	return m.Called(ctx, p, files).Error(0)
}

func (m *MockPage) ChooseFiles(ctx context.Context, trigger schemas.Locator, files []string) error {
	return m.Called(ctx, trigger, files).Error(0)
}

// -- Session Mock --

// MockSession is a MockPage with a session lifecycle.
type MockSession struct {
	MockPage
}

var _ schemas.Session = (*MockSession)(nil)

func (m *MockSession) ID() string { return m.Called().String(0) }

func (m *MockSession) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Session Opener Mock --

// MockSessionOpener mocks the browser manager.
type MockSessionOpener struct {
	mock.Mock
}

func (m *MockSessionOpener) OpenSession(ctx context.Context, opts schemas.SessionOptions) (schemas.Session, error) {
	args := m.Called(ctx, opts)
	s, _ := args.Get(0).(schemas.Session)
	return s, args.Error(1)
}

// -- Result Recorder Mock --

type MockResultRecorder struct {
	mock.Mock
}

func (m *MockResultRecorder) RecordResult(ctx context.Context, result *schemas.FillResult) error {
	return m.Called(ctx, result).Error(0)
}

// -- Task Runner Mock --

type MockTaskRunner struct {
	mock.Mock
}

func (m *MockTaskRunner) Run(ctx context.Context, task schemas.FillTask) (*schemas.FillResult, error) {
	args := m.Called(ctx, task)
	r, _ := args.Get(0).(*schemas.FillResult)
	return r, args.Error(1)
}
