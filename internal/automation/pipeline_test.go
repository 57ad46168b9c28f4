package automation

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/mocks"
)

type mockDetector struct{ mock.Mock }

func (m *mockDetector) Detect(ctx context.Context, page schemas.Page, method schemas.Strategy) ([]schemas.DetectedField, error) {
	args := m.Called(ctx, page, method)
	fields, _ := args.Get(0).([]schemas.DetectedField)
	return fields, args.Error(1)
}

type mockFiller struct{ mock.Mock }

func (m *mockFiller) Apply(ctx context.Context, page schemas.Page, field schemas.DetectedField, value string) error {
	return m.Called(ctx, page, field, value).Error(0)
}

type mockSubmitter struct{ mock.Mock }

func (m *mockSubmitter) TrySubmit(ctx context.Context, page schemas.Page) error {
	return m.Called(ctx, page).Error(0)
}

func (m *mockSubmitter) CheckConfirmation(ctx context.Context, page schemas.Page, startURL string) bool {
	return m.Called(ctx, page, startURL).Bool(0)
}

const pageURL = "https://jobs.example.com/apply"

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.AutomationCfg.PostLoadWait = 0
	cfg.AutomationCfg.Screenshots = false
	cfg.AutomationCfg.TabStepDelay = 0
	cfg.BrowserCfg.Typing.TypoRate = 0
	return cfg
}

func testProfile() *schemas.CandidateProfile {
	return &schemas.CandidateProfile{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		Phone: "+44 20 7946 0000",
	}
}

func testTask() schemas.FillTask {
	return schemas.FillTask{ID: "task-1", URL: pageURL, Profile: testProfile(), DetectionMethod: schemas.StrategyDOM}
}

func field(id string, category schemas.Category, label string) schemas.DetectedField {
	return schemas.DetectedField{
		ID:         id,
		Category:   category,
		Label:      label,
		TagName:    "input",
		Locators:   []schemas.Locator{{Kind: schemas.LocatorCSS, Value: "#" + id}},
		Confidence: 0.85,
		Sources:    []schemas.Strategy{schemas.StrategyDOM},
	}
}

// newSession returns a session whose lifecycle calls always succeed.
func newSession() *mocks.MockSession {
	s := new(mocks.MockSession)
	s.On("ID").Return("session-1")
	s.On("Close", mock.Anything).Return(nil)
	s.On("Navigate", mock.Anything, pageURL).Return(nil)
	return s
}

func newOpener(s schemas.Session) *mocks.MockSessionOpener {
	o := new(mocks.MockSessionOpener)
	o.On("OpenSession", mock.Anything, mock.Anything).Return(s, nil)
	return o
}

func TestRun_SingleEmailFieldEndToEnd(t *testing.T) {
	session := newSession()
	isScan := mock.MatchedBy(func(s string) bool { return strings.Contains(s, "const uploads") })
	session.On("Evaluate", mock.Anything, isScan, mock.Anything).Run(mocks.SetResult([]schemas.ElementSnapshot{{
		TagName: "input", InputType: "email", ElementID: "email", Label: "Email Address", Editable: true,
		Bounds: schemas.Rect{X: 10, Y: 10, Width: 300, Height: 30}, CSSPath: "#email", XPath: `//*[@id="email"]`,
	}})).Return(nil)
	css := schemas.Locator{Kind: schemas.LocatorCSS, Value: "#email"}
	session.On("WaitFor", mock.Anything, css).Return(nil)
	session.On("Click", mock.Anything, css).Return(nil)
	session.On("Clear", mock.Anything, css).Return(nil)
	session.On("Sleep", mock.Anything, mock.Anything).Return(nil)
	session.On("SendKeys", mock.Anything, mock.Anything).Return(nil)
	session.On("Value", mock.Anything, css).Return("ada@example.com", nil)

	p := New(testConfig(), newOpener(session), nil, rand.New(rand.NewSource(1)), zaptest.NewLogger(t))
	result, err := p.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, 1, result.FieldsDetected)
	assert.Equal(t, 1, result.FieldsAttempted)
	assert.Equal(t, 1, result.FieldsFilled)
	assert.Empty(t, result.Errors)
	assert.Equal(t, schemas.StrategyDOM, result.DetectionMethod)
	session.AssertNumberOfCalls(t, "SendKeys", len("ada@example.com"))
	session.AssertNumberOfCalls(t, "Close", 1)
}

func TestRun_ZeroFields(t *testing.T) {
	session := newSession()
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{}, nil)
	fill := new(mockFiller)

	task := testTask()
	task.Submit = true
	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill)).Run(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, 0, result.FieldsAttempted)
	assert.NotNil(t, result.Errors)
	assert.Empty(t, result.Errors)
	assert.False(t, result.Submitted)
	fill.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	session.AssertNumberOfCalls(t, "Close", 1)
}

func TestRun_NullValuesAreNeverFilled(t *testing.T) {
	session := newSession()
	email := field("email", schemas.CategoryEmail, "Email")
	salary := field("salary", schemas.CategorySalary, "Expected salary")
	salary.Required = true
	notes := field("notes", schemas.CategoryText, "Anything else?")

	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{email, salary, notes}, nil)
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, session, mock.Anything, "ada@example.com").Return(nil)

	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill)).Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, 3, result.FieldsDetected)
	assert.Equal(t, 1, result.FieldsAttempted)
	assert.Equal(t, 1, result.FieldsFilled)
	fill.AssertNumberOfCalls(t, "Apply", 1)

	require.Len(t, result.Errors, 1, "only the required field is reported")
	assert.Equal(t, "salary", result.Errors[0].FieldID)
	assert.Equal(t, schemas.SeverityWarning, result.Errors[0].Severity)
}

func TestRun_ResumePathGoesOnlyToUploadFields(t *testing.T) {
	session := newSession()
	pasted := field("cv_text", schemas.CategoryTextarea, "Paste your CV")
	pasted.TagName = "textarea"
	headline := field("headline", schemas.CategoryText, "Resume headline")
	headline.InputType = "text"
	resume := field("resume", schemas.CategoryFileUpload, "Resume")
	resume.InputType = "file"

	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{pasted, headline, resume}, nil)
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, session, mock.MatchedBy(func(f schemas.DetectedField) bool { return f.ID == "resume" }), "/home/ada/cv.pdf").Return(nil)

	task := testTask()
	task.Profile.ResumeFilePath = "/home/ada/cv.pdf"
	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill)).Run(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, 3, result.FieldsDetected)
	assert.Equal(t, 1, result.FieldsAttempted)
	assert.Equal(t, 1, result.FieldsFilled)
	fill.AssertNumberOfCalls(t, "Apply", 1)
	assert.Empty(t, result.Errors)
}

func TestRun_FieldErrorsAreRecorded(t *testing.T) {
	session := newSession()
	email := field("email", schemas.CategoryEmail, "Email")
	phone := field("phone", schemas.CategoryPhone, "Phone")
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{email, phone}, nil)
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, session, mock.MatchedBy(func(f schemas.DetectedField) bool { return f.ID == "email" }), mock.Anything).
		Return(errors.New("no locator resolved to an element"))
	fill.On("Apply", mock.Anything, session, mock.MatchedBy(func(f schemas.DetectedField) bool { return f.ID == "phone" }), mock.Anything).
		Return(nil)

	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill)).Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, 2, result.FieldsAttempted)
	assert.Equal(t, 1, result.FieldsFilled)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schemas.FieldError{FieldID: "email", Label: "Email", Reason: "no locator resolved to an element", Severity: schemas.SeverityError}, result.Errors[0])
	session.AssertNumberOfCalls(t, "Close", 1)
}

func TestRun_UploadsRunLast(t *testing.T) {
	session := newSession()
	upload := field("cv", schemas.CategoryFileUpload, "Resume")
	email := field("email", schemas.CategoryEmail, "Email")
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{upload, email}, nil)

	var order []string
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, session, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.Get(2).(schemas.DetectedField).ID) }).Return(nil)

	task := testTask()
	task.Profile.ResumeFilePath = "/tmp/cv.pdf"
	_, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill)).Run(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, []string{"email", "cv"}, order)
}

func TestRun_SubmitWithoutConfirmation(t *testing.T) {
	session := newSession()
	session.On("URL", mock.Anything).Return(pageURL, nil)
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{field("email", schemas.CategoryEmail, "Email")}, nil)
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sub := new(mockSubmitter)
	sub.On("TrySubmit", mock.Anything, session).Return(nil)
	sub.On("CheckConfirmation", mock.Anything, session, pageURL).Return(false)

	task := testTask()
	task.Submit = true
	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill), WithSubmitter(sub)).Run(context.Background(), task)

	require.NoError(t, err)
	assert.True(t, result.Submitted)
	assert.False(t, result.ConfirmationReceived)
	assert.Empty(t, result.Errors)
}

func TestRun_SubmissionErrorIsRecorded(t *testing.T) {
	session := newSession()
	session.On("URL", mock.Anything).Return(pageURL, nil)
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{field("email", schemas.CategoryEmail, "Email")}, nil)
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sub := new(mockSubmitter)
	sub.On("TrySubmit", mock.Anything, session).Return(errors.New("submission failed: no control"))

	task := testTask()
	task.Submit = true
	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill), WithSubmitter(sub)).Run(context.Background(), task)

	require.NoError(t, err)
	assert.False(t, result.Submitted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schemas.SeverityError, result.Errors[0].Severity)
	sub.AssertNotCalled(t, "CheckConfirmation", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_Screenshots(t *testing.T) {
	cfg := testConfig()
	cfg.AutomationCfg.Screenshots = true
	session := newSession()
	session.On("URL", mock.Anything).Return(pageURL, nil)
	session.On("FullScreenshot", mock.Anything).Return([]byte{0x89, 'P', 'N', 'G'}, nil)
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{field("email", schemas.CategoryEmail, "Email")}, nil)
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sub := new(mockSubmitter)
	sub.On("TrySubmit", mock.Anything, session).Return(nil)
	sub.On("CheckConfirmation", mock.Anything, session, pageURL).Return(true)

	task := testTask()
	task.Submit = true
	result, err := New(cfg, newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill), WithSubmitter(sub)).Run(context.Background(), task)

	require.NoError(t, err)
	var checkpoints []schemas.Checkpoint
	for _, s := range result.Screenshots {
		checkpoints = append(checkpoints, s.Checkpoint)
	}
	assert.Equal(t, []schemas.Checkpoint{schemas.CheckpointPostLoad, schemas.CheckpointPostFill, schemas.CheckpointPostSubmit}, checkpoints)
}

func TestRun_SessionErrors(t *testing.T) {
	t.Run("LaunchFailure", func(t *testing.T) {
		opener := new(mocks.MockSessionOpener)
		launchErr := &schemas.SessionError{Op: "launch", Err: errors.New("chrome not found")}
		opener.On("OpenSession", mock.Anything, mock.Anything).Return(nil, launchErr)

		result, err := New(testConfig(), opener, nil, nil, zaptest.NewLogger(t)).Run(context.Background(), testTask())
		assert.Nil(t, result)
		assert.True(t, schemas.IsSessionError(err))
	})

	t.Run("NavigationFailure", func(t *testing.T) {
		session := new(mocks.MockSession)
		session.On("ID").Return("s")
		session.On("Close", mock.Anything).Return(nil)
		session.On("Navigate", mock.Anything, pageURL).Return(errors.New("net::ERR_NAME_NOT_RESOLVED"))
		det := new(mockDetector)

		result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t), WithDetector(det)).Run(context.Background(), testTask())

		assert.Nil(t, result)
		var sessErr *schemas.SessionError
		require.ErrorAs(t, err, &sessErr)
		assert.Equal(t, "navigate", sessErr.Op)
		det.AssertNotCalled(t, "Detect", mock.Anything, mock.Anything, mock.Anything)
		session.AssertNumberOfCalls(t, "Close", 1)
	})

	t.Run("DetectionFailure", func(t *testing.T) {
		session := newSession()
		det := new(mockDetector)
		det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return(nil, errors.New("target crashed"))

		result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t), WithDetector(det)).Run(context.Background(), testTask())

		assert.Nil(t, result)
		var sessErr *schemas.SessionError
		require.ErrorAs(t, err, &sessErr)
		assert.Equal(t, "detect", sessErr.Op)
		session.AssertNumberOfCalls(t, "Close", 1)
	})
}

func TestRun_CancellationClosesSession(t *testing.T) {
	session := newSession()
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyDOM).Return([]schemas.DetectedField{
		field("email", schemas.CategoryEmail, "Email"),
		field("phone", schemas.CategoryPhone, "Phone"),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fill := new(mockFiller)
	fill.On("Apply", mock.Anything, session, mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil).Once()

	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill)).Run(ctx, testTask())

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.FieldsAttempted)
	assert.False(t, result.FinishedAt.IsZero())
	fill.AssertNumberOfCalls(t, "Apply", 1)
	session.AssertNumberOfCalls(t, "Close", 1)
}

func TestRun_InvalidTask(t *testing.T) {
	opener := new(mocks.MockSessionOpener)
	p := New(testConfig(), opener, nil, nil, zaptest.NewLogger(t))

	task := testTask()
	task.DetectionMethod = "psychic"
	_, err := p.Run(context.Background(), task)
	assert.Error(t, err)

	task = testTask()
	task.Profile = nil
	_, err = p.Run(context.Background(), task)
	assert.Error(t, err)

	opener.AssertNotCalled(t, "OpenSession", mock.Anything, mock.Anything)
}

func TestRun_DefaultMethodFromConfig(t *testing.T) {
	session := newSession()
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyHybrid).Return([]schemas.DetectedField{}, nil)

	task := testTask()
	task.DetectionMethod = ""
	result, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t), WithDetector(det)).Run(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, schemas.StrategyHybrid, result.DetectionMethod)
}

func TestInspect(t *testing.T) {
	session := newSession()
	det := new(mockDetector)
	det.On("Detect", mock.Anything, session, schemas.StrategyHybrid).Return([]schemas.DetectedField{
		field("q1", schemas.CategoryText, "LinkedIn profile"),
	}, nil)
	fill := new(mockFiller)

	fields, err := New(testConfig(), newOpener(session), nil, nil, zaptest.NewLogger(t),
		WithDetector(det), WithFiller(fill)).Inspect(context.Background(), pageURL, "")

	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, schemas.CategoryLinkedIn, fields[0].Category)
	fill.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	session.AssertNumberOfCalls(t, "Close", 1)
}
