package usecases

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain"
	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
)

type fakeToolRepo struct {
	tools []shared.Tool
}

func (f *fakeToolRepo) GetTool(ctx context.Context, name string) (*shared.Tool, error) {
	for _, tool := range f.tools {
		if tool.Name == name {
			return &tool, nil
		}
	}
	return nil, domain.NewToolNotFoundError(name)
}

func (f *fakeToolRepo) ListTools(ctx context.Context) ([]shared.Tool, error) {
	return f.tools, nil
}

func (f *fakeToolRepo) AddTool(ctx context.Context, tool shared.Tool) error {
	f.tools = append(f.tools, tool)
	return nil
}

func (f *fakeToolRepo) ReplaceAll(ctx context.Context, tools []shared.Tool) error {
	f.tools = tools
	return nil
}

type fakeSessionRepo struct {
	sessions map[string]*domain.ClientSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.ClientSession)}
}

func (f *fakeSessionRepo) GetSession(ctx context.Context, id string) (*domain.ClientSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.NewSessionNotFoundError(id)
	}
	return session, nil
}

func (f *fakeSessionRepo) ListSessions(ctx context.Context) ([]*domain.ClientSession, error) {
	var out []*domain.ClientSession
	for _, session := range f.sessions {
		out = append(out, session)
	}
	return out, nil
}

func (f *fakeSessionRepo) AddSession(ctx context.Context, session *domain.ClientSession) error {
	if _, ok := f.sessions[session.ID]; ok {
		return errors.New("duplicate session")
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) DeleteSession(ctx context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return domain.NewSessionNotFoundError(id)
	}
	delete(f.sessions, id)
	return nil
}

type fakeNotifier struct {
	broadcasts []*domain.Notification
	err        error
}

func (f *fakeNotifier) SendNotification(ctx context.Context, sessionID string, n *domain.Notification) error {
	return f.err
}

func (f *fakeNotifier) BroadcastNotification(ctx context.Context, n *domain.Notification) error {
	f.broadcasts = append(f.broadcasts, n)
	return f.err
}

type fakeExecutor struct {
	name    string
	content []shared.Content
	err     error
	calls   int
}

func (f *fakeExecutor) Definition() shared.Tool {
	return shared.Tool{Name: f.name, InputSchema: shared.InputSchema{Type: "object"}}
}

func (f *fakeExecutor) Call(ctx context.Context, args map[string]interface{}) ([]shared.Content, error) {
	f.calls++
	return f.content, f.err
}

func newTestService(toolRepo *fakeToolRepo, sessionRepo *fakeSessionRepo, notifier *fakeNotifier) *ServerService {
	return NewServerService(
		shared.ServerInfo{Name: "test", Version: "0.0.1"},
		toolRepo,
		sessionRepo,
		notifier,
		nil,
	)
}

func TestRefreshCatalog(t *testing.T) {
	ctx := context.Background()
	toolRepo := &fakeToolRepo{}
	notifier := &fakeNotifier{}
	service := newTestService(toolRepo, newFakeSessionRepo(), notifier)

	service.RegisterExecutor(&fakeExecutor{name: "zeta"})
	service.RegisterExecutor(&fakeExecutor{name: "alpha"})

	require.NoError(t, service.RefreshCatalog(ctx))

	// catalog is rebuilt in name order
	require.Len(t, toolRepo.tools, 2)
	assert.Equal(t, "alpha", toolRepo.tools[0].Name)
	assert.Equal(t, "zeta", toolRepo.tools[1].Name)

	// exactly one list-changed broadcast per refresh
	require.Len(t, notifier.broadcasts, 1)
	assert.Equal(t, shared.NotificationToolsListChanged, notifier.broadcasts[0].Method)

	require.NoError(t, service.RefreshCatalog(ctx))
	assert.Len(t, notifier.broadcasts, 2)
}

func TestRefreshCatalogBroadcastFailureDoesNotFailRefresh(t *testing.T) {
	toolRepo := &fakeToolRepo{}
	notifier := &fakeNotifier{err: errors.New("channel full")}
	service := newTestService(toolRepo, newFakeSessionRepo(), notifier)
	service.RegisterExecutor(&fakeExecutor{name: "alpha"})

	assert.NoError(t, service.RefreshCatalog(context.Background()))
	assert.Len(t, toolRepo.tools, 1)
}

func TestRegisterExecutorReplaces(t *testing.T) {
	first := &fakeExecutor{name: "tool", content: []shared.Content{shared.NewTextContent("first")}}
	second := &fakeExecutor{name: "tool", content: []shared.Content{shared.NewTextContent("second")}}
	service := newTestService(&fakeToolRepo{}, newFakeSessionRepo(), &fakeNotifier{})

	service.RegisterExecutor(first)
	service.RegisterExecutor(second)

	content, err := service.CallTool(context.Background(), "tool", nil)
	require.NoError(t, err)
	require.Len(t, content, 1)
	assert.Equal(t, "second", content[0].(shared.TextContent).Text)
	assert.Zero(t, first.calls)
}

func TestCallTool(t *testing.T) {
	executor := &fakeExecutor{
		name:    "tool",
		content: []shared.Content{shared.NewTextContent("ok")},
	}
	service := newTestService(&fakeToolRepo{}, newFakeSessionRepo(), &fakeNotifier{})
	service.RegisterExecutor(executor)

	content, err := service.CallTool(context.Background(), "tool", map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	assert.Len(t, content, 1)
	assert.Equal(t, 1, executor.calls)
}

func TestCallToolUnknown(t *testing.T) {
	service := newTestService(&fakeToolRepo{}, newFakeSessionRepo(), &fakeNotifier{})

	_, err := service.CallTool(context.Background(), "missing", nil)
	var notFound *domain.ToolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestCallToolExecutorErrorPassedThrough(t *testing.T) {
	executor := &fakeExecutor{name: "tool", err: errors.New("database unreachable")}
	service := newTestService(&fakeToolRepo{}, newFakeSessionRepo(), &fakeNotifier{})
	service.RegisterExecutor(executor)

	_, err := service.CallTool(context.Background(), "tool", nil)
	assert.EqualError(t, err, "database unreachable")
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	sessionRepo := newFakeSessionRepo()
	service := newTestService(&fakeToolRepo{}, sessionRepo, &fakeNotifier{})

	session := domain.NewClientSession("agent")
	require.NoError(t, service.RegisterSession(ctx, session))

	got, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent", got.UserAgent)

	require.NoError(t, service.UnregisterSession(ctx, session.ID))
	_, err = service.GetSession(ctx, session.ID)
	assert.Error(t, err)
}
