package report

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/internal/store"
	"github.com/sells-group/leadreport/pkg/anthropic"
	"github.com/sells-group/leadreport/pkg/apollo"
)

// --- Apollo Mock ---

type mockApolloClient struct {
	mock.Mock
}

func (m *mockApolloClient) Match(ctx context.Context, email string) (*apollo.PersonRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apollo.PersonRecord), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateReport(ctx context.Context, email string, seed *model.LeadData) (*model.Report, error) {
	args := m.Called(ctx, email, seed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *mockStore) UpdateStatus(ctx context.Context, id string, from, to model.ReportStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockStore) MarkFailed(ctx context.Context, id string, msg string) error {
	args := m.Called(ctx, id, msg)
	return args.Error(0)
}

func (m *mockStore) SetEnrichment(ctx context.Context, id string, rec *apollo.PersonRecord, patch map[string]any) error {
	args := m.Called(ctx, id, rec, patch)
	return args.Error(0)
}

func (m *mockStore) SetSectionContent(ctx context.Context, id string, section string, content model.SectionContent) error {
	args := m.Called(ctx, id, section, content)
	return args.Error(0)
}

func (m *mockStore) SetCompleted(ctx context.Context, id string, narrative string) error {
	args := m.Called(ctx, id, narrative)
	return args.Error(0)
}

func (m *mockStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *mockStore) ListReports(ctx context.Context, filter store.ReportFilter) ([]model.Report, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Report), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var (
	_ apollo.Client    = (*mockApolloClient)(nil)
	_ anthropic.Client = (*mockAnthropicClient)(nil)
	_ store.Store      = (*mockStore)(nil)
)
