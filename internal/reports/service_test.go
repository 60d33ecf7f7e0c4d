package reports_test

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/events/eventstest"
	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/reports"
	"simflow/portal-backend/internal/reports/dashboard"
	"simflow/portal-backend/internal/reports/export"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/storage/memory"
	"simflow/portal-backend/internal/workflow"
)

var (
	manager = workflow.Actor{ID: "m-1", Name: "Max", Role: workflow.RoleManager}
	endUser = workflow.Actor{ID: "u-1", Name: "Uma", Role: workflow.RoleEndUser}
)

// MockS3 is a mock implementation of storage.S3Client
type MockS3 struct {
	mock.Mock
	uploaded []byte
}

func (m *MockS3) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	m.uploaded, _ = io.ReadAll(body)
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *MockS3) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	return nil, args.Error(1)
}

func (m *MockS3) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *MockS3) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiration)
	return args.String(0), args.Error(1)
}

type fixture struct {
	projects *projects.Service
	requests *requests.Service
	recorder *eventstest.Recorder
	project  *projects.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	emitter, recorder := eventstest.NewEmitter()
	f := &fixture{
		projects: projects.NewService(store.Projects(), emitter, zap.NewNop()),
		requests: requests.NewService(store.Requests(), emitter, zap.NewNop()),
		recorder: recorder,
	}

	ctx := context.Background()
	p, err := f.projects.CreateProject(ctx, manager, projects.CreateProjectRequest{Name: "Rotor", TotalHours: 100})
	require.NoError(t, err)
	p, err = f.projects.ExtendHours(ctx, manager, p.ID, projects.ExtendInput{Hours: 20, Note: "Phase two", ExpectedVersion: p.Version})
	require.NoError(t, err)
	f.project = p
	recorder.Reset()
	return f
}

func (f *fixture) service(opts ...reports.Option) *reports.Service {
	agg := dashboard.NewAggregator(f.projects, f.requests, zap.NewNop(), dashboard.DefaultAggregatorConfig())
	return reports.NewService(f.projects, agg, zap.NewNop(), opts...)
}

func TestExportLedgerInline(t *testing.T) {
	f := newFixture(t)
	svc := f.service()

	result, err := svc.ExportLedger(context.Background(), manager, f.project.ID, export.FormatCSV)
	require.NoError(t, err)

	assert.False(t, result.Stored())
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.FileName, f.project.Code+"-ledger-"))
	assert.True(t, strings.HasSuffix(result.FileName, ".csv"))
	assert.Equal(t, 1, result.Rows)

	records, err := csv.NewReader(strings.NewReader(string(result.Data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Type", records[0][1])
	assert.Equal(t, string(projects.TxExtension), records[1][1])
	assert.Equal(t, "Phase two", records[1][9])
}

func TestExportLedgerUploadsWhenBucketConfigured(t *testing.T) {
	f := newFixture(t)
	s3 := new(MockS3)
	s3.On("Upload", mock.Anything, "exports", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "reports/ledgers/"+f.project.ID+"/") && strings.HasSuffix(key, ".xlsx")
	})).Return(nil)
	s3.On("GetPresignedURL", mock.Anything, "exports", mock.Anything, 15*time.Minute).
		Return("https://exports.example/signed", nil)

	svc := f.service(
		reports.WithObjectStore(s3, reports.ExportConfig{Bucket: "exports", Prefix: "reports/", PresignTTL: 15 * time.Minute}),
		reports.WithAuditor(f.recorder),
	)

	result, err := svc.ExportLedger(context.Background(), manager, f.project.ID, export.FormatExcel)
	require.NoError(t, err)

	assert.True(t, result.Stored())
	assert.Equal(t, "https://exports.example/signed", result.URL)
	require.NotNil(t, result.ExpiresAt)
	assert.Nil(t, result.Data)
	assert.NotEmpty(t, s3.uploaded)
	s3.AssertExpectations(t)

	entries := f.recorder.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "export_ledger", entries[0].Action)
	assert.Equal(t, f.project.ID, entries[0].EntityID)
	assert.Equal(t, "xlsx", entries[0].Details["format"])
}

func TestExportLedgerUnknownProject(t *testing.T) {
	f := newFixture(t)
	_, err := f.service().ExportLedger(context.Background(), manager, "missing", export.FormatCSV)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestDashboardScopesRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := 10.0
	_, err := f.requests.CreateRequest(ctx, endUser, requests.CreateRequestRequest{Title: "Blade loads", EstimatedHours: &estimate, ProjectID: &f.project.ID})
	require.NoError(t, err)
	other := workflow.Actor{ID: "u-2", Name: "Olly", Role: workflow.RoleEndUser}
	_, err = f.requests.CreateRequest(ctx, other, requests.CreateRequestRequest{Title: "Hub fatigue"})
	require.NoError(t, err)

	svc := f.service()

	mine, err := svc.Dashboard(ctx, endUser)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Requests.Total)
	assert.Equal(t, 1, mine.Projects.Total)
	assert.Equal(t, 120.0, mine.Projects.TotalHours)

	all, err := svc.Dashboard(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Requests.Total)
	assert.Equal(t, 2, all.Requests.ByStatus[workflow.RequestSubmitted])
}

func TestHandlerExportRequiresManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	tokens := auth.NewTokenService("test-secret", "simflow-test", time.Hour)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(auth.Middleware(tokens, zap.NewNop()))
	reports.NewHandler(f.service(), zap.NewNop()).RegisterRoutes(api)

	get := func(actor workflow.Actor, url string) *httptest.ResponseRecorder {
		token, _, err := tokens.Issue(actor)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	url := "/api/v1/reports/projects/" + f.project.ID + "/ledger/export?format=csv"
	assert.Equal(t, http.StatusForbidden, get(endUser, url).Code)

	w := get(manager, url)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), f.project.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	w = get(manager, "/api/v1/reports/projects/"+f.project.ID+"/ledger/export?format=docx")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(endUser, "/api/v1/reports/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
}
