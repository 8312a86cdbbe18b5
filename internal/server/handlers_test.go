package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/async"
	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/entity"
	"github.com/fastcalorie/nutridb/internal/export"
	"github.com/fastcalorie/nutridb/internal/ingest"
	"github.com/fastcalorie/nutridb/internal/review"
	"github.com/fastcalorie/nutridb/internal/validation"
)

type fakeJobs struct {
	jobs map[uuid.UUID]*entity.IngestionJob
	list []entity.JobSummary
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]*entity.IngestionJob)}
}

func (f *fakeJobs) Create(_ context.Context, restaurantID, adminID uuid.UUID, pdfPath string) (*entity.IngestionJob, error) {
	job := &entity.IngestionJob{
		ID: uuid.New(), RestaurantID: restaurantID, AdminID: adminID,
		PDFPath: pdfPath, Status: constants.JobStatusPending, CreatedAt: time.Now(),
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) Get(_ context.Context, id uuid.UUID) (*entity.IngestionJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, common.NotFoundf("ingestion job %s", id)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) List(context.Context, *uuid.UUID, int) ([]entity.JobSummary, error) {
	return f.list, nil
}

func (f *fakeJobs) SetStatus(_ context.Context, id uuid.UUID, status constants.JobStatus) error {
	f.jobs[id].Status = status
	return nil
}

func (f *fakeJobs) SetProgress(context.Context, uuid.UUID, entity.PipelineProgress) error {
	return nil
}
func (f *fakeJobs) SaveRawText(context.Context, uuid.UUID, string) error { return nil }
func (f *fakeJobs) SaveStructuredData(context.Context, uuid.UUID, []entity.ExtractedItem) error {
	return nil
}
func (f *fakeJobs) SaveValidationReport(context.Context, uuid.UUID, []entity.ValidationResult) error {
	return nil
}

func (f *fakeJobs) SaveReviewEdit(_ context.Context, id uuid.UUID, items []entity.ExtractedItem, report []entity.ValidationResult) error {
	f.jobs[id].StructuredData = items
	f.jobs[id].ValidationReport = report
	return nil
}

func (f *fakeJobs) FinishApproval(_ context.Context, id uuid.UUID, approvedDelta int) (int, constants.JobStatus, error) {
	job := f.jobs[id]
	job.ItemsApproved += approvedDelta
	if job.ItemsApproved >= job.ItemsExtracted {
		job.Status = constants.JobStatusApproved
	}
	return job.ItemsApproved, job.Status, nil
}

func (f *fakeJobs) Fail(_ context.Context, id uuid.UUID, message string) error {
	f.jobs[id].Status = constants.JobStatusFailed
	f.jobs[id].ErrorLog = &message
	return nil
}

type fakeRestaurants struct {
	restaurant *entity.Restaurant
}

func (f *fakeRestaurants) Get(_ context.Context, id uuid.UUID) (*entity.Restaurant, error) {
	if f.restaurant == nil || f.restaurant.ID != id {
		return nil, common.NotFoundf("restaurant %s", id)
	}
	cp := *f.restaurant
	return &cp, nil
}

func (f *fakeRestaurants) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.restaurant != nil && f.restaurant.ID == id, nil
}

func (f *fakeRestaurants) IncrementItemCount(context.Context, uuid.UUID, int) error { return nil }
func (f *fakeRestaurants) SetLastIngestionAt(context.Context, uuid.UUID, time.Time) error {
	return nil
}
func (f *fakeRestaurants) ActivateIfDraft(context.Context, uuid.UUID) error { return nil }

type fakeMenuItems struct {
	created []entity.MenuItem
}

func (f *fakeMenuItems) Create(_ context.Context, item entity.MenuItem) (*entity.MenuItem, error) {
	item.ID = uuid.New()
	f.created = append(f.created, item)
	return &item, nil
}

func (f *fakeMenuItems) ListByRestaurant(context.Context, uuid.UUID) ([]entity.MenuItem, error) {
	return f.created, nil
}

type fakeAudit struct{}

func (fakeAudit) Record(context.Context, uuid.UUID, string, uuid.UUID, constants.AuditAction, any, any) error {
	return nil
}

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, async.Job) error { return nil }
func (noopQueue) Shutdown(context.Context)                 {}

type testEnv struct {
	server      http.Handler
	jobs        *fakeJobs
	restaurants *fakeRestaurants
	adminID     uuid.UUID
}

func newTestEnv(t *testing.T, healthErr error) *testEnv {
	t.Helper()
	jobs := newFakeJobs()
	restaurants := &fakeRestaurants{}
	menuItems := &fakeMenuItems{}

	intake := ingest.NewService(restaurants, jobs, noopQueue{}, t.TempDir(), nil)
	reviewSvc := review.NewService(jobs, restaurants, menuItems, fakeAudit{}, nil)
	exportSvc := export.NewService(restaurants, menuItems, nil)

	srv := New(":0", Deps{
		Intake: intake,
		Review: reviewSvc,
		Export: exportSvc,
		Jobs:   jobs,
		Health: func(context.Context) error { return healthErr },
	})

	return &testEnv{
		server:      srv.httpServer.Handler,
		jobs:        jobs,
		restaurants: restaurants,
		adminID:     uuid.New(),
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	env = newTestEnv(t, errors.New("db gone"))
	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func multipartUpload(t *testing.T, restaurantID string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("restaurant_id", restaurantID))

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="menu.pdf"`}
	h["Content-Type"] = []string{"application/pdf"}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadCreatesJob(t *testing.T) {
	env := newTestEnv(t, nil)
	restaurantID := uuid.New()
	env.restaurants.restaurant = &entity.Restaurant{ID: restaurantID, Name: "Testaurant", Slug: "testaurant"}

	body, contentType := multipartUpload(t, restaurantID.String(), []byte("%PDF-1.7 menu"))
	req := httptest.NewRequest(http.MethodPost, "/admin/ingestion/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Admin-ID", env.adminID.String())

	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	jobID, err := uuid.Parse(resp["job_id"])
	require.NoError(t, err)
	assert.Contains(t, env.jobs.jobs, jobID)
}

func TestUploadRequiresAdminHeader(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := multipartUpload(t, uuid.New().String(), []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/admin/ingestion/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadUnknownRestaurantIs404(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := multipartUpload(t, uuid.New().String(), []byte("%PDF-1.7"))
	req := httptest.NewRequest(http.MethodPost, "/admin/ingestion/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Admin-ID", env.adminID.String())

	rec := env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t, nil)
	job, err := env.jobs.Create(context.Background(), uuid.New(), uuid.New(), "/tmp/a.pdf")
	require.NoError(t, err)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/ingestion/jobs/"+job.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got entity.IngestionJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.ID)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/admin/ingestion/jobs/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/admin/ingestion/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobs(t *testing.T) {
	env := newTestEnv(t, nil)
	env.jobs.list = []entity.JobSummary{{ID: uuid.New(), RestaurantName: "Testaurant"}}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/ingestion/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []entity.JobSummary `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "Testaurant", resp.Jobs[0].RestaurantName)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/admin/ingestion/jobs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedReviewJob(t *testing.T, env *testEnv) *entity.IngestionJob {
	t.Helper()
	restaurantID := uuid.New()
	env.restaurants.restaurant = &entity.Restaurant{ID: restaurantID, Name: "Testaurant", Slug: "testaurant"}

	job, err := env.jobs.Create(context.Background(), restaurantID, env.adminID, "/tmp/menu.pdf")
	require.NoError(t, err)

	cal := 500
	protein, carbs, fat := 25.0, 50.0, 22.0
	serving := "1 serving"
	items := []entity.ExtractedItem{{
		Name: "Burger", Category: "Burgers", ServingSize: &serving, Calories: &cal,
		ProteinG: &protein, TotalCarbsG: &carbs, TotalFatG: &fat,
		Confidence: constants.ConfidenceHigh,
	}}
	job.StructuredData = items
	job.ValidationReport = validation.RunValidation(items)
	job.ItemsExtracted = 1
	job.Status = constants.JobStatusReview
	env.jobs.jobs[job.ID] = job
	return job
}

func TestApproveEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	job := seedReviewJob(t, env)

	body := bytes.NewBufferString(`{"item_indexes": [0]}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/ingestion/jobs/"+job.ID.String()+"/approve", body)
	req.Header.Set("X-Admin-ID", env.adminID.String())

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp review.ApproveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Approved)
	assert.Equal(t, constants.JobStatusApproved, resp.Status)
}

func TestApproveMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	job := seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodPost, "/admin/ingestion/jobs/"+job.ID.String()+"/approve",
		bytes.NewBufferString("{"))
	req.Header.Set("X-Admin-ID", env.adminID.String())
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	job := seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodPut, "/admin/ingestion/jobs/"+job.ID.String()+"/items/0",
		bytes.NewBufferString(`{"calories": 480}`))
	req.Header.Set("X-Admin-ID", env.adminID.String())

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp review.EditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Item.Calories)
	assert.Equal(t, 480, *resp.Item.Calories)

	// Invalid JSON is rejected before it reaches the service.
	req = httptest.NewRequest(http.MethodPut, "/admin/ingestion/jobs/"+job.ID.String()+"/items/0",
		bytes.NewBufferString("nope"))
	req.Header.Set("X-Admin-ID", env.adminID.String())
	rec = env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	restaurantID := uuid.New()
	env.restaurants.restaurant = &entity.Restaurant{ID: restaurantID, Name: "Testaurant", Slug: "testaurant"}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/restaurants/"+restaurantID.String()+"/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "testaurant-menu.xlsx")
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/admin/restaurants/"+uuid.New().String()+"/export", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
