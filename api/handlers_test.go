package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitroom/uniform-engine/uniform"
	"github.com/kitroom/uniform-engine/uniform/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	srv := httptest.NewServer(NewRouter(NewHandler(mem)))
	t.Cleanup(srv.Close)
	return srv, mem
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func seedSchool(t *testing.T, mem *store.Memory) uniform.School {
	t.Helper()
	school := uniform.School{
		ID:     "sch-1",
		Name:   "Hillside Primary",
		Status: uniform.SchoolActive,
		UniformPolicy: []uniform.PolicyEntry{{
			ID: "pol-1", UniformID: "shirt", UniformName: "White Shirt",
			Level: "Junior", Gender: "Boys", QuantityPerStudent: 3, IsRequired: true,
		}},
		CreatedAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, mem.SaveSchool(context.Background(), school))
	return school
}

func seedStudent(t *testing.T, mem *store.Memory) {
	t.Helper()
	require.NoError(t, mem.AddStudent(context.Background(), uniform.Student{
		ID: "stu-1", SchoolID: "sch-1", Name: "Asha",
		Level: "Junior", Gender: "Boys",
	}))
}

func seedStock(t *testing.T, mem *store.Memory, qty int) {
	t.Helper()
	require.NoError(t, mem.SaveBatch(context.Background(), uniform.Batch{
		ID: "b1", UniformID: "shirt", Reference: "REF-1",
		Items: []uniform.Variant{{
			VariantType: "short-sleeve",
			Price:       decimal.NewFromInt(15000),
			Sizes:       []uniform.SizeStock{{Size: "M", Quantity: qty}},
		}},
		ReceivedAt: time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC),
	}))
}

// =============================================================================
// SCHOOLS
// =============================================================================

func TestCreateAndGetSchool(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools", map[string]string{"name": "Hillside"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[SchoolDTO](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Hillside", created.Name)
	assert.Equal(t, "active", created.Status)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schools/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[SchoolDTO](t, resp)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateSchool_RequiresName(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSchool_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/schools/nowhere", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSchool_DropsReports(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)
	require.NoError(t, mem.SaveSchoolReport(context.Background(), uniform.SchoolReport{SchoolID: "sch-1"}))

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/schools/sch-1", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	report, err := mem.SchoolReport(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.Nil(t, report)
}

// =============================================================================
// POLICY
// =============================================================================

func TestAddPolicy(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/policies", AddPolicyRequest{
		UniformID: "sweater", UniformName: "Navy Sweater",
		Level: "Junior", Gender: "Boys", QuantityPerStudent: 1, IsRequired: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	school := decode[SchoolDTO](t, resp)
	require.Len(t, school.Policy, 2)
	assert.NotEmpty(t, school.Policy[1].ID)
}

func TestAddPolicy_ValidationMapsTo400(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/policies", AddPolicyRequest{
		UniformID: "sweater", Level: "Junior", Gender: "Boys", QuantityPerStudent: 0,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApplyPolicyPreset(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/policies/preset",
		ApplyPresetRequest{Preset: "primary-day"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	school := decode[SchoolDTO](t, resp)
	assert.Greater(t, len(school.Policy), 1, "preset entries appended to existing policy")
}

func TestApplyPolicyPreset_UnknownPreset(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/policies/preset",
		ApplyPresetRequest{Preset: "no-such-preset"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemovePolicy(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/schools/sch-1/policies/pol-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	school := decode[SchoolDTO](t, resp)
	assert.Empty(t, school.Policy)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/schools/sch-1/policies/pol-1", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// ROSTER
// =============================================================================

func TestAddAndListStudents(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/students", AddStudentRequest{
		Name: "Asha", Form: "P4", Level: "Junior", Gender: "Boys",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	student := decode[StudentDTO](t, resp)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "sch-1", student.SchoolID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schools/sch-1/students", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	students := decode[[]StudentDTO](t, resp)
	require.Len(t, students, 1)
	assert.Equal(t, "Asha", students[0].Name)

	// The school document carries the roster summary.
	school, err := mem.School(context.Background(), "sch-1")
	require.NoError(t, err)
	require.Len(t, school.Roster, 1)
}

func TestDeleteStudent(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/students", AddStudentRequest{
		Name: "Asha", Level: "Junior", Gender: "Boys",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	student := decode[StudentDTO](t, resp)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/schools/sch-1/students/"+student.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := mem.Student(context.Background(), uniform.StudentID(student.ID))
	assert.ErrorIs(t, err, uniform.ErrStudentNotFound)
}

// =============================================================================
// ISSUING
// =============================================================================

func TestLogUniform_ReceivedDeductsStock(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)
	seedStudent(t, mem)
	seedStock(t, mem, 3)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/log", LogUniformRequest{
		UniformID: "shirt", UniformName: "White Shirt",
		Quantity: 2, Size: "M", Actor: "staff-7",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := decode[LogEntryDTO](t, resp)
	assert.Equal(t, 2, entry.QuantityReceived)
	assert.Equal(t, "M", entry.SizeReceived)

	batch, err := mem.Batch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Items[0].Sizes[0].Quantity)
}

func TestLogUniform_InsufficientStockMapsTo409(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)
	seedStudent(t, mem)
	seedStock(t, mem, 1)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/log", LogUniformRequest{
		UniformID: "shirt", Quantity: 2, Size: "M",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), body["currentStock"])
	assert.Equal(t, float64(2), body["requested"])
}

func TestLogUniform_SizeUnavailable(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)
	seedStudent(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/log", LogUniformRequest{
		UniformID: "shirt", SizeUnavailable: true, SizeWanted: "XL",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := decode[LogEntryDTO](t, resp)
	assert.Equal(t, "XL", entry.SizeWanted)
	assert.Equal(t, 0, entry.QuantityReceived)
}

func TestAddDistribution(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)
	seedStudent(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/distributions", AddDistributionRequest{
		Gender: "boys", RequirementIndex: 0, Size: "M", Quantity: 2, IssuedBy: "staff-7",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "BOYS-0", body["key"])
	assert.Equal(t, float64(2), body["totalReceived"])

	student, err := mem.Student(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, student.UniformDistribution["BOYS-0"].TotalReceived)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestGetSchoolReport_LiveFallbackThenSnapshot(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)
	seedStudent(t, mem)

	// No stored snapshot: computed live.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/schools/sch-1/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	live := decode[SchoolReportDTO](t, resp)
	assert.True(t, live.Live)
	require.Len(t, live.UniformDeficits, 1)
	assert.Equal(t, 3, live.UniformDeficits[0].TotalDeficit)

	// Refresh stores a snapshot; subsequent reads serve it.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/report/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshed := decode[SchoolReportDTO](t, resp)
	assert.False(t, refreshed.Live)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schools/sch-1/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored := decode[SchoolReportDTO](t, resp)
	assert.False(t, stored.Live)
	assert.Equal(t, refreshed.UniformDeficits, stored.UniformDeficits)
}

func TestGetStudentReport_SnapshotAndLiveFallback(t *testing.T) {
	srv, mem := newTestServer(t)
	seedSchool(t, mem)
	seedStudent(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schools/sch-1/report/refresh", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schools/sch-1/report/students/stu-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored := decode[StudentReportDTO](t, resp)
	assert.False(t, stored.Live)
	assert.Equal(t, 3, stored.TotalDeficit)

	// A student with no stored report (no deficit) falls back to live.
	require.NoError(t, mem.AddStudent(context.Background(), uniform.Student{
		ID: "stu-2", SchoolID: "sch-1", Name: "Baker",
		Level: "Junior", Gender: "Boys",
		UniformLog: []uniform.LogEntry{{
			ID: "log-1", UniformID: "shirt", QuantityReceived: 3, SizeReceived: "M",
		}},
	}))
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schools/sch-1/report/students/stu-2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	liveReport := decode[StudentReportDTO](t, resp)
	assert.True(t, liveReport.Live)
	assert.Equal(t, 0, liveReport.TotalDeficit)
}

// =============================================================================
// STOCK
// =============================================================================

func TestReceiveAndListBatches(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/batches", ReceiveBatchRequest{
		UniformID: "shirt",
		Reference: "INV-2026-001",
		Items: []VariantDTO{{
			VariantType: "short-sleeve",
			Color:       "white",
			Price:       "15000.00",
			Sizes:       []SizeStockDTO{{Size: "M", Quantity: 10}, {Size: "L", Quantity: 5}},
		}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[BatchDTO](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "225000.00", created.TotalValue)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/batches", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	batches := decode[[]BatchDTO](t, resp)
	require.Len(t, batches, 1)
	assert.Equal(t, created.ID, batches[0].ID)
}

func TestReceiveBatch_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/batches", ReceiveBatchRequest{UniformID: "shirt"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/batches", ReceiveBatchRequest{
		UniformID: "shirt",
		Items:     []VariantDTO{{Price: "not-a-number"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckStock(t *testing.T) {
	srv, mem := newTestServer(t)
	seedStock(t, mem, 3)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/stock/check?uniformId=shirt&size=M&quantity=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check := decode[StockCheckDTO](t, resp)
	assert.True(t, check.Available)
	assert.Equal(t, 3, check.CurrentStock)
	assert.Equal(t, "b1", check.BatchID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/stock/check?uniformId=shirt&size=M&quantity=9", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check = decode[StockCheckDTO](t, resp)
	assert.False(t, check.Available)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/stock/check?uniformId=shirt&size=M", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
