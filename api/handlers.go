/*
handlers.go - HTTP API handlers for the uniform engine

PURPOSE:
  Exposes the uniform engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic. The engine itself never
  sees HTTP.

ENDPOINTS:
  Schools:
    GET    /api/schools                          List schools
    POST   /api/schools                          Create school
    GET    /api/schools/{id}                     Get school (policy + roster summary)
    DELETE /api/schools/{id}                     Delete school and its reports

  Policy:
    POST   /api/schools/{id}/policies            Add policy entry
    POST   /api/schools/{id}/policies/preset     Apply a named preset
    DELETE /api/schools/{id}/policies/{pid}      Remove policy entry

  Roster:
    GET    /api/schools/{id}/students            Full roster
    POST   /api/schools/{id}/students            Add student (dual write)
    DELETE /api/schools/{id}/students/{sid}      Delete student (dual write)

  Issuing:
    POST   /api/students/{id}/log                Log received uniform / size request
    POST   /api/students/{id}/distributions      Add distribution record

  Reports:
    GET    /api/schools/{id}/report              Snapshot, falling back to live
    POST   /api/schools/{id}/report/refresh      Regenerate snapshots
    GET    /api/schools/{id}/report/students/{sid}  Per-student report

  Stock:
    GET    /api/batches                          List batches
    POST   /api/batches                          Receive a batch
    GET    /api/stock/check                      Advisory stock check

ERROR HANDLING:
  Typed domain errors map to status codes:
  - 400: validation
  - 404: missing school/student/batch
  - 409: insufficient stock, exhausted transaction conflicts
  - 500: everything else (dual-write inconsistencies included, with details)

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kitroom/uniform-engine/factory"
	"github.com/kitroom/uniform-engine/uniform"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. Everything is injected;
// there is no ambient state.
type Handler struct {
	Store    uniform.Store
	Ledger   *uniform.StockLedger
	Issuer   *uniform.IssueService
	Roster   *uniform.RosterService
	Reporter *uniform.Reporter
	Presets  *factory.PresetCatalog
}

// NewHandler wires the services over one store.
func NewHandler(store uniform.Store) *Handler {
	ledger := uniform.NewStockLedger(store)
	return &Handler{
		Store:    store,
		Ledger:   ledger,
		Issuer:   uniform.NewIssueService(store, ledger),
		Roster:   uniform.NewRosterService(store, store),
		Reporter: uniform.NewReporter(store),
		Presets:  factory.NewPresetCatalog(),
	}
}

// =============================================================================
// SCHOOL HANDLERS
// =============================================================================

func (h *Handler) ListSchools(w http.ResponseWriter, r *http.Request) {
	schools, err := h.Store.Schools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schools", err)
		return
	}

	dtos := make([]SchoolDTO, len(schools))
	for i, s := range schools {
		dtos[i] = toSchoolDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSchool(w http.ResponseWriter, r *http.Request) {
	var req CreateSchoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "School name is required", nil)
		return
	}

	school := uniform.School{
		ID:        uniform.SchoolID(uuid.NewString()),
		Name:      req.Name,
		Status:    uniform.SchoolActive,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveSchool(r.Context(), school); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create school", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSchoolDTO(school))
}

func (h *Handler) GetSchool(w http.ResponseWriter, r *http.Request) {
	school, ok := h.loadSchool(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSchoolDTO(*school))
}

func (h *Handler) DeleteSchool(w http.ResponseWriter, r *http.Request) {
	id := uniform.SchoolID(chi.URLParam(r, "id"))

	if err := h.Reporter.Drop(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to drop reports", err)
		return
	}
	if err := h.Store.DeleteSchool(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete school", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

func (h *Handler) AddPolicy(w http.ResponseWriter, r *http.Request) {
	school, ok := h.loadSchool(w, r)
	if !ok {
		return
	}

	var req AddPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := uniform.AddPolicyEntry(*school, uniform.PolicyEntry{
		UniformID:          uniform.UniformID(req.UniformID),
		UniformName:        req.UniformName,
		UniformType:        req.UniformType,
		Level:              req.Level,
		Gender:             req.Gender,
		QuantityPerStudent: req.QuantityPerStudent,
		IsRequired:         req.IsRequired,
	}, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.SaveSchool(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save school", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSchoolDTO(updated))
}

func (h *Handler) ApplyPolicyPreset(w http.ResponseWriter, r *http.Request) {
	school, ok := h.loadSchool(w, r)
	if !ok {
		return
	}

	var req ApplyPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entries, err := h.Presets.Entries(req.Preset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown preset", err)
		return
	}

	updated := *school
	now := time.Now()
	for _, entry := range entries {
		updated, err = uniform.AddPolicyEntry(updated, entry, now)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if err := h.Store.SaveSchool(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save school", err)
		return
	}
	writeJSON(w, http.StatusOK, toSchoolDTO(updated))
}

func (h *Handler) RemovePolicy(w http.ResponseWriter, r *http.Request) {
	school, ok := h.loadSchool(w, r)
	if !ok {
		return
	}
	pid := chi.URLParam(r, "pid")

	updated, removed := uniform.RemovePolicyEntry(*school, uniform.PolicyEntry{ID: pid})
	if !removed {
		writeError(w, http.StatusNotFound, "Policy entry not found", nil)
		return
	}
	if err := h.Store.SaveSchool(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save school", err)
		return
	}
	writeJSON(w, http.StatusOK, toSchoolDTO(updated))
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	id := uniform.SchoolID(chi.URLParam(r, "id"))

	students, err := h.Roster.Students(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddStudent(w http.ResponseWriter, r *http.Request) {
	id := uniform.SchoolID(chi.URLParam(r, "id"))

	var req AddStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	student, err := h.Roster.AddStudent(r.Context(), id, req.Name, req.Form, req.Level, req.Gender)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(*student))
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	schoolID := uniform.SchoolID(chi.URLParam(r, "id"))
	studentID := uniform.StudentID(chi.URLParam(r, "sid"))

	if err := h.Roster.DeleteStudent(r.Context(), schoolID, studentID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ISSUING HANDLERS
// =============================================================================

func (h *Handler) LogUniform(w http.ResponseWriter, r *http.Request) {
	studentID := uniform.StudentID(chi.URLParam(r, "id"))

	var req LogUniformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Issuer.LogReceived(r.Context(), uniform.IssueInput{
		StudentID: studentID,
		Uniform: uniform.UniformRef{
			ID:   uniform.UniformID(req.UniformID),
			Name: req.UniformName,
			Type: req.UniformType,
		},
		Quantity:        req.Quantity,
		Size:            req.Size,
		SizeUnavailable: req.SizeUnavailable,
		SizeWanted:      req.SizeWanted,
		Actor:           req.Actor,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLogEntryDTO(entry))
}

func (h *Handler) AddDistribution(w http.ResponseWriter, r *http.Request) {
	studentID := uniform.StudentID(chi.URLParam(r, "id"))

	var req AddDistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	student, err := h.Store.Student(r.Context(), studentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	key := uniform.DistributionKey(req.Gender, req.RequirementIndex)
	dist, err := uniform.AddDistribution(student.UniformDistribution, key, uniform.DistributionLine{
		Size:       req.Size,
		Quantity:   req.Quantity,
		ReceivedAt: time.Now(),
		IssuedBy:   req.IssuedBy,
		IssuedByID: req.IssuedByID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.SaveDistributions(r.Context(), studentID, dist); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save distributions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":           key,
		"totalReceived": dist[key].TotalReceived,
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetSchoolReport prefers the stored snapshot; when none exists it computes
// live against current policy and roster, without writing anything back.
func (h *Handler) GetSchoolReport(w http.ResponseWriter, r *http.Request) {
	school, ok := h.loadSchool(w, r)
	if !ok {
		return
	}

	stored, err := h.Reporter.SchoolReport(r.Context(), school.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read report", err)
		return
	}
	if stored != nil {
		writeJSON(w, http.StatusOK, toSchoolReportDTO(*stored, false))
		return
	}

	students, err := h.Roster.Students(r.Context(), school.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load roster", err)
		return
	}
	live := uniform.SchoolReport{
		SchoolID:    school.ID,
		SchoolName:  school.Name,
		Summary:     uniform.ComputeDeficits(school.UniformPolicy, students),
		GeneratedAt: time.Now(),
	}
	writeJSON(w, http.StatusOK, toSchoolReportDTO(live, true))
}

func (h *Handler) RefreshSchoolReport(w http.ResponseWriter, r *http.Request) {
	school, ok := h.loadSchool(w, r)
	if !ok {
		return
	}

	students, err := h.Roster.Students(r.Context(), school.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load roster", err)
		return
	}

	set, err := h.Reporter.Refresh(r.Context(), school.ID, school.Name, school.UniformPolicy, students)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh report", err)
		return
	}
	writeJSON(w, http.StatusOK, toSchoolReportDTO(set.School, false))
}

func (h *Handler) GetStudentReport(w http.ResponseWriter, r *http.Request) {
	schoolID := uniform.SchoolID(chi.URLParam(r, "id"))
	studentID := uniform.StudentID(chi.URLParam(r, "sid"))

	stored, err := h.Reporter.StudentReport(r.Context(), schoolID, studentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read report", err)
		return
	}
	if stored != nil {
		writeJSON(w, http.StatusOK, toStudentReportDTO(*stored, false))
		return
	}

	// Live fallback.
	school, err := h.Store.School(r.Context(), schoolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	student, err := h.Store.Student(r.Context(), studentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	live := uniform.ComputeStudentReport(school.UniformPolicy, *student)
	live.GeneratedAt = time.Now()
	writeJSON(w, http.StatusOK, toStudentReportDTO(live, true))
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Store.Batches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batches", err)
		return
	}

	dtos := make([]BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ReceiveBatch(w http.ResponseWriter, r *http.Request) {
	var req ReceiveBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UniformID == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "uniformId and items are required", nil)
		return
	}

	batch := uniform.Batch{
		ID:         uniform.BatchID(uuid.NewString()),
		UniformID:  uniform.UniformID(req.UniformID),
		Reference:  req.Reference,
		ReceivedAt: time.Now(),
	}
	for _, v := range req.Items {
		price, err := decimal.NewFromString(v.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid price", err)
			return
		}
		variant := uniform.Variant{VariantType: v.VariantType, Color: v.Color, Price: price}
		for _, s := range v.Sizes {
			if s.Quantity < 0 {
				writeError(w, http.StatusBadRequest, "Quantity must not be negative", nil)
				return
			}
			variant.Sizes = append(variant.Sizes, uniform.SizeStock{Size: s.Size, Quantity: s.Quantity})
		}
		batch.Items = append(batch.Items, variant)
	}

	if err := h.Store.SaveBatch(r.Context(), batch); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save batch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// CheckStock answers ?uniformId=...&size=...&quantity=N. Advisory only: the
// issue path re-checks inside its transaction.
func (h *Handler) CheckStock(w http.ResponseWriter, r *http.Request) {
	uniformID := uniform.UniformID(r.URL.Query().Get("uniformId"))
	size := r.URL.Query().Get("size")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if uniformID == "" || size == "" || err != nil {
		writeError(w, http.StatusBadRequest, "uniformId, size and quantity are required", err)
		return
	}

	check, err := h.Ledger.CheckStock(r.Context(), uniformID, size, quantity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check stock", err)
		return
	}
	writeJSON(w, http.StatusOK, StockCheckDTO{
		Available:    check.Available,
		CurrentStock: check.CurrentStock,
		BatchID:      string(check.BatchID),
	})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func (h *Handler) loadSchool(w http.ResponseWriter, r *http.Request) (*uniform.School, bool) {
	id := uniform.SchoolID(chi.URLParam(r, "id"))
	school, err := h.Store.School(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return school, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps typed domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, uniform.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case uniform.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, uniform.ErrInsufficientStock):
		var stockErr *uniform.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":        "Insufficient stock",
				"currentStock": stockErr.CurrentStock,
				"requested":    stockErr.Requested,
			})
			return
		}
		writeError(w, http.StatusConflict, "Insufficient stock", err)
	case errors.Is(err, uniform.ErrTransactionConflict):
		writeError(w, http.StatusConflict, "Concurrent modification, retry", err)
	case errors.Is(err, uniform.ErrDualWrite):
		writeError(w, http.StatusInternalServerError, "Roster dual-write inconsistency", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
