/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Transport-level checks (body decodes, ids present) happen in handlers;
  domain validation lives in the uniform package and surfaces as typed
  errors mapped to status codes in errors.go-aware handlers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/kitroom/uniform-engine/uniform"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHOOL / POLICY
// =============================================================================

type SchoolDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	Policy    []PolicyEntryDTO `json:"uniformPolicy"`
	Roster    []RosterEntryDTO `json:"roster"`
	CreatedAt string           `json:"createdAt"`
}

type PolicyEntryDTO struct {
	ID                 string `json:"id"`
	UniformID          string `json:"uniformId"`
	UniformName        string `json:"uniformName"`
	UniformType        string `json:"uniformType"`
	Level              string `json:"level"`
	Gender             string `json:"gender"`
	QuantityPerStudent int    `json:"quantityPerStudent"`
	IsRequired         bool   `json:"isRequired"`
	CreatedAt          string `json:"createdAt"`
}

type RosterEntryDTO struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Form      string `json:"form"`
	Level     string `json:"level"`
	Gender    string `json:"gender"`
}

type CreateSchoolRequest struct {
	Name string `json:"name"`
}

type AddPolicyRequest struct {
	UniformID          string `json:"uniformId"`
	UniformName        string `json:"uniformName"`
	UniformType        string `json:"uniformType"`
	Level              string `json:"level"`
	Gender             string `json:"gender"`
	QuantityPerStudent int    `json:"quantityPerStudent"`
	IsRequired         bool   `json:"isRequired"`
}

type ApplyPresetRequest struct {
	Preset string `json:"preset"`
}

// =============================================================================
// STUDENTS
// =============================================================================

type StudentDTO struct {
	ID        string        `json:"id"`
	SchoolID  string        `json:"schoolId"`
	Name      string        `json:"name"`
	Form      string        `json:"form"`
	Level     string        `json:"level"`
	Gender    string        `json:"gender"`
	Log       []LogEntryDTO `json:"uniformLog"`
	CreatedAt string        `json:"createdAt"`
}

type LogEntryDTO struct {
	ID               string `json:"id"`
	UniformID        string `json:"uniformId"`
	UniformName      string `json:"uniformName"`
	UniformType      string `json:"uniformType"`
	QuantityReceived int    `json:"quantityReceived"`
	SizeReceived     string `json:"sizeReceived,omitempty"`
	SizeWanted       string `json:"sizeWanted,omitempty"`
	LoggedAt         string `json:"loggedAt"`
	LoggedBy         string `json:"loggedBy"`
}

type AddStudentRequest struct {
	Name   string `json:"name"`
	Form   string `json:"form"`
	Level  string `json:"level"`
	Gender string `json:"gender"`
}

type LogUniformRequest struct {
	UniformID       string `json:"uniformId"`
	UniformName     string `json:"uniformName"`
	UniformType     string `json:"uniformType"`
	Quantity        int    `json:"quantity"`
	Size            string `json:"size"`
	SizeUnavailable bool   `json:"sizeUnavailable"`
	SizeWanted      string `json:"sizeWanted"`
	Actor           string `json:"actor"`
}

type AddDistributionRequest struct {
	Gender           string `json:"gender"`
	RequirementIndex int    `json:"requirementIndex"`
	Size             string `json:"size"`
	Quantity         int    `json:"quantity"`
	IssuedBy         string `json:"issuedBy"`
	IssuedByID       string `json:"issuedById"`
}

// =============================================================================
// STOCK
// =============================================================================

type BatchDTO struct {
	ID         string       `json:"id"`
	UniformID  string       `json:"uniformId"`
	Reference  string       `json:"reference"`
	Items      []VariantDTO `json:"items"`
	ReceivedAt string       `json:"receivedAt"`
	TotalValue string       `json:"totalValue"`
}

type VariantDTO struct {
	VariantType string         `json:"variantType"`
	Color       string         `json:"color"`
	Price       string         `json:"price"`
	Sizes       []SizeStockDTO `json:"sizes"`
}

type SizeStockDTO struct {
	Size       string `json:"size"`
	Quantity   int    `json:"quantity"`
	DepletedAt string `json:"depletedAt,omitempty"`
}

type ReceiveBatchRequest struct {
	UniformID string       `json:"uniformId"`
	Reference string       `json:"reference"`
	Items     []VariantDTO `json:"items"`
}

type StockCheckDTO struct {
	Available    bool   `json:"available"`
	CurrentStock int    `json:"currentStock"`
	BatchID      string `json:"batchId,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

type SchoolReportDTO struct {
	SchoolID            string              `json:"schoolId"`
	SchoolName          string              `json:"schoolName"`
	UniformDeficits     []UniformDeficitDTO `json:"uniformDeficits"`
	SizeRequests        []SizeRequestDTO    `json:"sizeRequests"`
	TotalStudents       int                 `json:"totalStudents"`
	StudentsWithDeficit int                 `json:"studentsWithDeficits"`
	GeneratedAt         string              `json:"generatedAt"`
	Live                bool                `json:"live"` // true when computed on read, not from a stored snapshot
}

type UniformDeficitDTO struct {
	UniformID        string              `json:"uniformId"`
	UniformName      string              `json:"uniformName"`
	Level            string              `json:"level"`
	Gender           string              `json:"gender"`
	TotalDeficit     int                 `json:"totalDeficit"`
	StudentsAffected []StudentDeficitDTO `json:"studentsAffected"`
}

type StudentDeficitDTO struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Deficit     int    `json:"deficit"`
}

type SizeRequestDTO struct {
	UniformID   string             `json:"uniformId"`
	UniformName string             `json:"uniformName"`
	Size        string             `json:"size"`
	Students    []SizeRequesterDTO `json:"students"`
}

type SizeRequesterDTO struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	RequestedAt string `json:"requestedAt"`
}

type StudentReportDTO struct {
	SchoolID     string             `json:"schoolId"`
	StudentID    string             `json:"studentId"`
	StudentName  string             `json:"studentName"`
	TotalDeficit int                `json:"totalDeficit"`
	Details      []DeficitDetailDTO `json:"deficitDetails"`
	GeneratedAt  string             `json:"generatedAt"`
	Live         bool               `json:"live"`
}

type DeficitDetailDTO struct {
	UniformID   string `json:"uniformId"`
	UniformName string `json:"uniformName"`
	Required    int    `json:"required"`
	Received    int    `json:"received"`
	Deficit     int    `json:"deficit"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSchoolDTO(s uniform.School) SchoolDTO {
	dto := SchoolDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		Status:    string(s.Status),
		Policy:    []PolicyEntryDTO{},
		Roster:    []RosterEntryDTO{},
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	for _, p := range s.UniformPolicy {
		dto.Policy = append(dto.Policy, PolicyEntryDTO{
			ID:                 p.ID,
			UniformID:          string(p.UniformID),
			UniformName:        p.UniformName,
			UniformType:        p.UniformType,
			Level:              p.Level,
			Gender:             p.Gender,
			QuantityPerStudent: p.QuantityPerStudent,
			IsRequired:         p.IsRequired,
			CreatedAt:          p.CreatedAt.Format(time.RFC3339),
		})
	}
	for _, r := range s.Roster {
		dto.Roster = append(dto.Roster, RosterEntryDTO{
			StudentID: string(r.StudentID),
			Name:      r.Name,
			Form:      r.Form,
			Level:     r.Level,
			Gender:    r.Gender,
		})
	}
	return dto
}

func toStudentDTO(s uniform.Student) StudentDTO {
	dto := StudentDTO{
		ID:        string(s.ID),
		SchoolID:  string(s.SchoolID),
		Name:      s.Name,
		Form:      s.Form,
		Level:     s.Level,
		Gender:    s.Gender,
		Log:       []LogEntryDTO{},
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	for _, e := range s.UniformLog {
		dto.Log = append(dto.Log, toLogEntryDTO(e))
	}
	return dto
}

func toLogEntryDTO(e uniform.LogEntry) LogEntryDTO {
	return LogEntryDTO{
		ID:               e.ID,
		UniformID:        string(e.UniformID),
		UniformName:      e.UniformName,
		UniformType:      e.UniformType,
		QuantityReceived: e.QuantityReceived,
		SizeReceived:     e.SizeReceived,
		SizeWanted:       e.SizeWanted,
		LoggedAt:         e.LoggedAt.Format(time.RFC3339),
		LoggedBy:         e.LoggedBy,
	}
}

func toBatchDTO(b uniform.Batch) BatchDTO {
	dto := BatchDTO{
		ID:         string(b.ID),
		UniformID:  string(b.UniformID),
		Reference:  b.Reference,
		Items:      []VariantDTO{},
		ReceivedAt: b.ReceivedAt.Format(time.RFC3339),
	}
	for _, v := range b.Items {
		vd := VariantDTO{
			VariantType: v.VariantType,
			Color:       v.Color,
			Price:       v.Price.StringFixed(2),
			Sizes:       []SizeStockDTO{},
		}
		for _, s := range v.Sizes {
			sd := SizeStockDTO{Size: s.Size, Quantity: s.Quantity}
			if s.DepletedAt != nil {
				sd.DepletedAt = s.DepletedAt.Format(time.RFC3339)
			}
			vd.Sizes = append(vd.Sizes, sd)
		}
		dto.Items = append(dto.Items, vd)
	}
	dto.TotalValue = batchValue(b).StringFixed(2)
	return dto
}

// batchValue is the monetary value of the batch's remaining stock.
func batchValue(b uniform.Batch) decimal.Decimal {
	total := decimal.Zero
	for _, v := range b.Items {
		total = total.Add(v.Value())
	}
	return total
}

func toSummaryDTOs(summary uniform.Summary) ([]UniformDeficitDTO, []SizeRequestDTO) {
	deficits := []UniformDeficitDTO{}
	for _, d := range summary.UniformDeficits {
		dd := UniformDeficitDTO{
			UniformID:        string(d.UniformID),
			UniformName:      d.UniformName,
			Level:            d.Level,
			Gender:           d.Gender,
			TotalDeficit:     d.TotalDeficit,
			StudentsAffected: []StudentDeficitDTO{},
		}
		for _, sa := range d.StudentsAffected {
			dd.StudentsAffected = append(dd.StudentsAffected, StudentDeficitDTO{
				StudentID:   string(sa.StudentID),
				StudentName: sa.StudentName,
				Deficit:     sa.Deficit,
			})
		}
		deficits = append(deficits, dd)
	}

	requests := []SizeRequestDTO{}
	for _, r := range summary.SizeRequests {
		rd := SizeRequestDTO{
			UniformID:   string(r.UniformID),
			UniformName: r.UniformName,
			Size:        r.Size,
			Students:    []SizeRequesterDTO{},
		}
		for _, st := range r.Students {
			rd.Students = append(rd.Students, SizeRequesterDTO{
				StudentID:   string(st.StudentID),
				StudentName: st.StudentName,
				RequestedAt: st.RequestedAt.Format(time.RFC3339),
			})
		}
		requests = append(requests, rd)
	}
	return deficits, requests
}

func toSchoolReportDTO(r uniform.SchoolReport, live bool) SchoolReportDTO {
	deficits, requests := toSummaryDTOs(r.Summary)
	return SchoolReportDTO{
		SchoolID:            string(r.SchoolID),
		SchoolName:          r.SchoolName,
		UniformDeficits:     deficits,
		SizeRequests:        requests,
		TotalStudents:       r.TotalStudents,
		StudentsWithDeficit: r.StudentsWithDeficit,
		GeneratedAt:         r.GeneratedAt.Format(time.RFC3339),
		Live:                live,
	}
}

func toStudentReportDTO(r uniform.StudentReport, live bool) StudentReportDTO {
	dto := StudentReportDTO{
		SchoolID:     string(r.SchoolID),
		StudentID:    string(r.StudentID),
		StudentName:  r.StudentName,
		TotalDeficit: r.TotalDeficit,
		Details:      []DeficitDetailDTO{},
		GeneratedAt:  r.GeneratedAt.Format(time.RFC3339),
		Live:         live,
	}
	for _, d := range r.Details {
		dto.Details = append(dto.Details, DeficitDetailDTO{
			UniformID:   string(d.UniformID),
			UniformName: d.UniformName,
			Required:    d.Required,
			Received:    d.Received,
			Deficit:     d.Deficit,
		})
	}
	return dto
}
