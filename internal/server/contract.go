package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	contractdomain "github.com/smallbiznis/residence/internal/contract/domain"
	"github.com/smallbiznis/residence/pkg/db/pagination"
)

type createContractRequest struct {
	StudentID       string  `json:"student_id"`
	StudentName     string  `json:"student_name"`
	StudentEmail    string  `json:"student_email"`
	ResidenceID     string  `json:"residence_id"`
	ResidenceName   string  `json:"residence_name"`
	RoomNumber      string  `json:"room_number"`
	RoomTypeID      string  `json:"room_type_id"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	MonthlyValue    float64 `json:"monthly_value"`
	MonthlyKwhLimit float64 `json:"monthly_kwh_limit"`
}

type updateContractRequest struct {
	StudentName     *string  `json:"student_name,omitempty"`
	StudentEmail    *string  `json:"student_email,omitempty"`
	RoomNumber      *string  `json:"room_number,omitempty"`
	RoomTypeID      *string  `json:"room_type_id,omitempty"`
	StartDate       *string  `json:"start_date,omitempty"`
	EndDate         *string  `json:"end_date,omitempty"`
	MonthlyValue    *float64 `json:"monthly_value,omitempty"`
	MonthlyKwhLimit *float64 `json:"monthly_kwh_limit,omitempty"`
}

type terminateContractRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentID, err := parseOptionalSnowflakeID(req.StudentID)
	if err != nil || studentID == nil {
		AbortWithError(c, contractdomain.ErrInvalidStudent)
		return
	}
	residenceID, err := parseOptionalSnowflakeID(req.ResidenceID)
	if err != nil || residenceID == nil {
		AbortWithError(c, contractdomain.ErrInvalidResidence)
		return
	}
	roomTypeID, err := parseOptionalSnowflakeID(req.RoomTypeID)
	if err != nil {
		AbortWithError(c, newValidationError("room_type_id", "invalid_room_type_id", "invalid room_type_id"))
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.contractSvc.CreateActive(c.Request.Context(), contractdomain.CreateRequest{
		StudentID:       *studentID,
		StudentName:     strings.TrimSpace(req.StudentName),
		StudentEmail:    strings.TrimSpace(req.StudentEmail),
		ResidenceID:     *residenceID,
		ResidenceName:   strings.TrimSpace(req.ResidenceName),
		RoomNumber:      strings.TrimSpace(req.RoomNumber),
		RoomTypeID:      roomTypeID,
		StartDate:       startDate,
		EndDate:         endDate,
		MonthlyValue:    req.MonthlyValue,
		MonthlyKwhLimit: req.MonthlyKwhLimit,
		ActorID:         actorIDFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetContract(c *gin.Context) {
	contractID, err := pathID(c, "id", "invalid_contract")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.contractSvc.Get(c.Request.Context(), contractID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.contractSvc.Enrich(*resp)})
}

func (s *Server) UpdateContract(c *gin.Context) {
	contractID, err := pathID(c, "id", "invalid_contract")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var roomTypeID *snowflake.ID
	if req.RoomTypeID != nil {
		roomTypeID, err = parseOptionalSnowflakeID(*req.RoomTypeID)
		if err != nil || roomTypeID == nil {
			AbortWithError(c, newValidationError("room_type_id", "invalid_room_type_id", "invalid room_type_id"))
			return
		}
	}
	startDate, err := parseOptionalDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.contractSvc.Update(c.Request.Context(), contractID, contractdomain.UpdateRequest{
		StudentName:     req.StudentName,
		StudentEmail:    req.StudentEmail,
		RoomNumber:      req.RoomNumber,
		RoomTypeID:      roomTypeID,
		StartDate:       startDate,
		EndDate:         endDate,
		MonthlyValue:    req.MonthlyValue,
		MonthlyKwhLimit: req.MonthlyKwhLimit,
		ActorID:         actorIDFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TerminateContract(c *gin.Context) {
	contractID, err := pathID(c, "id", "invalid_contract")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req terminateContractRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.contractSvc.Terminate(c.Request.Context(), contractID, contractdomain.TerminateRequest{
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: actorIDFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContracts(c *gin.Context) {
	residenceID, err := pathID(c, "residenceId", "invalid_residence")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contractSvc.List(c.Request.Context(), contractdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		ResidenceID: residenceID,
		Status:      contractdomain.ContractStatus(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Contracts, "page_info": resp.PageInfo})
}

// studentContractResidence loads the acting student's active contract for
// the handler and returns its residence.
func (s *Server) studentContractResidence(c *gin.Context) (snowflake.ID, error) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		return 0, err
	}
	active, err := s.contractSvc.GetActiveByStudent(c.Request.Context(), studentID)
	if err != nil {
		return 0, err
	}
	if active == nil {
		return 0, contractdomain.ErrNotFound
	}
	c.Set(contextContractKey, active)
	return active.ResidenceID, nil
}

func (s *Server) GetStudentContract(c *gin.Context) {
	value, ok := c.Get(contextContractKey)
	active, _ := value.(*contractdomain.Contract)
	if !ok || active == nil {
		AbortWithError(c, contractdomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.contractSvc.Enrich(*active)})
}
