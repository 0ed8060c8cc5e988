package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	consumptiondomain "github.com/smallbiznis/residence/internal/consumption/domain"
	notificationdomain "github.com/smallbiznis/residence/internal/notification/domain"
	"github.com/smallbiznis/residence/pkg/db/pagination"
)

type createConsumptionRecordRequest struct {
	ResidenceID    string  `json:"residence_id"`
	RoomNumber     string  `json:"room_number"`
	BillingMonth   int     `json:"billing_month"`
	BillingYear    int     `json:"billing_year"`
	ConsumptionKwh float64 `json:"consumption_kwh"`
	ContractID     string  `json:"contract_id"`
}

type notifyConsumptionRecordRequest struct {
	PreviousAttempts int `json:"previous_attempts"`
}

func (s *Server) CreateConsumptionRecord(c *gin.Context) {
	var req createConsumptionRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	residenceID, err := parseOptionalSnowflakeID(req.ResidenceID)
	if err != nil || residenceID == nil {
		AbortWithError(c, consumptiondomain.ErrInvalidResidence)
		return
	}
	contractID, err := parseOptionalSnowflakeID(req.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_contract_id", "invalid contract_id"))
		return
	}

	resp, err := s.consumptionSvc.Create(c.Request.Context(), consumptiondomain.CreateRequest{
		Reading: consumptiondomain.Reading{
			ResidenceID:    *residenceID,
			RoomNumber:     strings.TrimSpace(req.RoomNumber),
			BillingMonth:   req.BillingMonth,
			BillingYear:    req.BillingYear,
			ConsumptionKwh: req.ConsumptionKwh,
		},
		ContractID: contractID,
		ActorID:    actorIDFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListConsumptionRecords(c *gin.Context) {
	residenceID, err := pathID(c, "residenceId", "invalid_residence")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		pagination.Pagination
		Period      string `form:"period"`
		ExceedsOnly string `form:"exceeds_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	exceedsOnly, err := parseOptionalBool(query.ExceedsOnly)
	if err != nil {
		AbortWithError(c, newValidationError("exceeds_only", "invalid_exceeds_only", "invalid exceeds_only"))
		return
	}

	resp, err := s.consumptionSvc.List(c.Request.Context(), consumptiondomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		ResidenceID:      residenceID,
		BillingPeriodKey: strings.TrimSpace(query.Period),
		ExceedsOnly:      exceedsOnly != nil && *exceedsOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}

// NotifyConsumptionRecord emails the student about a record. A delivery
// failure is reported in the body with 502 so the caller can retry.
func (s *Server) NotifyConsumptionRecord(c *gin.Context) {
	recordID, err := pathID(c, "id", "invalid_record")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req notifyConsumptionRecordRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.notifySvc.Send(c.Request.Context(), notificationdomain.SendRequest{
		RecordID:         recordID,
		ActorID:          actorIDFromContext(c),
		PreviousAttempts: req.PreviousAttempts,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if resp.State == notificationdomain.StateFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"data": resp})
}
