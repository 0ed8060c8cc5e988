package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/pkg/db/pagination"
)

type listAuditLogsQuery struct {
	PageToken    string `form:"page_token"`
	PageSize     int    `form:"page_size"`
	Action       string `form:"action"`
	RegulationID string `form:"regulation_id"`
	ContractID   string `form:"contract_id"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	residenceID, err := pathID(c, "residenceId", "invalid_residence")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	regulationID, err := parseOptionalSnowflakeID(query.RegulationID)
	if err != nil {
		AbortWithError(c, newValidationError("regulation_id", "invalid_regulation_id", "invalid regulation_id"))
		return
	}
	contractID, err := parseOptionalSnowflakeID(query.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_contract_id", "invalid contract_id"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		ResidenceID:  residenceID,
		RegulationID: regulationID,
		ContractID:   contractID,
		Action:       auditdomain.Action(strings.TrimSpace(query.Action)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
