package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	regulationdomain "github.com/smallbiznis/residence/internal/regulation/domain"
	"github.com/smallbiznis/residence/pkg/db/pagination"
)

type createRegulationRequest struct {
	Version  string `json:"version"`
	FileRef  string `json:"file_ref"`
	IsActive bool   `json:"is_active"`
}

func (s *Server) CreateRegulation(c *gin.Context) {
	residenceID, err := pathID(c, "residenceId", "invalid_residence")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createRegulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.regulationSvc.Create(c.Request.Context(), regulationdomain.CreateRequest{
		ResidenceID: residenceID,
		Version:     strings.TrimSpace(req.Version),
		FileRef:     strings.TrimSpace(req.FileRef),
		IsActive:    req.IsActive,
		ActorID:     actorIDFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListRegulations(c *gin.Context) {
	residenceID, err := pathID(c, "residenceId", "invalid_residence")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.regulationSvc.List(c.Request.Context(), regulationdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		ResidenceID: residenceID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Regulations, "page_info": resp.PageInfo})
}

func (s *Server) ActivateRegulation(c *gin.Context) {
	regulationID, err := pathID(c, "id", "invalid_regulation")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.regulationSvc.SetActive(c.Request.Context(), regulationID, actorIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
