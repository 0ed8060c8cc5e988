package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	compliancedomain "github.com/smallbiznis/residence/internal/compliance/domain"
)

func (s *Server) GetComplianceStatus(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	residenceID, err := parseOptionalSnowflakeID(c.Query("residence_id"))
	if err != nil || residenceID == nil {
		AbortWithError(c, compliancedomain.ErrInvalidResidence)
		return
	}

	status, err := s.complianceSvc.Check(c.Request.Context(), studentID, *residenceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if status == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"has_active_regulation": false}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"has_active_regulation": true,
		"regulation":            status.Regulation,
		"document_url":          status.DocumentURL,
		"has_accepted":          status.HasAccepted,
	}})
}

func (s *Server) AcceptRegulation(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	regulationID, err := pathID(c, "id", "invalid_regulation")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.complianceSvc.Accept(c.Request.Context(), compliancedomain.AcceptRequest{
		StudentID:    studentID,
		RegulationID: regulationID,
		ClientIP:     c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAcceptances(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.acceptanceSvc.History(c.Request.Context(), studentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadCertificate(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	regulationID, err := pathID(c, "id", "invalid_regulation")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.complianceSvc.Certificate(c.Request.Context(), compliancedomain.CertificateRequest{
		StudentID:    studentID,
		StudentName:  strings.TrimSpace(c.Query("student_name")),
		RegulationID: regulationID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("acceptance-%s.pdf", regulationID.String())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", body)
}
