package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/models"
	"github.com/hypecast/kolport/internal/service"
)

func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindValidation:
		status = http.StatusUnprocessableEntity
	default:
		s.Logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	body := gin.H{"code": service.CodeOf(err)}
	if status != http.StatusInternalServerError {
		body["message"] = err.Error()
	} else {
		body["message"] = "internal error"
	}
	c.JSON(status, gin.H{"error": body})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{
			"code":    service.CodeMissingField,
			"message": "invalid id",
		}})
		return 0, false
	}
	return uint(id), true
}

type joinJobRequest struct {
	KolID      uint                 `json:"kol_id" binding:"required"`
	TimeSlotID uint                 `json:"time_slot_id" binding:"required"`
	Answers    []service.JoinAnswer `json:"answers"`
}

func (s *Server) handleJoinJob(c *gin.Context) {
	inviteID, ok := pathID(c)
	if !ok {
		return
	}
	var req joinJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	kolJob, err := s.InviteService.JoinJob(c.Request.Context(), req.KolID, inviteID, service.JoinJobInput{
		TimeSlotID: req.TimeSlotID,
		Answers:    req.Answers,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kol_job": kolJob})
}

type rejectRequest struct {
	CauserID uint   `json:"causer_id" binding:"required"`
	Reason   string `json:"reason"`
}

func (s *Server) handleRejectInvite(c *gin.Context) {
	inviteID, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	invite, err := s.InviteService.RejectInvite(c.Request.Context(), req.CauserID, inviteID, req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invite": invite})
}

type submitPostRequest struct {
	KolID           uint   `json:"kol_id" binding:"required"`
	Content         string `json:"content"`
	Link            string `json:"link"`
	ExternalPostID  string `json:"external_post_id"`
	AttachmentCount int    `json:"attachment_count"`
}

func (s *Server) handleSubmitPost(c *gin.Context) {
	kolJobID, ok := pathID(c)
	if !ok {
		return
	}
	var req submitPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	kolJob, err := s.KolJobService.SubmitPost(c.Request.Context(), kolJobID, req.KolID, service.SubmitPostInput{
		Content:         req.Content,
		Link:            req.Link,
		ExternalPostID:  req.ExternalPostID,
		AttachmentCount: req.AttachmentCount,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kol_job": kolJob})
}

type causerRequest struct {
	CauserID uint `json:"causer_id" binding:"required"`
}

func (s *Server) handleAcceptPost(c *gin.Context) {
	kolJobID, ok := pathID(c)
	if !ok {
		return
	}
	var req causerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	kolJob, err := s.KolJobService.AcceptPost(c.Request.Context(), kolJobID, req.CauserID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kol_job": kolJob})
}

func (s *Server) handleRejectPost(c *gin.Context) {
	kolJobID, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	kolJob, err := s.KolJobService.RejectPost(c.Request.Context(), kolJobID, req.CauserID, req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kol_job": kolJob})
}

type createPaymentRequest struct {
	KolID uint `json:"kol_id" binding:"required"`
}

func (s *Server) handleCreatePaymentRequest(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	request, err := s.PaymentService.CreateRequestPayment(c.Request.Context(), req.KolID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment_request": request})
}

func (s *Server) handleAcceptPaymentRequest(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	var req causerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	request, err := s.PaymentService.AcceptRequest(c.Request.Context(), req.CauserID, requestID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment_request": request})
}

func (s *Server) handleRejectPaymentRequest(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, service.ValidationError(err.Error()))
		return
	}

	request, err := s.PaymentService.RejectRequest(c.Request.Context(), req.CauserID, requestID, req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment_request": request})
}

func (s *Server) handleGetKol(c *gin.Context) {
	kolID, ok := pathID(c)
	if !ok {
		return
	}

	var kol models.Kol
	if err := s.DB.WithContext(c.Request.Context()).First(&kol, kolID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.respondError(c, service.NotFoundError(service.CodeKolNotFound, "kol not found"))
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kol": kol})
}
