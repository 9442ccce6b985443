package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
	"github.com/FanzCEO/GirlFanz-sub003/usecase"
)

type IDistributionHandler interface {
	Publish(c *gin.Context)
	Schedule(c *gin.Context)
	CancelScheduled(c *gin.Context)
	DeletePost(c *gin.Context)
	Analytics(c *gin.Context)
	TrendingTags(c *gin.Context)
	BestPostingTimes(c *gin.Context)
	ValidateMedia(c *gin.Context)
	ListRecords(c *gin.Context)
	GetPlatforms(c *gin.Context)
}

type DistributionHandler struct {
	uc        usecase.IDistributionUsecase
	platforms []model.Platform
}

func NewDistributionHandler(uc usecase.IDistributionUsecase, platforms []model.Platform) IDistributionHandler {
	return &DistributionHandler{uc: uc, platforms: platforms}
}

type publishRequest struct {
	Platforms []string             `json:"platforms"`
	Payload   model.ContentPayload `json:"payload"`
}

type scheduleRequest struct {
	Platforms   []string             `json:"platforms"`
	Payload     model.ContentPayload `json:"payload"`
	ScheduledAt time.Time            `json:"scheduled_at"`
}

type validateRequest struct {
	MediaURL  string `json:"media_url"`
	MediaKind string `json:"media_kind"`
}

func (h *DistributionHandler) Publish(c *gin.Context) {
	creatorID := c.GetString("creator_id")
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	targets, ok := parsePlatforms(c, req.Platforms)
	if !ok {
		return
	}
	results, err := h.uc.Publish(c.Request.Context(), creatorID, targets, &req.Payload)
	if err != nil {
		logger.GetLogger().WithField("creator_id", creatorID).WithError(err).Warn("publish request failed")
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *DistributionHandler) Schedule(c *gin.Context) {
	creatorID := c.GetString("creator_id")
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ScheduledAt.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at is required"})
		return
	}
	targets, ok := parsePlatforms(c, req.Platforms)
	if !ok {
		return
	}
	results, err := h.uc.Schedule(c.Request.Context(), creatorID, targets, &req.Payload, req.ScheduledAt)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scheduled_at": req.ScheduledAt.UTC(), "results": results})
}

func (h *DistributionHandler) CancelScheduled(c *gin.Context) {
	scheduleID := c.Param("scheduleId")
	cancelled, err := h.uc.CancelScheduled(c.Request.Context(), c.GetString("creator_id"), scheduleID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusNotFound, gin.H{"error": "scheduled post not found", "schedule_id": scheduleID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true, "schedule_id": scheduleID})
}

func (h *DistributionHandler) DeletePost(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	postID := c.Param("postId")
	deleted, err := h.uc.Delete(c.Request.Context(), c.GetString("creator_id"), p, postID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "platform": p, "post_id": postID})
}

// Analytics accepts optional start and end query params (RFC 3339). Both must
// be given together.
func (h *DistributionHandler) Analytics(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	window, err := parseWindow(c.Query("start"), c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.uc.Analytics(c.Request.Context(), c.GetString("creator_id"), p, c.Param("postId"), window)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *DistributionHandler) TrendingTags(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	tags, err := h.uc.TrendingTags(c.Request.Context(), c.GetString("creator_id"), p)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"platform": p, "tags": tags})
}

func (h *DistributionHandler) BestPostingTimes(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	recs, err := h.uc.BestPostingTimes(c.Request.Context(), c.GetString("creator_id"), p)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []model.PostingTimeRecommendation{}
	}
	c.JSON(http.StatusOK, gin.H{"platform": p, "recommendations": recs})
}

func (h *DistributionHandler) ValidateMedia(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MediaURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media_url is required"})
		return
	}
	v, err := h.uc.ValidateMedia(c.Request.Context(), p, req.MediaURL, model.ParseMediaKind(req.MediaKind))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *DistributionHandler) ListRecords(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	list, err := h.uc.ListRecords(c.Request.Context(), c.GetString("creator_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*model.DistributionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": list})
}

func (h *DistributionHandler) GetPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": h.platforms})
}

func platformParam(c *gin.Context) (model.Platform, bool) {
	p, ok := model.ParsePlatform(c.Param("platform"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported platform: " + c.Param("platform")})
	}
	return p, ok
}

func parsePlatforms(c *gin.Context, names []string) ([]model.Platform, bool) {
	out := make([]model.Platform, 0, len(names))
	for _, n := range names {
		p, ok := model.ParsePlatform(n)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported platform: " + n})
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}

func parseWindow(start, end string) (*model.AnalyticsWindow, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.New("start and end must be given together")
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil, errors.New("start must be RFC 3339")
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return nil, errors.New("end must be RFC 3339")
	}
	if e.Before(s) {
		return nil, errors.New("end must not be before start")
	}
	return &model.AnalyticsWindow{Start: s, End: e}, nil
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, usecase.ErrUnsupportedPlatform),
		errors.Is(err, usecase.ErrNoPlatforms),
		errors.Is(err, usecase.ErrEmptyPayload),
		errors.Is(err, usecase.ErrScheduleInPast):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return platform.HTTPStatus(err)
}
