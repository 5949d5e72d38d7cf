// Package api はジョブの投入と状態取得を行う HTTP ハンドラーを提供します。
//
//	GET /?concurrency=C&sort=URL  → {"jobid": ID}
//	GET /?get=ID                  → 結果ファイル、または {"state": ..., "data": ...}
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/sort-forge/internal/apperr"
	"github.com/yourusername/sort-forge/internal/jobs"
)

// NotFoundState は未知のジョブIDに返す状態トークンです。
const NotFoundState = "eexist"

// JobService はハンドラーが利用するジョブ操作です。
type JobService interface {
	Submit(ctx context.Context, concurrency, rawURL string) (string, error)
	Status(ctx context.Context, jobID string) (jobs.Status, error)
}

type statusResponse struct {
	State string `json:"state"`
	Data  any    `json:"data"`
}

type submitResponse struct {
	JobID string `json:"jobid"`
}

// Handler はクエリ文字列で操作を切り替える API ハンドラーです。
type Handler struct {
	jobs   JobService
	logger *slog.Logger
}

// NewHandler は Handler を作成します。
func NewHandler(svc JobService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{jobs: svc, logger: logger}
}

// Register はルートにハンドラーを登録します。
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
}

// Root は GET / のハンドラーです。空の値を持つパラメータは指定なしとして扱います。
func (h *Handler) Root(c *gin.Context) {
	concurrency, hasConcurrency := queryValue(c, "concurrency")
	sortURL, hasSort := queryValue(c, "sort")
	if hasConcurrency && hasSort {
		h.submit(c, concurrency, sortURL)
		return
	}
	if jobID, ok := queryValue(c, "get"); ok {
		h.status(c, jobID)
		return
	}
	c.Status(http.StatusBadRequest)
}

func (h *Handler) submit(c *gin.Context, concurrency, sortURL string) {
	jobID, err := h.jobs.Submit(c.Request.Context(), concurrency, sortURL)
	if err != nil {
		h.logger.Error("failed to submit job", "err", err)
		c.JSON(http.StatusInternalServerError, statusResponse{State: string(jobs.StateFailed), Data: apperr.UnexpectedMessage})
		return
	}
	c.JSON(http.StatusOK, submitResponse{JobID: jobID})
}

func (h *Handler) status(c *gin.Context, jobID string) {
	status, err := h.jobs.Status(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, statusResponse{State: NotFoundState, Data: nil})
			return
		}
		h.logger.Error("failed to read job status", "job_id", jobID, "err", err)
		c.JSON(http.StatusInternalServerError, statusResponse{State: string(jobs.StateFailed), Data: apperr.UnexpectedMessage})
		return
	}

	if ready, ok := status.(jobs.Ready); ok {
		h.serveResult(c, jobID, ready)
		return
	}
	c.JSON(http.StatusOK, statusResponse{State: string(status.State()), Data: jobs.Data(status)})
}

// serveResult は結果ファイルをそのまま返します。
func (h *Handler) serveResult(c *gin.Context, jobID string, ready jobs.Ready) {
	etag := ""
	if ready.Checksum != "" {
		etag = `"` + ready.Checksum + `"`
		if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, etag) {
			c.Header("ETag", etag)
			c.Status(http.StatusNotModified)
			return
		}
	}

	file, err := os.Open(ready.Path)
	if err != nil {
		h.logger.Error("failed to open job result", "job_id", jobID, "path", ready.Path, "err", err)
		c.JSON(http.StatusInternalServerError, statusResponse{State: string(jobs.StateFailed), Data: apperr.UnexpectedMessage})
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		h.logger.Error("failed to stat job result", "job_id", jobID, "err", err)
		c.JSON(http.StatusInternalServerError, statusResponse{State: string(jobs.StateFailed), Data: apperr.UnexpectedMessage})
		return
	}

	headers := map[string]string{"X-Job-Id": jobID}
	if etag != "" {
		headers["ETag"] = etag
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/json", file, headers)
}

func queryValue(c *gin.Context, key string) (string, bool) {
	value := c.Query(key)
	return value, value != ""
}

func etagMatches(header, etag string) bool {
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
