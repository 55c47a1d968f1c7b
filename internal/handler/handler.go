package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/config"
	"campusattend/internal/live"
	"campusattend/internal/roster"
	"campusattend/internal/scan"
	"campusattend/internal/session"
)

// Handler exposes the attendance-capture API over gin.
type Handler struct {
	cfg       config.App
	sessions  session.Store
	records   *attendance.Service
	admitter  *scan.Admitter
	projector *live.Projector
	roster    roster.Directory
	refresh   auth.RefreshStore
}

// New wires the handler.
func New(cfg config.App, sessions session.Store, records *attendance.Service, admitter *scan.Admitter, projector *live.Projector, dir roster.Directory, refresh auth.RefreshStore) *Handler {
	return &Handler{
		cfg:       cfg,
		sessions:  sessions,
		records:   records,
		admitter:  admitter,
		projector: projector,
		roster:    dir,
		refresh:   refresh,
	}
}

// Register mounts all routes under /v1.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/auth/token", h.IssueToken)
	r.POST("/v1/auth/refresh", h.RefreshToken)

	faculty := r.Group("/v1", auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, auth.RoleFaculty))
	faculty.POST("/sessions", h.OpenSession)
	faculty.GET("/sessions/active", h.ActiveSession)
	faculty.DELETE("/sessions/:token", h.CloseSession)
	faculty.GET("/attendance", h.AttendanceSnapshot)
	faculty.POST("/attendance", h.SaveAttendance)

	student := r.Group("/v1", auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, auth.RoleStudent))
	student.POST("/scans", h.SubmitScan)
}

// IssueToken mints a JWT for a subject/role pair. Identity verification
// lives in the campus auth service; this endpoint stands in for it in
// standalone deployments.
func (h *Handler) IssueToken(c *gin.Context) {
	var req struct {
		Subject string `json:"subject" binding:"required"`
		Role    string `json:"role" binding:"required,oneof=faculty student"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := auth.Issue(req.Subject, req.Role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if err := h.refresh.Save(c.Request.Context(), req.Subject, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// RefreshToken redeems a refresh token for a fresh pair. Tokens rotate:
// the presented one is revoked before the new pair is issued, so a
// leaked refresh token is good for at most one redemption.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := auth.Parse(req.RefreshToken, h.cfg.JWTSigningKey, h.cfg.JWTIssuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	ctx := c.Request.Context()
	stored, err := h.refresh.Lookup(ctx, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stored == nil || stored.Revoked || time.Now().After(stored.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token revoked or expired"})
		return
	}

	if err := h.refresh.Revoke(ctx, req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	tokens, err := auth.Issue(claims.Subject, claims.Role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if err := h.refresh.Save(ctx, claims.Subject, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// OpenSession opens a QR session for a course, or returns the one already
// running. Reopening is idempotent so a reloaded faculty panel restores
// its session instead of erroring.
func (h *Handler) OpenSession(c *gin.Context) {
	var req struct {
		CourseID string `json:"course_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := auth.ClaimsFrom(c)
	course, err := h.roster.Course(c.Request.Context(), req.CourseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if course == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
		return
	}
	teaches, err := h.roster.Teaches(c.Request.Context(), req.CourseID, claims.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !teaches {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the course instructor"})
		return
	}

	sess, reused, err := h.sessions.Open(c.Request.Context(), req.CourseID, h.cfg.SessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	count, err := h.sessions.ScanCount(c.Request.Context(), sess.Token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"token":         sess.Token,
		"expires_at":    sess.ExpiresAt,
		"scanned_count": count,
		"course_name":   course.Name,
		"reused":        reused,
	})
}

// ActiveSession is the poll target for the faculty session panel.
func (h *Handler) ActiveSession(c *gin.Context) {
	courseID := c.Query("course_id")
	if courseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "course_id required"})
		return
	}
	proj, err := h.projector.Get(c.Request.Context(), courseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proj)
}

// CloseSession ends a session early. Idempotent.
func (h *Handler) CloseSession(c *gin.Context) {
	token := c.Param("token")
	ctx := c.Request.Context()

	sess, err := h.sessions.ByToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess != nil {
		claims := auth.ClaimsFrom(c)
		teaches, err := h.roster.Teaches(ctx, sess.CourseID, claims.Subject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !teaches {
			c.JSON(http.StatusForbidden, gin.H{"error": "not the course instructor"})
			return
		}
	}

	if err := h.sessions.Close(ctx, token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	count, err := h.sessions.ScanCount(ctx, token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true, "scanned_count": count})
}

// SubmitScan admits a student's scan. The student id comes from the
// bearer token, never the request body.
func (h *Handler) SubmitScan(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := auth.ClaimsFrom(c)
	res, err := h.admitter.Submit(c.Request.Context(), req.Token, claims.Subject)
	if err != nil {
		h.rejectScan(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":    true,
		"course_name": res.CourseName,
		"scanned_at":  res.ScannedAt,
	})
}

// rejectScan maps admission errors to distinct kinds so clients can show
// "invalid code", "session ended" and "already marked" differently.
func (h *Handler) rejectScan(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scan.ErrInvalidToken):
		c.JSON(http.StatusNotFound, gin.H{"kind": "invalid_token", "error": err.Error()})
	case errors.Is(err, scan.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"kind": "session_closed", "error": err.Error()})
	case errors.Is(err, scan.ErrAlreadyMarked):
		c.JSON(http.StatusConflict, gin.H{"kind": "already_marked", "error": err.Error()})
	case errors.Is(err, scan.ErrNotEnrolled):
		c.JSON(http.StatusForbidden, gin.H{"kind": "not_enrolled", "error": err.Error()})
	default:
		log.Printf("scan submit failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
	}
}

// AttendanceSnapshot returns the day's roster-wide record map.
func (h *Handler) AttendanceSnapshot(c *gin.Context) {
	courseID := c.Query("course_id")
	if courseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "course_id required"})
		return
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	claims := auth.ClaimsFrom(c)
	teaches, err := h.roster.Teaches(c.Request.Context(), courseID, claims.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !teaches {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the course instructor"})
		return
	}

	snap, err := h.records.Snapshot(c.Request.Context(), courseID, date)
	if err != nil {
		if errors.Is(err, attendance.ErrUnknownCourse) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": snap})
}

// SaveAttendance persists a faculty batch save.
func (h *Handler) SaveAttendance(c *gin.Context) {
	var req struct {
		CourseID string            `json:"course_id" binding:"required"`
		Date     string            `json:"date" binding:"required"`
		Records  []attendance.Mark `json:"records" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	for _, m := range req.Records {
		if m.Status != attendance.Present && m.Status != attendance.Absent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Present or Absent"})
			return
		}
	}

	claims := auth.ClaimsFrom(c)
	teaches, err := h.roster.Teaches(c.Request.Context(), req.CourseID, claims.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !teaches {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the course instructor"})
		return
	}

	skipped, err := h.records.SaveManual(c.Request.Context(), req.CourseID, date, req.Records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "skipped_count": skipped})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return attendance.DateOf(time.Now()), nil
	}
	return time.Parse("2006-01-02", s)
}
