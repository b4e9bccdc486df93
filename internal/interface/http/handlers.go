package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/cohort-metrics/internal/application/command"
	"github.com/alem-hub/cohort-metrics/internal/application/query"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/pkg/timeutil"
)

// unknownCenterParam addresses the unknown-center bucket in paths.
const unknownCenterParam = center.UnknownID

var errInvalidYear = shared.NewDomainError("http", "Parse", shared.ErrInvalidFormat, "year must be an integer")

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.HealthChecker.Check(c.Request.Context())
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	respondOK(c, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// handleSynthese handles GET /api/v1/tracks/:track/synthese?year=&center=
// Without center, or with an empty one, the global synthesis is returned;
// center=_ selects the unknown-center bucket.
func (s *Server) handleSynthese(c *gin.Context) {
	track, year, ok := s.trackAndYear(c)
	if !ok {
		return
	}

	var centerID *string
	if raw := c.Query("center"); raw != "" {
		id := centerParam(raw)
		centerID = &id
	}

	out, err := s.deps.Engine.Synthesize(c.Request.Context(), centerID, year, track)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, out)
}

// handleAttainment handles GET /api/v1/tracks/:track/centers/:center/attainment?year=
func (s *Server) handleAttainment(c *gin.Context) {
	track, year, ok := s.trackAndYear(c)
	if !ok {
		return
	}

	res, err := s.deps.Engine.Attainment(c.Request.Context(), centerParam(c.Param("center")), year, track)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, res)
}

// handleListSessions handles GET /api/v1/tracks/:track/centers/:center/sessions?year=
func (s *Server) handleListSessions(c *gin.Context) {
	track, year, ok := s.trackAndYear(c)
	if !ok {
		return
	}

	res, err := s.deps.ListSessions.Handle(c.Request.Context(), query.ListSessionsQuery{
		Track:    track,
		CenterID: centerParam(c.Param("center")),
		Year:     year,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, res)
}

// trackAndYear parses the shared path/query parameters; it writes the error
// response itself and returns ok=false on failure.
func (s *Server) trackAndYear(c *gin.Context) (session.Track, int, bool) {
	track, err := session.ParseTrack(c.Param("track"))
	if err != nil {
		respondDomainError(c, err)
		return "", 0, false
	}

	year := timeutil.CurrentYear()
	if raw := c.Query("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			respondDomainError(c, errInvalidYear)
			return "", 0, false
		}
	}
	if year < objective.MinYear || year > objective.MaxYear {
		respondDomainError(c, shared.ErrInvalidYear)
		return "", 0, false
	}
	return track, year, true
}

func centerParam(raw string) string {
	if raw == unknownCenterParam {
		return ""
	}
	return raw
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITES
// ══════════════════════════════════════════════════════════════════════════════

// SessionRequest is the body of PUT /api/v1/sessions.
type SessionRequest struct {
	ID       string `json:"id"`
	Track    string `json:"track"`
	Stage    string `json:"stage"`
	Date     string `json:"date"`
	CenterID string `json:"center_id"`
	session.Counts
	Actor string `json:"actor"`
}

// ObjectiveRequest is the body of PUT /api/v1/objectives.
type ObjectiveRequest struct {
	CenterID    string `json:"center_id"`
	Year        int    `json:"year"`
	TargetValue int    `json:"target_value"`
	Note        string `json:"note"`
	Actor       string `json:"actor"`
}

// CenterRequest is the body of PUT /api/v1/centers.
type CenterRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Actor      string `json:"actor"`
}

var errMalformedBody = shared.NewDomainError("http", "Bind", shared.ErrInvalidFormat, "malformed JSON body")

// handleRecordSession handles PUT /api/v1/sessions
func (s *Server) handleRecordSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondDomainError(c, errMalformedBody)
		return
	}

	date, err := timeutil.ParseDate(req.Date)
	if err != nil {
		respondDomainError(c, shared.WrapError("http", "Parse", shared.ErrInvalidFormat, "invalid date", err))
		return
	}

	res, err := s.deps.RecordSession.Handle(c.Request.Context(), command.RecordSessionCommand{
		ID:       req.ID,
		Track:    req.Track,
		Stage:    req.Stage,
		Date:     date,
		CenterID: req.CenterID,
		Counts:   req.Counts,
		Actor:    req.Actor,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	r := res.Record
	c.JSON(status, query.SessionDTO{
		ID:            r.ID,
		Track:         r.Track.String(),
		Stage:         r.Stage.String(),
		Date:          timeutil.FormatDateStr(r.Date),
		CenterID:      r.CenterID,
		PlacesOpened:  r.PlacesOpened,
		Prescriptions: r.Prescriptions,
		Present:       r.Present,
		Absent:        r.Absent,
		Adhesions:     r.Adhesions,
		Enrolled:      r.Enrolled,
	})
}

// handleSetObjective handles PUT /api/v1/objectives
func (s *Server) handleSetObjective(c *gin.Context) {
	var req ObjectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondDomainError(c, errMalformedBody)
		return
	}

	res, err := s.deps.SetObjective.Handle(c.Request.Context(), command.SetObjectiveCommand{
		CenterID:    req.CenterID,
		Year:        req.Year,
		TargetValue: req.TargetValue,
		Note:        req.Note,
		Actor:       req.Actor,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, gin.H{
		"center_id":       res.Objective.CenterID,
		"year":            res.Objective.Year,
		"target_value":    res.Objective.TargetValue,
		"note":            res.Objective.Note,
		"previous_target": res.PreviousTarget,
		"created":         res.Created,
	})
}

// handleRegisterCenter handles PUT /api/v1/centers
func (s *Server) handleRegisterCenter(c *gin.Context) {
	var req CenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondDomainError(c, errMalformedBody)
		return
	}

	ctr, err := s.deps.RegisterCenter.Handle(c.Request.Context(), command.RegisterCenterCommand{
		ID:         req.ID,
		Name:       req.Name,
		PostalCode: req.PostalCode,
		Actor:      req.Actor,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, gin.H{
		"id":          ctr.ID,
		"name":        ctr.Name,
		"postal_code": ctr.PostalCode,
		"department":  ctr.Department(),
	})
}

// handleRemoveCenter handles DELETE /api/v1/centers/:center
func (s *Server) handleRemoveCenter(c *gin.Context) {
	err := s.deps.RemoveCenter.Handle(c.Request.Context(), command.RemoveCenterCommand{
		ID:    c.Param("center"),
		Actor: c.Query("actor"),
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
