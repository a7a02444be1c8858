package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"inspiro/internal/analytics"
	"inspiro/internal/fbclient"
	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/model"
	"inspiro/internal/schedule"
	"inspiro/internal/suggest"
)

type scheduleRequest struct {
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	Caption string  `json:"caption"`
}

// postView adds display fields to a stored post.
type postView struct {
	model.ScheduledPost
	ReadableFormat string `json:"readable_format"`
	Countdown      string `json:"countdown"`
}

func (s *Server) view(p model.ScheduledPost) postView {
	at := p.ScheduledAt.In(s.loc)
	return postView{
		ScheduledPost:  p,
		ReadableFormat: schedule.ReadableFormat(at),
		Countdown:      schedule.CountdownTo(at, s.deps.Now()).String(),
	}
}

func scheduleError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg, "message": msg})
}

// readSchedule parses date and time from the body. It writes the 400 and
// returns false on bad input or a time not in the future.
func (s *Server) readSchedule(w http.ResponseWriter, r *http.Request) (scheduleRequest, time.Time, bool) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		scheduleError(w, http.StatusBadRequest, "Invalid JSON body")
		return req, time.Time{}, false
	}
	if req.Date == nil || req.Time == nil {
		scheduleError(w, http.StatusBadRequest, "Missing 'date' or 'time' field")
		return req, time.Time{}, false
	}
	at, err := schedule.ParseDateTime(*req.Date, *req.Time, s.loc)
	if err != nil {
		scheduleError(w, http.StatusBadRequest, "Invalid date or time format. Use formats like: 2024-12-15, 6:30 PM")
		return req, time.Time{}, false
	}
	if !at.After(s.deps.Now()) {
		scheduleError(w, http.StatusBadRequest, "Cannot schedule post in the past. Please select a future date and time.")
		return req, time.Time{}, false
	}
	return req, at, true
}

func (s *Server) confirmSchedule(w http.ResponseWriter, r *http.Request) {
	req, at, ok := s.readSchedule(w, r)
	if !ok {
		return
	}
	readable := schedule.ReadableFormat(at)
	body := map[string]any{
		"status":             "success",
		"message":            "Your post is scheduled for " + readable + ".",
		"scheduled_datetime": at.Format(time.RFC3339),
		"readable_format":    readable,
		"countdown":          schedule.CountdownTo(at, s.deps.Now()).String(),
		"timestamp":          s.deps.Now().Format(time.RFC3339),
	}
	if req.Caption != "" {
		body["caption_preview"] = suggest.Preview(req.Caption, 60)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	req, at, ok := s.readSchedule(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Schedule.Schedule(r.Context(), req.Caption, at)
	switch {
	case errors.Is(err, model.ErrEmptyCaption), errors.Is(err, model.ErrInvalidCaption):
		scheduleError(w, http.StatusBadRequest, "Empty caption provided")
		return
	case errors.Is(err, model.ErrPastSchedule):
		scheduleError(w, http.StatusBadRequest, "Cannot schedule post in the past. Please select a future date and time.")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Scheduling failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.view(p))
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.deps.Schedule.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not load posts", err.Error())
		return
	}
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, s.view(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(views),
		"posts":   views,
		"summary": analytics.Summarize(posts, s.loc),
	})
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.deps.Schedule.Delete(r.Context(), id)
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		writeError(w, http.StatusNotFound, "Post not found", id)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Delete failed", err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	}
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	_, caption, ok := readText(w, r, "caption")
	if !ok {
		return
	}
	if s.deps.Publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "Publishing not configured", "Set facebook.pageID and facebook.accessToken")
		return
	}
	id, err := s.deps.Publisher.Publish(r.Context(), caption)
	if err != nil {
		metrics.IncPostOutcome(string(model.StatusFailed))
		code, msg := fbclient.Describe(err)
		status := code
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		logging.Warn("direct_publish_failed", map[string]any{"error": err.Error(), "error_code": code})
		writeJSON(w, status, map[string]any{
			"success":    false,
			"error":      msg,
			"error_code": code,
			"details":    err.Error(),
		})
		return
	}
	metrics.IncPostOutcome(string(model.StatusPosted))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"post_id":   id,
		"url":       fbclient.PostURL(id),
		"message":   suggest.Preview(caption, 100),
		"timestamp": s.deps.Now().Format(time.RFC3339),
	})
}
