package api

import (
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"inspiro/internal/logging"
	"inspiro/internal/model"
	"inspiro/internal/nn"
	"inspiro/internal/predict"
	"inspiro/internal/schedule"
	"inspiro/internal/suggest"
)

// textRequest accepts either key; handlers name the one they document.
type textRequest struct {
	Caption  *string `json:"caption"`
	Text     *string `json:"text"`
	Seed     *int64  `json:"seed"`
	Day      string  `json:"day"`
	Date     string  `json:"date"`
	PostType string  `json:"post_type"`
}

func (t textRequest) pick(primary string) (string, bool) {
	a, b := t.Caption, t.Text
	if primary == "text" {
		a, b = b, a
	}
	if a != nil {
		return *a, true
	}
	if b != nil {
		return *b, true
	}
	return "", false
}

// readText decodes the body and validates the caption under field. On
// failure it writes the 400 and returns false.
func readText(w http.ResponseWriter, r *http.Request, field string) (textRequest, string, bool) {
	var req textRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return req, "", false
	}
	raw, found := req.pick(field)
	if !found {
		writeError(w, http.StatusBadRequest, "Missing '"+field+"' field in request", "")
		return req, "", false
	}
	caption, err := model.ValidateCaption(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Empty "+field+" provided", err.Error())
		return req, "", false
	}
	return req, caption, true
}

type fakeReal struct {
	Fake int `json:"fake_percentage"`
	Real int `json:"real_percentage"`
}

type reachSummary struct {
	Prediction  string  `json:"prediction"`
	Probability float64 `json:"probability"`
	Error       string  `json:"error,omitempty"`
}

type rewrites struct {
	Version1 string `json:"version1"`
	Version2 string `json:"version2"`
}

type analysis struct {
	Text      string                `json:"text,omitempty"`
	FakeReal  fakeReal              `json:"fake_real"`
	Status    predict.StatusResult  `json:"status"`
	Emotions  map[string]int        `json:"emotions"`
	Emotion   predict.EmotionResult `json:"emotion"`
	Keywords  []string              `json:"keywords"`
	Hashtags  []string              `json:"hashtags"`
	Reach     reachSummary          `json:"reach"`
	Rewrites  *rewrites             `json:"rewrites,omitempty"`
	Timestamp string                `json:"timestamp,omitempty"`
	Error     string                `json:"error,omitempty"`
}

func emotionPercents(res predict.EmotionResult) map[string]int {
	out := make(map[string]int, len(predict.EmotionLabels))
	for _, l := range predict.EmotionLabels {
		out[l] = model.Percent(res.Scores[l])
	}
	return out
}

func round2(p float64) float64 { return math.Round(p*100) / 100 }

func (s *Server) analyzeOne(r *http.Request, text string) analysis {
	ctx := r.Context()
	p := s.deps.Predict
	st := p.Status(ctx, text)
	fr := fakeReal{Fake: 50, Real: 50}
	if st.Error == "" {
		fr = fakeReal{Fake: model.Percent(st.Score), Real: model.Percent(1 - st.Score)}
	}
	emo := p.Emotion(ctx, text)
	reach := p.Reach(ctx, text)
	rs := reachSummary{Prediction: reach.Label, Probability: round2(reach.Probability)}
	if reach.Error != "" {
		rs = reachSummary{Prediction: "Unknown", Error: reach.Error}
	}
	sug := suggest.HeuristicSuggest(text)
	return analysis{
		FakeReal: fr,
		Status:   st,
		Emotions: emotionPercents(emo),
		Emotion:  emo,
		Keywords: sug.Keywords,
		Hashtags: sug.Hashtags,
		Reach:    rs,
		Rewrites: &rewrites{Version1: sug.Engaging, Version2: sug.Professional},
	}
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if !s.requireModels(w) {
		return
	}
	_, text, ok := readText(w, r, "text")
	if !ok {
		return
	}
	res := s.analyzeOne(r, text)
	res.Timestamp = s.deps.Now().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireModels(w) {
		return
	}
	var req struct {
		Texts *[]any `json:"texts"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "'texts' must be a list", err.Error())
		return
	}
	if req.Texts == nil {
		writeError(w, http.StatusBadRequest, "Missing 'texts' field", "")
		return
	}
	results := make([]analysis, 0, len(*req.Texts))
	for _, item := range *req.Texts {
		raw, _ := item.(string)
		text, err := model.ValidateCaption(raw)
		if err != nil {
			results = append(results, analysis{Text: suggest.Preview(raw, 50), Error: "Empty text provided"})
			continue
		}
		res := s.analyzeOne(r, text)
		res.Text = suggest.Preview(text, 50)
		res.Rewrites = nil
		if res.Status.Error != "" {
			res.Error = res.Status.Error
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(results), "results": results})
}

func (s *Server) analyzeCaption(w http.ResponseWriter, r *http.Request) {
	if !s.requireModels(w) {
		return
	}
	_, caption, ok := readText(w, r, "caption")
	if !ok {
		return
	}
	ctx := r.Context()
	emo := s.deps.Predict.Emotion(ctx, caption)
	st := s.deps.Predict.Status(ctx, caption)

	var auth model.Authenticity
	if st.Error != "" {
		auth = model.Authenticity{Real: 33, Fake: 33, Spam: 34, Label: "Unknown",
			Reason: "Error in authenticity detection: " + st.Error}
	} else {
		auth = model.ClassifyAuthenticity(caption, st.Label, st.Score)
	}
	optimized := ""
	if auth.Label == "Fake" {
		optimized = suggest.GenerateRealCaption(caption)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"emotion": map[string]any{
			"dominant": emo.Label,
			"scores":   emotionPercents(emo),
			"reason":   model.EmotionReason(emo.Label),
			"status":   emo.Status,
			"note":     emo.Note,
		},
		"authenticity":           auth,
		"status":                 st,
		"optimized_real_caption": optimized,
		"timestamp":              s.deps.Now().Format(time.RFC3339),
	})
}

func (s *Server) rewrite(w http.ResponseWriter, r *http.Request) {
	req, caption, ok := readText(w, r, "caption")
	if !ok {
		return
	}
	rw := s.deps.Rewriter
	if req.Seed != nil {
		rw = suggest.NewRewriter(rand.NewSource(*req.Seed))
	}
	out := rw.Rewrite(caption)
	body := map[string]any{
		"original":        caption,
		"rewritten":       out,
		"fakeness_before": suggest.AnalyzeFakeness(caption),
		"fakeness_after":  suggest.AnalyzeFakeness(out),
		"timestamp":       s.deps.Now().Format(time.RFC3339),
	}
	if s.deps.Polisher.Enabled() {
		polished, err := s.deps.Polisher.Polish(r.Context(), caption, out)
		if err != nil {
			logging.Warn("rewrite_polish_failed", map[string]any{"error": err.Error()})
		} else {
			body["polished"] = polished
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) bestTime(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	raw, withCaption := req.pick("caption")
	if withCaption && !s.requireModels(w) {
		return
	}
	var dow int
	switch {
	case req.Date != "":
		at, err := schedule.ParseDateTime(req.Date, "12:00", s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format", err.Error())
			return
		}
		dow = nn.Weekday(at)
	case req.Day != "":
		d, err := predict.ParseDay(req.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid day", err.Error())
			return
		}
		dow = d
	default:
		writeError(w, http.StatusBadRequest, "Missing 'day' field", "Provide a day name or a date")
		return
	}
	postType := strings.ToLower(strings.TrimSpace(req.PostType))
	if postType != "paid" {
		postType = "non_paid"
	}
	body := map[string]any{
		"day":              predict.DayName(dow),
		"next_recommended": predict.NextDay(dow),
		"reach_estimation": predict.EstimateReach(postType),
		"post_type":        postType,
		"timestamp":        s.deps.Now().Format(time.RFC3339),
	}
	if !withCaption {
		plan := predict.PlanFor(dow)
		body["selected_day_best_time"] = plan.Time
		body["best_hour"] = plan.Hour
		body["peak"] = plan.Peak
		body["source"] = "schedule"
		writeJSON(w, http.StatusOK, body)
		return
	}
	caption, err := model.ValidateCaption(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Empty caption provided", err.Error())
		return
	}
	hours, err := s.deps.Predict.BestTimes(r.Context(), caption, dow)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Best time analysis failed", err.Error())
		return
	}
	top := predict.TopHours(hours, 3)
	body["selected_day_best_time"] = top[0].Display
	body["best_hour"] = top[0].Hour
	body["probability"] = round2(top[0].Probability)
	body["top_hours"] = top
	body["hours"] = hours
	body["source"] = "model"
	writeJSON(w, http.StatusOK, body)
}
