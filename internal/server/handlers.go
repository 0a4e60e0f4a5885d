package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/export"
	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/KaramelBytes/tidyloom-cli/internal/history"
	"github.com/KaramelBytes/tidyloom-cli/internal/ingest"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const formatResult = "result"

var validate = validator.New()

// cleanRequest is the "options" part of a /v1/clean upload.
type cleanRequest struct {
	Steps     clean.Selection             `json:"steps"`
	Overrides map[string]clean.ColumnType `json:"overrides"`
	// Format is csv, xlsx, json (records) or result (run summary).
	Format string `json:"format" validate:"omitempty,oneof=csv xlsx json result"`
	BOM    bool   `json:"bom"`
	// Options overlay the server defaults field by field.
	Options json.RawMessage `json:"options"`
}

type detectResponse struct {
	Rows      int              `json:"rows"`
	Columns   int              `json:"columns"`
	Decisions []clean.Decision `json:"decisions"`
}

type cleanResponse struct {
	Result *clean.Result `json:"result"`
}

// uploadName picks the loader for an upload; anything without an
// extension is read as CSV.
func uploadName(name string) string {
	if filepath.Ext(name) == "" {
		return "upload.csv"
	}
	return name
}

func loadOptions(r *http.Request) (ingest.Options, error) {
	var opt ingest.Options
	if d := r.URL.Query().Get("delimiter"); d != "" {
		if d == `\t` {
			d = "\t"
		}
		if utf8.RuneCountInString(d) != 1 {
			return opt, newError(http.StatusBadRequest, "invalid_delimiter", fmt.Sprintf("delimiter must be one character, got %q", d))
		}
		opt.Delimiter, _ = utf8.DecodeRuneInString(d)
	}
	opt.Sheet = r.URL.Query().Get("sheet")
	return opt, nil
}

// handleDetect scores the columns of a raw upload body.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	opt, err := loadOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := ingest.Load(r.Body, uploadName(r.URL.Query().Get("filename")), opt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := clean.NewPipeline(s.cfg.Options, s.logger)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	decisions, err := p.Detect(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, detectResponse{Rows: f.Rows(), Columns: len(f.Columns), Decisions: decisions})
}

func (s *Server) parseCleanRequest(raw string) (cleanRequest, clean.Options, error) {
	req := cleanRequest{Steps: clean.SelectAll()}
	opts := s.cfg.Options
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return req, opts, newError(http.StatusBadRequest, "invalid_options", fmt.Sprintf("options: %v", err))
		}
	}
	if err := validate.Struct(req); err != nil {
		return req, opts, err
	}
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return req, opts, newError(http.StatusBadRequest, "invalid_options", fmt.Sprintf("options.options: %v", err))
		}
	}
	if err := opts.Validate(); err != nil {
		return req, opts, newError(http.StatusBadRequest, "invalid_options", err.Error())
	}
	return req, opts, nil
}

// handleClean runs the pipeline over a multipart upload. Without an
// options part every step runs and the run summary is returned.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxBodyBytes); err != nil {
		if errorFor(err).Status == http.StatusRequestEntityTooLarge {
			s.fail(w, r, err)
			return
		}
		s.fail(w, r, newError(http.StatusBadRequest, "invalid_upload", err.Error()))
		return
	}
	req, opts, err := s.parseCleanRequest(r.FormValue("options"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, newError(http.StatusBadRequest, "missing_file", "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	source := header.Filename
	lopt, err := loadOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := ingest.Load(file, uploadName(source), lopt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	started := time.Now().UTC()
	res, err := clean.Clean(r.Context(), f, req.Steps, req.Overrides, opts, s.logger)
	if err != nil {
		s.recordFailure(r, source, started, err)
		s.fail(w, r, err)
		return
	}
	s.recordRun(r, source, res)

	w.Header().Set("X-Run-Id", res.RunID)
	if req.Format == "" || req.Format == formatResult {
		render.JSON(w, r, cleanResponse{Result: res})
		return
	}
	s.writeFrame(w, r, res.Frame, export.Format(req.Format), export.Options{BOMPrefix: req.BOM})
}

func (s *Server) writeFrame(w http.ResponseWriter, r *http.Request, f *frame.Frame, format export.Format, opt export.Options) {
	var buf bytes.Buffer
	if err := export.Write(&buf, f, format, opt); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "cleaned"+format.Ext()))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}

func (s *Server) recordRun(r *http.Request, source string, res *clean.Result) {
	s.metrics.ObserveRun(res)
	if s.history == nil {
		return
	}
	if err := s.history.SaveRun(r.Context(), history.RunFromResult(source, res)); err != nil {
		s.logger.WarnContext(r.Context(), "history save failed", "run_id", res.RunID, "error", err)
	}
}

func (s *Server) recordFailure(r *http.Request, source string, started time.Time, cause error) {
	s.metrics.ObserveFailure()
	if s.history == nil {
		return
	}
	run := history.Run{
		ID:         uuid.NewString(),
		Source:     source,
		Status:     history.StatusFailed,
		Error:      cause.Error(),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := s.history.SaveRun(r.Context(), run); err != nil {
		s.logger.WarnContext(r.Context(), "history save failed", "error", err)
	}
}
