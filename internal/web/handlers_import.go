package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/progress"
	"github.com/JonMunkholm/catalog/internal/reconcile"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a form is buffered in memory before the
// rest spills to temporary files.
const multipartMemory = 32 << 20

// importAccepted is the response to a started run.
type importAccepted struct {
	RunID       string `json:"runId"`
	Status      string `json:"status"`
	ProgressURL string `json:"progressUrl"`
	ResultURL   string `json:"resultUrl"`
}

// importResult is the response of the result endpoint.
type importResult struct {
	Run   core.RunInfo      `json:"run"`
	Stats *core.ImportStats `json:"stats,omitempty"`
	Error *ErrorResponse    `json:"error,omitempty"`
}

// handleImport starts an asynchronous import from a multipart form.
//
// Form fields:
//   - files: one or more .xlsx, .csv or .tsv files (also accepted as "file")
//   - sector: target sector name, required
//   - mode: skip or overwrite, the server default when empty
//   - clearExisting, detectDuplicates: booleans, default false
//   - hasHeader: boolean, default true
//   - encoding: delimited files only (utf-8, windows-1252, iso-8859-1)
//   - delimiter: a single character, delimited files only
//   - sheet: spreadsheets only, the first sheet when empty
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxBody := s.service.MaxFileSize()*int64(s.service.MaxFiles()) + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", core.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		s.respondError(w, r, badRequest("invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := importRequestFromForm(r.MultipartForm)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	runID, err := s.service.StartImport(withRequestMetadata(r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	base := "/api/import/" + runID
	w.Header().Set("Location", base)
	writeJSON(w, r, http.StatusAccepted, importAccepted{
		RunID:       runID,
		Status:      string(core.RunRunning),
		ProgressURL: base + "/progress",
		ResultURL:   base + "/result",
	})
}

// importRequestFromForm reads the uploaded files and options. Size limits
// are enforced by the service so an oversized file fails alone.
func importRequestFromForm(form *multipart.Form) (core.ImportRequest, error) {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	req := core.ImportRequest{
		SectorName: value("sector"),
		Options: core.ImportOptions{
			Mode:      reconcile.Mode(strings.ToLower(value("mode"))),
			HasHeader: true,
			Encoding:  value("encoding"),
			Sheet:     value("sheet"),
		},
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"clearExisting", &req.Options.ClearExisting},
		{"detectDuplicates", &req.Options.DetectDuplicates},
		{"hasHeader", &req.Options.HasHeader},
	}
	for _, f := range flags {
		raw := value(f.key)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return req, badRequest("%s must be true or false, got %q", f.key, raw)
		}
		*f.dst = b
	}

	if d := value("delimiter"); d != "" {
		if d == `\t` {
			d = "\t"
		}
		if utf8.RuneCountInString(d) != 1 {
			return req, badRequest("delimiter must be a single character, got %q", d)
		}
		req.Options.Delimiter, _ = utf8.DecodeRuneInString(d)
	}

	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	for _, h := range headers {
		data, err := readPart(h)
		if err != nil {
			return req, badRequest("read %s: %v", h.Filename, err)
		}
		req.Files = append(req.Files, core.FileInput{Name: h.Filename, Data: data})
	}
	return req, nil
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleImportProgress streams a run's progress via Server-Sent Events.
//
// Each event carries the progress percentage as its id. A client that
// reconnects with Last-Event-ID (or ?lastEventId=) skips events it has
// already seen. The stream ends with a "complete" event whose data is the
// final run snapshot.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventID := -1
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			lastEventID = n
		}
	}

	events, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	send := func(event string, id int, v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if id >= 0 {
			fmt.Fprintf(w, "id: %d\n", id)
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		return rc.Flush() == nil
	}

	for {
		select {
		case e, ok := <-events:
			if !ok {
				info, err := s.service.GetImportProgress(runID)
				if err != nil {
					send("complete", -1, struct{}{})
					return
				}
				send("complete", -1, info)
				return
			}
			if !shouldSend(e, lastEventID) {
				continue
			}
			lastEventID = e.Percent
			if !send("progress", e.Percent, e) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// shouldSend skips events a resuming client already received. Terminal
// events are always delivered.
func shouldSend(e progress.Event, lastEventID int) bool {
	return e.Stage.Terminal() || e.Percent > lastEventID
}

// handleImportStatus returns a snapshot of a run without waiting.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetImportProgress(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// handleImportResult returns the final stats of a run. A running run
// answers 202 with its snapshot unless ?wait=true, which blocks until the
// run ends or the request times out.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	info, err := s.service.GetImportProgress(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if info.Status == core.RunRunning && !wait {
		writeJSON(w, r, http.StatusAccepted, importResult{Run: info})
		return
	}

	stats, runErr := s.service.GetImportResult(r.Context(), runID)
	if ctxErr := r.Context().Err(); ctxErr != nil && stats == nil {
		s.respondError(w, r, ctxErr)
		return
	}
	if info, err = s.service.GetImportProgress(runID); err != nil {
		s.respondError(w, r, err)
		return
	}

	res := importResult{Run: info, Stats: stats}
	if runErr != nil {
		body := errorResponse(runErr)
		res.Error = &body
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleCancelImport stops a run at the next bucket boundary.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.service.CancelImport(runID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"runId": runID, "status": "cancelling"})
}

// handleListImports lists the tracked runs, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"runs": s.service.ListImports()})
}
