package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"lrc-editor-go/export"
	"lrc-editor-go/ingest"
	"lrc-editor-go/logcolors"
	"lrc-editor-go/lrc"
	"lrc-editor-go/session"
	"lrc-editor-go/stats"
	"lrc-editor-go/timeline"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// lookup resolves the {id} route variable, writing 404 when it is unknown
func (s *server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		Respond(w, r).Fail(err)
		return nil, false
	}
	return sess, true
}

// respondSnapshot writes the full session state
func respondSnapshot(w http.ResponseWriter, r *http.Request, status int, sess *session.Session) {
	snap := sess.Snapshot()
	Respond(w, r).SetRevision(snap.Revision).Status(status, snap)
}

func (s *server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.registry.Create()
	respondSnapshot(w, r, http.StatusCreated, sess)
}

func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondSnapshot(w, r, http.StatusOK, sess)
}

func (s *server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(mux.Vars(r)["id"]); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) resetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Reset()
	respondSnapshot(w, r, http.StatusOK, sess)
}

// uploadFiles ingests a multipart upload of audio files and an optional LRC.
// Every file part is considered regardless of its field name.
func (s *server) uploadFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.conf.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Respond(w, r).Error(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: fmt.Sprintf("upload exceeds %d MB", s.conf.Configuration.MaxUploadMB),
			})
			return
		}
		Respond(w, r).Fail(badRequest("parse multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, err := readParts(r)
	if err != nil {
		Respond(w, r).Fail(badRequest("%v", err))
		return
	}

	batch, err := ingest.Classify(files)
	if err != nil {
		log.Infof("%s %s Rejected %d files: %v", logcolors.LogIngest, logcolors.Session(sess.ID()), len(files), err)
		Respond(w, r).Fail(err)
		return
	}
	if err := sess.Ingest(batch); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	stats.Get().RecordUpload()
	if batch.HasLyrics() {
		stats.Get().RecordParse(len(batch.Lyrics.Lines), nil)
	}

	if batch.Instrumental != nil && batch.Vocal != nil {
		if ticket, err := sess.BeginMixdown(); err == nil {
			s.startMixdown(sess, ticket)
		} else {
			log.Warnf("%s %s %v", logcolors.LogMixdown, logcolors.Session(sess.ID()), err)
		}
	}
	respondSnapshot(w, r, http.StatusOK, sess)
}

// readParts collects every uploaded file, ordered by field name
func readParts(r *http.Request) ([]ingest.File, error) {
	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var files []ingest.File
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
			}
			files = append(files, ingest.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return files, nil
}

// startMixdown mixes the session's stems in the background. A result
// computed for audio that was replaced in the meantime is discarded.
func (s *server) startMixdown(sess *session.Session, ticket *session.MixdownTicket) {
	timeout := time.Duration(s.conf.Configuration.FFmpegTimeoutSecs) * time.Second
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()

		ctx, cancel := context.WithTimeout(s.jobCtx, timeout)
		defer cancel()

		start := time.Now()
		wav, err := s.mixdown.Run(ctx, ticket.Instrumental, ticket.Vocal)
		stats.Get().RecordMixdown(time.Since(start), err)

		if err != nil {
			if ferr := sess.FailMixdown(ticket, err); session.KindOf(ferr) == session.KindStale {
				stats.Get().RecordStale()
			}
			return
		}
		if err := sess.CommitMixdown(ticket, wav); err != nil {
			stats.Get().RecordStale()
			return
		}
		log.Infof("%s %s Mixed %d bytes in %v", logcolors.LogMixdown, logcolors.Session(sess.ID()),
			len(wav), time.Since(start).Round(time.Millisecond))
	}()
}

func (s *server) retryMixdown(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ticket, err := sess.RetryMixdown()
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	s.startMixdown(sess, ticket)
	respondSnapshot(w, r, http.StatusAccepted, sess)
}

// loadLyrics replaces the lines with untimed lyrics from a plain text body
func (s *server) loadLyrics(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLRCBytes))
	if err != nil {
		Respond(w, r).Fail(badRequest("read body: %v", err))
		return
	}
	if err := sess.LoadLyricsText(string(body)); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	respondSnapshot(w, r, http.StatusOK, sess)
}

// importLRC replaces lines and metadata from an LRC body
func (s *server) importLRC(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLRCBytes))
	if err != nil {
		Respond(w, r).Fail(badRequest("read body: %v", err))
		return
	}
	if err := sess.ImportLRC(body); err != nil {
		stats.Get().RecordParse(0, err)
		Respond(w, r).Fail(err)
		return
	}
	stats.Get().RecordParse(len(sess.Lines()), nil)
	respondSnapshot(w, r, http.StatusOK, sess)
}

func (s *server) addLine(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req AddLineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}

	index := timeline.NoLine
	if req.Index != nil {
		if *req.Index < 0 {
			Respond(w, r).Fail(badRequest("index must not be negative"))
			return
		}
		index = *req.Index
	}
	line, err := sess.AddLine(req.Text, index)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	Respond(w, r).Status(http.StatusCreated, line)
}

func (s *server) updateLine(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req UpdateLineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	if err := sess.UpdateLine(mux.Vars(r)["lineID"], req.Text); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	respondSnapshot(w, r, http.StatusOK, sess)
}

func (s *server) deleteLine(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.DeleteLine(mux.Vars(r)["lineID"]); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	respondSnapshot(w, r, http.StatusOK, sess)
}

func parseKind(s string) (timeline.TimeKind, error) {
	kind, err := timeline.ParseTimeKind(s)
	if err != nil {
		return "", badRequest("%v", err)
	}
	return kind, nil
}

// setLineTime stamps a line's start or end, at the playhead unless a time is given
func (s *server) setLineTime(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req SetTimeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}

	value := req.Time
	if req.Now {
		value = nil
	}
	t, err := sess.SetLineTime(mux.Vars(r)["lineID"], kind, value)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	Respond(w, r).JSON(map[string]interface{}{
		"kind":        kind,
		"time":        t,
		"activeIndex": sess.ActiveIndex(),
	})
}

func (s *server) clearLineTime(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	kind, err := parseKind(vars["kind"])
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	if err := sess.ClearLineTime(vars["lineID"], kind); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	respondSnapshot(w, r, http.StatusOK, sess)
}

func (s *server) adjustLineTime(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req AdjustTimeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	line, err := sess.AdjustLineTime(mux.Vars(r)["lineID"], kind, req.Delta)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	Respond(w, r).JSON(line)
}

// updateMetadata sets directives from a code to value map, e.g. {"ti": "Song"}
func (s *server) updateMetadata(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req map[string]string
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}

	codes := make([]string, 0, len(req))
	for code := range req {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if !lrc.ValidText(req[code]) {
			Respond(w, r).Fail(badRequest("[%s]: %v", code, lrc.ErrInvalidText))
			return
		}
	}
	for _, code := range codes {
		if err := sess.UpdateMetadata(strings.ToLower(code), req[code]); err != nil {
			Respond(w, r).Fail(err)
			return
		}
	}
	Respond(w, r).JSON(sess.Metadata())
}

// updatePlayback applies player reports. Duration and play state go first
// so that a seek or line jump in the same request wins.
func (s *server) updatePlayback(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req PlaybackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}

	if err := applyPlayback(sess, req); err != nil {
		Respond(w, r).Fail(err)
		return
	}

	snap := sess.Snapshot()
	Respond(w, r).SetRevision(snap.Revision).JSON(PlaybackResponse{
		ActiveIndex: snap.ActiveIndex,
		Playback:    snap.Playback,
		Pending:     snap.PendingLoad != nil,
	})
}

func applyPlayback(sess *session.Session, req PlaybackRequest) error {
	if req.Duration != nil {
		if err := sess.SetDuration(*req.Duration); err != nil {
			return err
		}
	}
	if req.Playing != nil {
		sess.SetPlaying(*req.Playing)
	}
	if req.AddIndex != nil {
		sess.SetAddLyricIndex(*req.AddIndex)
	}
	if req.Position != nil {
		if _, err := sess.SetPosition(*req.Position); err != nil {
			return err
		}
	}
	if req.Seek != nil {
		if _, err := sess.Seek(*req.Seek); err != nil {
			return err
		}
	}
	if req.PlayLine != "" {
		if _, err := sess.PlayFromLine(req.PlayLine); err != nil {
			return err
		}
	}
	if req.JumpToLine != nil {
		if _, err := sess.JumpToLine(*req.JumpToLine); err != nil {
			return err
		}
	}
	return nil
}

// pause stops playback, waiting for a pending source load first
func (s *server) pause(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Pause(r.Context()); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	snap := sess.Snapshot()
	Respond(w, r).JSON(PlaybackResponse{
		ActiveIndex: snap.ActiveIndex,
		Playback:    snap.Playback,
		Pending:     snap.PendingLoad != nil,
	})
}

func (s *server) switchSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req SourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	src, err := session.ParseSource(req.Source)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	load, err := sess.SwitchSource(src)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	Respond(w, r).Status(http.StatusAccepted, load)
}

// sourceLoaded is sent by the player once the new source can play
func (s *server) sourceLoaded(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req SourceLoadedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	if _, err := sess.CompleteLoad(req.ID); err != nil {
		if session.KindOf(err) == session.KindStale {
			stats.Get().RecordStale()
		}
		Respond(w, r).Fail(err)
		return
	}
	snap := sess.Snapshot()
	Respond(w, r).JSON(PlaybackResponse{
		ActiveIndex: snap.ActiveIndex,
		Playback:    snap.Playback,
		Pending:     snap.PendingLoad != nil,
	})
}

func (s *server) getAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	src, err := session.ParseSource(mux.Vars(r)["source"])
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	f, err := sess.Audio(src)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(f.Data)
	}
	Respond(w, r).Download(contentType, f.Name, f.Data)
}

// exportLRC downloads the lyrics as an .lrc file
func (s *server) exportLRC(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "text/plain; charset=utf-8", func(ctx context.Context, p *export.Project) (string, []byte, error) {
		data, err := export.LRC(p)
		return export.LRCFileName(p.Prefix), data, err
	})
}

// exportZIP downloads the project archive
func (s *server) exportZIP(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "application/zip", func(ctx context.Context, p *export.Project) (string, []byte, error) {
		data, err := export.BuildArchive(ctx, p)
		return export.ArchiveFileName(p.Metadata.Title, p.Prefix), data, err
	})
}

type exportFunc func(ctx context.Context, p *export.Project) (string, []byte, error)

// export builds a download from a detached copy of the session. Edits made
// while it was built do not mark the session exported, but the file built
// from the copy is still served.
func (s *server) export(w http.ResponseWriter, r *http.Request, contentType string, build exportFunc) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ticket, err := sess.BeginExport()
	if err != nil {
		stats.Get().RecordExport(err)
		Respond(w, r).Fail(err)
		return
	}

	name, data, err := build(r.Context(), ticket.Project)
	stats.Get().RecordExport(err)
	if err != nil {
		Respond(w, r).Fail(err)
		return
	}

	if err := sess.CommitExport(ticket); err != nil {
		stats.Get().RecordStale()
		log.Infof("%s %s %v", logcolors.LogExport, logcolors.Session(sess.ID()), err)
		// Content from before a reset belongs to nobody; an edited export
		// is still served
		if !errors.Is(err, session.ErrEditedDuringExport) {
			Respond(w, r).Fail(err)
			return
		}
	}
	Respond(w, r).SetRevision(ticket.Revision).Download(contentType, name, data)
}

