package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"lrc-editor-go/logcolors"
	"lrc-editor-go/lrc"
	"lrc-editor-go/stats"
	"lrc-editor-go/timeline"

	log "github.com/sirupsen/logrus"
)

// maxLRCBytes bounds the body of the stateless LRC tools
const maxLRCBytes = 4 << 20

// parseLRC parses an LRC body into metadata and timed lines. With
// ?strict=1 any skipped line fails the request.
func (s *server) parseLRC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLRCBytes))
	if err != nil {
		Respond(w, r).Fail(badRequest("read body: %v", err))
		return
	}

	strict, _ := strconv.ParseBool(r.URL.Query().Get("strict"))

	var (
		doc   *lrc.Document
		diags lrc.Diagnostics
	)
	if strict {
		doc, diags, _ = lrc.ParseStrict(string(body))
		if err := diags.Err(); err != nil {
			stats.Get().RecordParse(0, err)
			Respond(w, r).Fail(err)
			return
		}
	} else {
		doc, err = lrc.ParseBytes(body)
		if err != nil {
			stats.Get().RecordParse(0, err)
			Respond(w, r).Fail(err)
			return
		}
	}

	tl := timeline.FromDocument(doc.Lines, timeline.NewUUID)
	stats.Get().RecordParse(tl.Len(), nil)
	log.Debugf("%s Parsed %d lines (strict=%v)", logcolors.LogServer, tl.Len(), strict)

	Respond(w, r).JSON(ParseResponse{
		Metadata:    doc.Metadata,
		Lines:       tl.Lines(),
		Stats:       tl.Stats(),
		Diagnostics: diags,
	})
}

// formatLRC serializes metadata and lines to LRC text
func (s *server) formatLRC(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Respond(w, r).Fail(err)
		return
	}

	if err := req.Metadata.Validate(); err != nil {
		Respond(w, r).Fail(badRequest("%v", err))
		return
	}
	for i, line := range req.Lines {
		if !lrc.ValidText(line.Text) {
			Respond(w, r).Fail(badRequest("line %d: %v", i, lrc.ErrInvalidText))
			return
		}
	}

	out := lrc.Serialize(req.Metadata, req.Lines)
	resp := Respond(w, r)
	resp.writeHeaders("text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out)
}

// decodeJSON reads one JSON object from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLRCBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest("decode body: %v", err)
	}
	return nil
}
