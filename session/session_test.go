package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lrc-editor-go/export"
	"lrc-editor-go/ingest"
	"lrc-editor-go/lrc"
	"lrc-editor-go/timeline"
)

func sequentialIDs() timeline.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
}

func newTestSession() *Session {
	return New("test-session", Options{NewID: sequentialIDs()})
}

func singleBatch() *ingest.Batch {
	return &ingest.Batch{
		Prefix: "track",
		Main:   &ingest.File{Name: "track.mp3", Data: []byte("MAIN")},
	}
}

func dualBatch(t *testing.T, lyrics string) *ingest.Batch {
	t.Helper()
	files := []ingest.File{
		{Name: "song_ins.mp3", Data: []byte("INS")},
		{Name: "song_vol.mp3", Data: []byte("VOC")},
	}
	if lyrics != "" {
		files = append(files, ingest.File{Name: "song.lrc", Data: []byte(lyrics)})
	}
	batch, err := ingest.Classify(files)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	return batch
}

const threeLines = "[ti:Song]\n[00:00.00-00:02.00]One\n[00:02.00-00:04.00]Two\n[00:05.00]Three\n"

func TestNew(t *testing.T) {
	s := newTestSession()
	snap := s.Snapshot()

	if snap.State != StateEmpty {
		t.Errorf("Expected empty state, got %s", snap.State)
	}
	if snap.Metadata.CreatedBy != lrc.DefaultCreatedBy || snap.Metadata.Revision != lrc.DefaultRevision {
		t.Errorf("Expected default metadata, got %+v", snap.Metadata)
	}
	if snap.ActiveIndex != timeline.NoLine {
		t.Errorf("Expected no active line, got %d", snap.ActiveIndex)
	}
	if len(snap.Lines) != 0 {
		t.Errorf("Expected no lines, got %d", len(snap.Lines))
	}
}

func TestIngest_Single(t *testing.T) {
	s := newTestSession()
	if err := s.Ingest(singleBatch()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.State != StateAudioLoaded {
		t.Errorf("Expected audio_loaded, got %s", snap.State)
	}
	if !snap.ShowLyricsInput {
		t.Error("Expected lyrics input prompt without an LRC file")
	}
	if snap.Playback.Source != SourceMain {
		t.Errorf("Expected main source, got %s", snap.Playback.Source)
	}
	if snap.Files.Main == nil || snap.Files.Main.Size != 4 {
		t.Errorf("Files = %+v", snap.Files)
	}
}

func TestIngest_DualWithLyrics(t *testing.T) {
	s := newTestSession()
	before := s.Generation()
	if err := s.Ingest(dualBatch(t, threeLines)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.State != StateEditing {
		t.Errorf("Expected editing, got %s", snap.State)
	}
	if len(snap.Lines) != 3 || snap.Metadata.Title != "Song" {
		t.Errorf("Expected lyrics from the batch, got %d lines, title %q", len(snap.Lines), snap.Metadata.Title)
	}
	if snap.Files.Mixed != MixPending || snap.Playback.Source != SourceMixed {
		t.Errorf("Expected pending mix on mixed source, got %s/%s", snap.Files.Mixed, snap.Playback.Source)
	}
	if snap.Generation <= before {
		t.Error("Expected generation to advance")
	}
	if snap.Prefix != "song" {
		t.Errorf("Expected prefix song, got %q", snap.Prefix)
	}
}

func TestIngest_InvalidLeavesStateUnchanged(t *testing.T) {
	s := newTestSession()
	if err := s.Ingest(singleBatch()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	before := s.Snapshot()

	err := s.Ingest(&ingest.Batch{Instrumental: &ingest.File{Name: "x_ins.mp3"}})
	if !errors.Is(err, ingest.ErrInvalidFileSelection) || KindOf(err) != KindInvalid {
		t.Fatalf("Expected invalid selection, got %v", err)
	}

	after := s.Snapshot()
	if after.Revision != before.Revision || after.Generation != before.Generation || after.Files.Main == nil {
		t.Error("Expected session unchanged after failed ingest")
	}
}

func TestLoadLyricsText(t *testing.T) {
	s := newTestSession()
	s.Ingest(singleBatch())

	if err := s.LoadLyricsText("  first \n\n second\n"); err != nil {
		t.Fatalf("LoadLyricsText failed: %v", err)
	}
	lines := s.Lines()
	if len(lines) != 2 || lines[0].Text != "first" || lines[1].Text != "second" {
		t.Errorf("Unexpected lines: %+v", lines)
	}
	snap := s.Snapshot()
	if snap.State != StateEditing || snap.ShowLyricsInput {
		t.Errorf("Expected editing without prompt, got %s/%v", snap.State, snap.ShowLyricsInput)
	}

	if err := s.LoadLyricsText("   \n"); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for blank text, got %v", err)
	}
}

func TestImportLRC(t *testing.T) {
	s := newTestSession()
	s.LoadLyricsText("old")

	if err := s.ImportLRC([]byte("bad\x00")); !errors.Is(err, lrc.ErrMalformedLRC) {
		t.Fatalf("Expected ErrMalformedLRC, got %v", err)
	}
	if lines := s.Lines(); len(lines) != 1 || lines[0].Text != "old" {
		t.Error("Expected lines unchanged after failed import")
	}

	if err := s.ImportLRC([]byte(threeLines)); err != nil {
		t.Fatalf("ImportLRC failed: %v", err)
	}
	if len(s.Lines()) != 3 {
		t.Errorf("Expected 3 lines, got %d", len(s.Lines()))
	}
	if s.Metadata().Version != lrc.DefaultVersion {
		t.Error("Expected defaults applied to imported metadata")
	}
}

func TestLineEditing(t *testing.T) {
	s := newTestSession()

	a, err := s.AddLine("alpha", -1)
	if err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	s.AddLine("gamma", -1)
	s.SetAddLyricIndex(1)
	b, _ := s.AddLine("beta", -1)

	lines := s.Lines()
	if len(lines) != 3 || lines[1].ID != b.ID {
		t.Fatalf("Expected beta inserted at 1, got %+v", lines)
	}
	if s.Snapshot().AddLyricIndex != timeline.NoLine {
		t.Error("Expected insertion index consumed")
	}

	if err := s.UpdateLine(a.ID, "ALPHA"); err != nil {
		t.Fatalf("UpdateLine failed: %v", err)
	}
	if err := s.UpdateLine("missing", "x"); KindOf(err) != KindNotFound {
		t.Errorf("Expected not found, got %v", err)
	}
	if err := s.UpdateLine(a.ID, "  "); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid, got %v", err)
	}
	if err := s.DeleteLine(b.ID); err != nil {
		t.Fatalf("DeleteLine failed: %v", err)
	}
	if len(s.Lines()) != 2 || s.Lines()[0].Text != "ALPHA" {
		t.Errorf("Unexpected lines: %+v", s.Lines())
	}
}

func TestSetLineTime_Now(t *testing.T) {
	s := newTestSession()
	s.Ingest(singleBatch())
	line, _ := s.AddLine("hello", -1)

	if _, err := s.SetPosition(12.34); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}
	got, err := s.SetLineTime(line.ID, timeline.Start, nil)
	if err != nil {
		t.Fatalf("SetLineTime failed: %v", err)
	}
	if got != 12.34 {
		t.Errorf("Expected current position stamped, got %v", got)
	}
	if s.ActiveIndex() != 0 {
		t.Errorf("Expected line active after stamping, got %d", s.ActiveIndex())
	}

	v := 20.0
	s.SetLineTime(line.ID, timeline.End, &v)
	if s.ActiveIndex() != 0 {
		t.Errorf("Expected line still active before end, got %d", s.ActiveIndex())
	}
}

func TestAdjustLineTime(t *testing.T) {
	s := newTestSession()
	line, _ := s.AddLine("hello", -1)

	if _, err := s.AdjustLineTime(line.ID, timeline.Start, 0.1); KindOf(err) != KindConflict {
		t.Errorf("Expected conflict adjusting an unset time, got %v", err)
	}

	v := 0.05
	s.SetLineTime(line.ID, timeline.Start, &v)
	adjusted, err := s.AdjustLineTime(line.ID, timeline.Start, -0.1)
	if err != nil {
		t.Fatalf("AdjustLineTime failed: %v", err)
	}
	if *adjusted.StartTime != 0 {
		t.Errorf("Expected clamp at 0, got %v", *adjusted.StartTime)
	}

	if err := s.ClearLineTime(line.ID, timeline.Start); err != nil {
		t.Fatalf("ClearLineTime failed: %v", err)
	}
	if s.Lines()[0].StartTime != nil {
		t.Error("Expected start cleared")
	}
}

func TestFailedEditPreservesRevision(t *testing.T) {
	s := newTestSession()
	s.AddLine("hello", -1)
	before := s.Snapshot().Revision

	bad := -1.0
	if _, err := s.SetLineTime("line-1", timeline.Start, &bad); err == nil {
		t.Fatal("Expected error for negative time")
	}
	if s.Snapshot().Revision != before {
		t.Error("Expected revision unchanged after failed edit")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestSession()

	if err := s.UpdateMetadata("ti", "Title"); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}
	if err := s.UpdateMetadata("offset", "-250"); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}
	if err := s.UpdateMetadata("lang", "en"); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}
	if err := s.UpdateMetadata("Bad Code", "x"); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid code error, got %v", err)
	}
	if err := s.UpdateMetadata("ar", "Band]\n[00:00.00]injected"); !errors.Is(err, lrc.ErrInvalidText) || KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid text error, got %v", err)
	}
	if err := s.SetMetadata(lrc.Metadata{Title: "a\nb"}); KindOf(err) != KindInvalid {
		t.Errorf("Expected SetMetadata to reject line breaks, got %v", err)
	}

	m := s.Metadata()
	if m.Title != "Title" || m.Offset != -250 || m.Extra["lang"] != "en" {
		t.Errorf("Unexpected metadata: %+v", m)
	}

	m.Extra["lang"] = "mutated"
	if s.Metadata().Extra["lang"] != "en" {
		t.Error("Expected Metadata() to return a copy")
	}

	if err := s.SetMetadata(lrc.Metadata{Artist: "A"}); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if got := s.Metadata(); got.Artist != "A" || got.Title != "" {
		t.Errorf("Expected metadata replaced, got %+v", got)
	}
}

func TestSetPosition_ActiveIndex(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))

	tests := []struct {
		time     float64
		expected int
	}{
		{1.0, 0},
		{3.5, 1},
		{4.5, timeline.NoLine},
		{6.0, 2},
	}
	for _, tt := range tests {
		got, err := s.SetPosition(tt.time)
		if err != nil {
			t.Fatalf("SetPosition(%v) failed: %v", tt.time, err)
		}
		if got != tt.expected {
			t.Errorf("SetPosition(%v) = %d, want %d", tt.time, got, tt.expected)
		}
	}

	if _, err := s.SetPosition(-1); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition, got %v", err)
	}
}

func TestPlayFromLine(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	lines := s.Lines()

	idx, err := s.PlayFromLine(lines[2].ID)
	if err != nil {
		t.Fatalf("PlayFromLine failed: %v", err)
	}
	snap := s.Snapshot()
	if idx != 2 || snap.Playback.CurrentTime != 5 || !snap.Playback.IsPlaying {
		t.Errorf("Unexpected playback after PlayFromLine: idx=%d %+v", idx, snap.Playback)
	}

	if _, err := s.JumpToLine(0); err != nil {
		t.Fatalf("JumpToLine failed: %v", err)
	}
	if s.Snapshot().Playback.CurrentTime != 0 {
		t.Error("Expected jump to line 0 start")
	}
	if _, err := s.JumpToLine(9); err == nil {
		t.Error("Expected error for out-of-range index")
	}

	s.AddLine("untimed", -1)
	if _, err := s.JumpToLine(3); !errors.Is(err, timeline.ErrTimeNotSet) {
		t.Errorf("Expected ErrTimeNotSet, got %v", err)
	}
}

func TestSwitchSource_SingleMode(t *testing.T) {
	s := newTestSession()
	if _, err := s.SwitchSource(SourceMain); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Expected ErrNoAudio, got %v", err)
	}
	s.Ingest(singleBatch())
	if _, err := s.SwitchSource(SourceVocal); !errors.Is(err, ErrNotDualStem) {
		t.Errorf("Expected ErrNotDualStem, got %v", err)
	}
}

func TestSwitchSource_CarriesPosition(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	s.SetPosition(3.0)
	s.SetPlaying(true)

	if _, err := s.SwitchSource(SourceMixed); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("Expected mixed unavailable before mixdown, got %v", err)
	}

	load, err := s.SwitchSource(SourceVocal)
	if err != nil {
		t.Fatalf("SwitchSource failed: %v", err)
	}
	if load.Position != 3.0 || !load.Resume {
		t.Errorf("Expected carried position 3.0 and resume, got %+v", load)
	}
	if s.Snapshot().Playback.IsPlaying {
		t.Error("Expected player paused during load")
	}

	// A stale tick from the old source is ignored
	s.SetPosition(9.0)
	if s.Snapshot().Playback.CurrentTime != 3.0 {
		t.Error("Expected tick during load to be ignored")
	}

	if _, err := s.CompleteLoad(load.ID + 1); KindOf(err) != KindStale {
		t.Errorf("Expected stale for unknown load, got %v", err)
	}
	if _, err := s.CompleteLoad(load.ID); err != nil {
		t.Fatalf("CompleteLoad failed: %v", err)
	}

	select {
	case <-load.Ready():
	default:
		t.Error("Expected load to be ready")
	}
	snap := s.Snapshot()
	if snap.Playback.CurrentTime != 3.0 || !snap.Playback.IsPlaying || snap.Playback.Source != SourceVocal {
		t.Errorf("Unexpected playback after load: %+v", snap.Playback)
	}
	if snap.PendingLoad != nil {
		t.Error("Expected no pending load")
	}
}

func TestSwitchSource_SupersededAndReset(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	s.SetPosition(2.5)

	first, _ := s.SwitchSource(SourceVocal)
	second, _ := s.SwitchSource(SourceInstrumental)

	select {
	case <-first.Ready():
	default:
		t.Error("Expected superseded load to be released")
	}
	if second.Position != 2.5 {
		t.Errorf("Expected position carried through chained switch, got %v", second.Position)
	}
	if _, err := s.CompleteLoad(first.ID); KindOf(err) != KindStale {
		t.Errorf("Expected stale for superseded load, got %v", err)
	}

	s.Reset()
	if _, err := s.CompleteLoad(second.ID); KindOf(err) != KindStale {
		t.Errorf("Expected stale after reset, got %v", err)
	}
}

func TestPause_WaitsForReadiness(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	s.SetPlaying(true)
	load, _ := s.SwitchSource(SourceInstrumental)

	done := make(chan error, 1)
	go func() {
		done <- s.Pause(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("Expected Pause to wait for the load")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := s.CompleteLoad(load.ID); err != nil {
		t.Fatalf("CompleteLoad failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pause did not return after load completed")
	}
	if s.Snapshot().Playback.IsPlaying {
		t.Error("Expected paused after Pause")
	}
}

func TestPause_ContextCancelled(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	s.SwitchSource(SourceVocal)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Pause(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestMixdownLifecycle(t *testing.T) {
	s := newTestSession()
	s.Ingest(singleBatch())
	if _, err := s.BeginMixdown(); !errors.Is(err, ErrNotDualStem) {
		t.Errorf("Expected ErrNotDualStem, got %v", err)
	}

	s.Ingest(dualBatch(t, ""))
	ticket, err := s.BeginMixdown()
	if err != nil {
		t.Fatalf("BeginMixdown failed: %v", err)
	}
	if string(ticket.Instrumental) != "INS" || string(ticket.Vocal) != "VOC" {
		t.Errorf("Unexpected ticket stems")
	}

	if err := s.CommitMixdown(ticket, []byte("WAV")); err != nil {
		t.Fatalf("CommitMixdown failed: %v", err)
	}
	f, err := s.Audio(SourceMixed)
	if err != nil {
		t.Fatalf("Audio(mixed) failed: %v", err)
	}
	if string(f.Data) != "WAV" || f.ContentType != "audio/wav" {
		t.Errorf("Unexpected mixed audio %+v", f)
	}
	if _, err := s.SwitchSource(SourceMixed); err != nil {
		t.Errorf("Expected mixed source selectable, got %v", err)
	}
}

func TestMixdown_StaleAfterReingest(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, ""))
	ticket, _ := s.BeginMixdown()

	s.Ingest(dualBatch(t, ""))
	if err := s.CommitMixdown(ticket, []byte("OLD")); !errors.Is(err, ErrStale) {
		t.Fatalf("Expected ErrStale, got %v", err)
	}
	if _, err := s.Audio(SourceMixed); KindOf(err) != KindNotFound {
		t.Errorf("Expected no mixed audio, got %v", err)
	}

	ticket, _ = s.BeginMixdown()
	s.Reset()
	if err := s.CommitMixdown(ticket, []byte("OLD")); !errors.Is(err, ErrStale) {
		t.Errorf("Expected ErrStale after reset, got %v", err)
	}
}

func TestFailMixdown_FallsBack(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, ""))
	ticket, _ := s.BeginMixdown()

	if err := s.FailMixdown(ticket, errors.New("decode")); err != nil {
		t.Fatalf("FailMixdown failed: %v", err)
	}
	snap := s.Snapshot()
	if snap.Files.Mixed != MixFailed || snap.Playback.Source != SourceInstrumental {
		t.Errorf("Expected fallback to instrumental, got %s/%s", snap.Files.Mixed, snap.Playback.Source)
	}
}

func TestMixdown_OneJobAtATime(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, ""))

	first, err := s.BeginMixdown()
	if err != nil {
		t.Fatalf("BeginMixdown failed: %v", err)
	}
	if _, err := s.BeginMixdown(); !errors.Is(err, ErrMixdownRunning) || KindOf(err) != KindConflict {
		t.Errorf("Expected ErrMixdownRunning conflict, got %v", err)
	}
	if _, err := s.RetryMixdown(); KindOf(err) != KindConflict {
		t.Errorf("Expected retry of a pending mix to conflict, got %v", err)
	}

	if err := s.FailMixdown(first, errors.New("timeout")); err != nil {
		t.Fatalf("FailMixdown failed: %v", err)
	}
	second, err := s.RetryMixdown()
	if err != nil {
		t.Fatalf("RetryMixdown failed: %v", err)
	}
	if second.Seq == first.Seq {
		t.Errorf("Expected a new ticket sequence, got %d twice", second.Seq)
	}

	if err := s.CommitMixdown(second, []byte("WAV")); err != nil {
		t.Fatalf("CommitMixdown failed: %v", err)
	}

	// A late result from the superseded job changes nothing
	if err := s.FailMixdown(first, errors.New("breaker open")); KindOf(err) != KindStale {
		t.Errorf("Expected stale fail, got %v", err)
	}
	if err := s.CommitMixdown(first, []byte("OLD")); KindOf(err) != KindStale {
		t.Errorf("Expected stale commit, got %v", err)
	}
	f, err := s.Audio(SourceMixed)
	if err != nil {
		t.Fatalf("Expected mixed audio to survive, got %v", err)
	}
	if string(f.Data) != "WAV" {
		t.Errorf("Expected the newer mix, got %q", f.Data)
	}

	if _, err := s.BeginMixdown(); !errors.Is(err, ErrMixdownReady) {
		t.Errorf("Expected ErrMixdownReady, got %v", err)
	}
	if _, err := s.RetryMixdown(); KindOf(err) != KindConflict {
		t.Errorf("Expected retry of a ready mix to conflict, got %v", err)
	}
	if s.Snapshot().Files.Mixed != MixReady {
		t.Errorf("Expected mix to stay ready")
	}
}

func TestExportLifecycle(t *testing.T) {
	s := newTestSession()
	if _, err := s.BeginExport(); !errors.Is(err, export.ErrNothingToExport) {
		t.Errorf("Expected ErrNothingToExport, got %v", err)
	}

	s.Ingest(dualBatch(t, threeLines))
	ticket, err := s.BeginExport()
	if err != nil {
		t.Fatalf("BeginExport failed: %v", err)
	}
	if ticket.Project.Prefix != "song" || len(ticket.Project.Lines) != 3 || ticket.Project.Vocal == nil {
		t.Errorf("Unexpected project %+v", ticket.Project)
	}

	// Playback does not invalidate an export
	s.SetPosition(1)
	if err := s.CommitExport(ticket); err != nil {
		t.Fatalf("CommitExport failed: %v", err)
	}
	if s.State() != StateExported {
		t.Errorf("Expected exported, got %s", s.State())
	}

	s.AddLine("more", -1)
	if s.State() != StateEditing {
		t.Errorf("Expected editing after a new edit, got %s", s.State())
	}
}

func TestExport_StaleAfterEdit(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	ticket, _ := s.BeginExport()

	s.UpdateLine(s.Lines()[0].ID, "changed")
	err := s.CommitExport(ticket)
	if KindOf(err) != KindStale || !errors.Is(err, ErrEditedDuringExport) {
		t.Errorf("Expected stale edited export, got %v", err)
	}
	if s.State() == StateExported {
		t.Error("Expected state not to be exported")
	}
}

func TestExport_StaleAfterReset(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	ticket, _ := s.BeginExport()

	s.Reset()
	err := s.CommitExport(ticket)
	if !errors.Is(err, ErrStale) || errors.Is(err, ErrEditedDuringExport) {
		t.Errorf("Expected a plain stale error after reset, got %v", err)
	}

	s.Ingest(dualBatch(t, threeLines))
	ticket, _ = s.BeginExport()
	s.Ingest(dualBatch(t, threeLines))
	if err := s.CommitExport(ticket); errors.Is(err, ErrEditedDuringExport) || KindOf(err) != KindStale {
		t.Errorf("Expected re-ingest to make the export stale, got %v", err)
	}
	if s.State() == StateExported {
		t.Error("Expected state not to be exported")
	}
}

func TestAudio(t *testing.T) {
	s := newTestSession()
	s.Ingest(singleBatch())

	f, err := s.Audio(SourceMain)
	if err != nil || string(f.Data) != "MAIN" {
		t.Errorf("Audio(main) = %v, %v", f, err)
	}
	if _, err := s.Audio(SourceVocal); KindOf(err) != KindNotFound {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := s.Audio(Source("bogus")); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid, got %v", err)
	}
}

func TestParseSource(t *testing.T) {
	for _, in := range []string{"main", "mixed", "instrumental", "vocal"} {
		if _, err := ParseSource(in); err != nil {
			t.Errorf("ParseSource(%q) failed: %v", in, err)
		}
	}
	if _, err := ParseSource("left"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
}

func TestReset(t *testing.T) {
	s := newTestSession()
	s.Ingest(dualBatch(t, threeLines))
	s.UpdateMetadata("lang", "en")
	s.Reset()

	snap := s.Snapshot()
	if snap.State != StateEmpty || len(snap.Lines) != 0 || snap.Files.Instrumental != nil {
		t.Errorf("Expected empty session after reset, got %+v", snap)
	}
	if snap.Metadata.Extra != nil || snap.Metadata.CreatedBy != lrc.DefaultCreatedBy {
		t.Errorf("Expected default metadata after reset, got %+v", snap.Metadata)
	}
}

func TestError(t *testing.T) {
	err := newError("op", KindNotFound, ErrNotFound)
	if err.Error() != "op: session not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("Expected errors.Is to unwrap")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("Expected internal kind for plain errors")
	}
	if KindStale.String() != "stale" {
		t.Errorf("KindStale.String() = %q", KindStale.String())
	}
}
