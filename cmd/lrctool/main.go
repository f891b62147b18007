// Command lrctool runs the editor's LRC and audio pipeline from the shell:
// parse and format lyrics, resolve the active line, mix stems and build
// project archives without starting the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"lrc-editor-go/audio"
	"lrc-editor-go/circuitbreaker"
	"lrc-editor-go/export"
	"lrc-editor-go/ingest"
	"lrc-editor-go/lrc"
	"lrc-editor-go/session"
	"lrc-editor-go/timecode"
	"lrc-editor-go/timeline"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	argStrict     bool
	argJSON       bool
	argOutputPath string
	argFFmpegPath string
	argSampleRate int
	argCeiling    float64
	argTimeout    time.Duration
	argVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "lrctool",
	Short:         "Offline tools for LRC lyrics and stem mixdowns",
	Long:          "A command-line companion to the LRC editor server for parsing, formatting, mixing and exporting.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(cmd.ErrOrStderr())
		log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
		if argVerbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [file.lrc]",
	Short: "Parse an LRC file and print its lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := parseDocument(data, argStrict)
		if err != nil {
			return err
		}
		tl := timeline.FromDocument(doc.Lines, timeline.NewUUID)

		out := cmd.OutOrStdout()
		if argJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"metadata": doc.Metadata,
				"lines":    tl.Lines(),
				"stats":    tl.Stats(),
			})
		}

		for i, line := range tl.Lines() {
			fmt.Fprintf(out, "%3d  %-8s %-8s %s\n", i, timecode.FormatPtr(line.StartTime), timecode.FormatPtr(line.EndTime), line.Text)
		}
		st := tl.Stats()
		fmt.Fprintf(out, "%d lines, %d timed, %d completed\n", st.TotalLines, st.TimedLines, st.CompletedLines)
		return nil
	},
}

var formatCmd = &cobra.Command{
	Use:   "format [file.json]",
	Short: "Render {metadata, lines} JSON as LRC text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var doc lrc.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}
		return writeOutput(cmd, []byte(lrc.Serialize(doc.Metadata, doc.Lines)))
	},
}

var activeCmd = &cobra.Command{
	Use:   "active [file.lrc] [seconds]",
	Short: "Print the line active at a playback position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		position, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[1], err)
		}
		doc, err := parseDocument(data, false)
		if err != nil {
			return err
		}

		lines := timeline.FromDocument(doc.Lines, timeline.NewUUID).Lines()
		index := timeline.ActiveIndex(lines, position)
		if index == timeline.NoLine {
			fmt.Fprintln(cmd.OutOrStdout(), "-1")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", index, lines[index].Text)
		return nil
	},
}

var mixCmd = &cobra.Command{
	Use:   "mix [instrumental] [vocal]",
	Short: "Mix an instrumental and a vocal stem into a 16-bit WAV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ins, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		voc, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), argTimeout)
		defer cancel()

		wav, err := newMixdown().Run(ctx, ins, voc)
		if err != nil {
			return err
		}
		return writeOutput(cmd, wav)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [files...]",
	Short: "Build a project ZIP from audio files and an optional .lrc",
	Long: "Build a project ZIP the way the editor does: one audio file or an\n" +
		"instrumental/vocal pair named prefix_ins and prefix_vol, plus an .lrc file.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := make([]ingest.File, 0, len(args))
		for _, name := range args {
			data, err := os.ReadFile(name)
			if err != nil {
				return err
			}
			files = append(files, ingest.File{Name: filepath.Base(name), Data: data})
		}

		batch, err := ingest.Classify(files)
		if err != nil {
			return err
		}
		sess := session.New("lrctool", session.Options{})
		if err := sess.Ingest(batch); err != nil {
			return err
		}

		ticket, err := sess.BeginExport()
		if err != nil {
			return err
		}
		archive, err := export.BuildArchive(cmd.Context(), ticket.Project)
		if err != nil {
			return err
		}

		if argOutputPath == "" {
			argOutputPath = export.ArchiveFileName(ticket.Project.Metadata.Title, ticket.Project.Prefix)
		}
		return writeOutput(cmd, archive)
	},
}

func parseDocument(data []byte, strict bool) (*lrc.Document, error) {
	if !strict {
		return lrc.ParseBytes(data)
	}
	if _, err := lrc.ParseBytes(data); err != nil {
		return nil, err
	}
	doc, diags, _ := lrc.ParseStrict(string(data))
	if err := diags.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func newMixdown() *audio.Mixdown {
	var fallback audio.Decoder
	if argFFmpegPath != "" {
		breaker := circuitbreaker.New(circuitbreaker.Config{Name: "ffmpeg", Threshold: 1, Cooldown: time.Minute})
		fallback = audio.NewFFmpegDecoder(argFFmpegPath, argSampleRate, breaker)
	}
	return &audio.Mixdown{
		Decoder: audio.NewSniffDecoder(fallback),
		Ceiling: float32(argCeiling),
	}
}

// writeOutput writes data to --output, or to stdout when it is empty or "-"
func writeOutput(cmd *cobra.Command, data []byte) error {
	var w io.Writer = cmd.OutOrStdout()
	if argOutputPath != "" && argOutputPath != "-" {
		f, err := os.Create(argOutputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		log.Infof("Writing %d bytes to %s", len(data), argOutputPath)
	}
	_, err := w.Write(data)
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&argVerbose, "verbose", "v", false, "Enable debug logging")

	// Parse command flags
	parseCmd.Flags().BoolVarP(&argStrict, "strict", "s", false, "Fail on lines that are neither directives nor timed lyrics")
	parseCmd.Flags().BoolVarP(&argJSON, "json", "j", false, "Print metadata, lines and stats as JSON")

	// Output flags
	for _, c := range []*cobra.Command{formatCmd, mixCmd, exportCmd} {
		c.Flags().StringVarP(&argOutputPath, "output", "o", "", "Output file path (default stdout, export defaults to the archive name)")
	}

	// Mix command flags
	mixCmd.Flags().StringVar(&argFFmpegPath, "ffmpeg", "", "ffmpeg binary for formats other than WAV and MP3")
	mixCmd.Flags().IntVar(&argSampleRate, "sample-rate", 44100, "Sample rate ffmpeg decodes to")
	mixCmd.Flags().Float64Var(&argCeiling, "ceiling", 0, "Hard-limit the mix to this peak (0 disables)")
	mixCmd.Flags().DurationVar(&argTimeout, "timeout", 2*time.Minute, "Give up decoding after this long")

	rootCmd.AddCommand(parseCmd, formatCmd, activeCmd, mixCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
