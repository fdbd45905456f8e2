package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sorapipe/compositor/config"
	"github.com/sorapipe/compositor/internal/codec"
	"github.com/sorapipe/compositor/internal/container/mp4"
	"github.com/sorapipe/compositor/internal/container/webm"
	"github.com/sorapipe/compositor/internal/engine"
	"github.com/sorapipe/compositor/internal/graph"
	"github.com/sorapipe/compositor/internal/ingest"
	"github.com/sorapipe/compositor/internal/layout"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/mixer"
	"github.com/sorapipe/compositor/internal/progress"
	"github.com/sorapipe/compositor/internal/sink"
	"github.com/sorapipe/compositor/internal/stream"
	"github.com/sorapipe/compositor/internal/trim"
	"github.com/sorapipe/compositor/internal/util"
)

// NewComposeCommand builds the "compose" subcommand: resolve a
// recording's report-*.json, wire every participant archive into a
// shared mixing graph, and run it to completion against a single output
// file.
func NewComposeCommand() *cobra.Command {
	var (
		reportPath string
		outPath    string
		format     string
		width      int
		height     int
		verbose    bool
		progressWS string
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a recording's per-participant archives into one output file",
		Long: `compose reads a Sora-style report-*.json, resolves every participant
archive it references, mixes their audio and video on a shared session
clock, and writes the result to a single MP4 or WebM file.

Decode/encode is driven through a pluggable engine.Decoder/engine.Encoder
seam; this binary ships only identity pass-through placeholders, so
composing real compressed archives requires wiring a concrete codec
engine (openh264, libvpx, dav1d, opus, fdk_aac, ...) ahead of this
command — see internal/engine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			util.InitLogger(verbose)
			util.SetupGlobalLogger()
			return runCompose(reportPath, outPath, format, width, height, progressWS)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&reportPath, "report", "", "path to the recording's report-*.json (required)")
	flags.StringVarP(&outPath, "output", "o", "", "output file path (required)")
	flags.StringVar(&format, "format", "", "output container: mp4 or webm (default from config)")
	flags.IntVar(&width, "width", 1280, "composited canvas width (even)")
	flags.IntVar(&height, "height", 720, "composited canvas height (even)")
	flags.BoolVarP(&verbose, "verbose", "V", false, "verbose logging")
	flags.StringVar(&progressWS, "progress-ws", "", "optional host:port to serve a websocket streaming mixer progress while composing")
	cmd.MarkFlagRequired("report")
	cmd.MarkFlagRequired("output")

	return cmd
}

// printSourceTable renders the resolved archives as a table: source id,
// container, which media kinds it carries, and its path.
func printSourceTable(sources []layout.SourceInfo) {
	columns := []util.TableColumn{
		{Header: "SOURCE", Key: "source"},
		{Header: "FORMAT", Key: "format"},
		{Header: "A", Key: "audio"},
		{Header: "V", Key: "video"},
		{Header: "PATH", Key: "path"},
	}
	rows := make([]map[string]interface{}, 0, len(sources))
	for _, src := range sources {
		rows = append(rows, map[string]interface{}{
			"source": string(src.ID),
			"format": string(src.Format),
			"audio":  boolMark(src.Audio),
			"video":  boolMark(src.Video),
			"path":   src.ArchivePath,
		})
	}
	util.RenderTable(columns, rows)
}

func boolMark(b bool) string {
	if b {
		return "x"
	}
	return "-"
}

// newSpinner builds a spinner that writes nothing when stdout isn't a
// terminal, so piped/redirected runs don't get interleaved ANSI noise.
func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = suffix
	if !util.IsTerminal() {
		s.Writer = io.Discard
	}
	return s
}

// sourceTracks is what one resolved archive contributes to the graph
// once its container has been opened and its feeder/decoder registered.
type sourceTracks struct {
	sourceID   media.SourceId
	videoOutID media.StreamId
	audioOutID media.StreamId
	haveVideo  bool
	haveAudio  bool
}

func runCompose(reportPath, outPath, format string, width, height int, progressWSAddr string) error {
	if format == "" {
		format = config.OutputFormat()
	}
	if format != "mp4" && format != "webm" {
		return fmt.Errorf("unsupported output format %q (want mp4 or webm)", format)
	}

	runID := uuid.New().String()
	slog.Default().Info("compose starting", "run_id", runID, "report", reportPath, "format", format)

	s := newSpinner(" resolving archives...")
	s.Start()
	sources, err := layout.ResolveArchives(reportPath)
	s.Stop()
	if err != nil {
		return fmt.Errorf("resolve archives: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("report %s references no archives", reportPath)
	}
	color.New(color.FgGreen).Printf("resolved %d source archive(s)\n", len(sources))
	printSourceTable(sources)

	outW, ok := media.NewEvenUsize(width)
	if !ok {
		return fmt.Errorf("--width must be even, got %d", width)
	}
	outH, ok := media.NewEvenUsize(height)
	if !ok {
		return fmt.Errorf("--height must be even, got %d", height)
	}

	// WebM only carries VP8/VP9 video per internal/container/webm's
	// codecID mapping; MP4 output uses H.264, matching the sample-entry
	// synthesis internal/sampleentry ships for a fully parameterized
	// avcC record.
	videoCodec := media.CodecH264
	if format == "webm" {
		videoCodec = media.CodecVP9
	}

	engines := engine.Default()
	if err := engines.RequireDecoder(videoCodec); err != nil {
		return err
	}
	if err := engines.RequireEncoder(videoCodec); err != nil {
		return err
	}
	if err := engines.RequireDecoder(media.CodecOpus); err != nil {
		return err
	}
	if err := engines.RequireEncoder(media.CodecOpus); err != nil {
		return err
	}

	b := graph.NewBuilder()

	openFiles := make([]*os.File, 0, len(sources))
	defer func() {
		for _, f := range openFiles {
			f.Close()
		}
	}()

	tracks := make([]sourceTracks, 0, len(sources))
	for _, src := range sources {
		f, err := os.Open(src.ArchivePath)
		if err != nil {
			return fmt.Errorf("open archive %s: %w", src.ArchivePath, err)
		}
		openFiles = append(openFiles, f)

		t := sourceTracks{sourceID: src.ID}

		switch src.Format {
		case layout.ContainerMp4:
			rd, err := mp4.Open(f, src.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", src.ArchivePath, err)
			}
			for i := 0; i < rd.TrackCount(); i++ {
				trackCodec := rd.TrackCodec(i)
				if err := engines.RequireDecoder(trackCodec); err != nil {
					return fmt.Errorf("%s: %w", src.ArchivePath, err)
				}
				rawID := b.NewEdge()
				decID := b.NewEdge()
				if isVideoCodec(trackCodec) {
					b.Register(ingest.NewMP4Feeder(fmt.Sprintf("mp4_feeder[%s/video]", src.ID), rd, i, rawID, b.Edge(rawID)))
					b.Register(codec.NewVideoDecoder(fmt.Sprintf("video_decoder[%s]", src.ID), trackCodec, engine.NullDecoder{}, rawID, decID, b.Edge(rawID), b.Edge(decID)))
					t.videoOutID, t.haveVideo = decID, true
				} else {
					b.Register(ingest.NewMP4Feeder(fmt.Sprintf("mp4_feeder[%s/audio]", src.ID), rd, i, rawID, b.Edge(rawID)))
					b.Register(codec.NewAudioDecoder(fmt.Sprintf("audio_decoder[%s]", src.ID), engine.NullDecoder{}, rawID, decID, b.Edge(rawID), b.Edge(decID)))
					t.audioOutID, t.haveAudio = decID, true
				}
			}

		case layout.ContainerWebm:
			rd, err := webm.Open(f, src.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", src.ArchivePath, err)
			}
			audioTrack, videoTrack := -1, -1
			for i := 0; i < rd.TrackCount(); i++ {
				if err := engines.RequireDecoder(rd.TrackCodec(i)); err != nil {
					return fmt.Errorf("%s: %w", src.ArchivePath, err)
				}
				if isVideoCodec(rd.TrackCodec(i)) {
					videoTrack = i
				} else {
					audioTrack = i
				}
			}

			var audioRawID, videoRawID media.StreamId
			if audioTrack >= 0 {
				audioRawID = b.NewEdge()
			}
			if videoTrack >= 0 {
				videoRawID = b.NewEdge()
			}
			b.Register(ingest.NewWebMFeeder(fmt.Sprintf("webm_feeder[%s]", src.ID), rd, audioTrack, videoTrack, audioRawID, videoRawID, b.Edge(audioRawID), b.Edge(videoRawID)))

			if audioTrack >= 0 {
				decID := b.NewEdge()
				b.Register(codec.NewAudioDecoder(fmt.Sprintf("audio_decoder[%s]", src.ID), engine.NullDecoder{}, audioRawID, decID, b.Edge(audioRawID), b.Edge(decID)))
				t.audioOutID, t.haveAudio = decID, true
			}
			if videoTrack >= 0 {
				decID := b.NewEdge()
				b.Register(codec.NewVideoDecoder(fmt.Sprintf("video_decoder[%s]", src.ID), rd.TrackCodec(videoTrack), engine.NullDecoder{}, videoRawID, decID, b.Edge(videoRawID), b.Edge(decID)))
				t.videoOutID, t.haveVideo = decID, true
			}

		default:
			return fmt.Errorf("%s: unsupported container format %q", src.ArchivePath, src.Format)
		}

		tracks = append(tracks, t)
	}

	videoSourceOf := make(map[media.StreamId]media.SourceId)
	var gridSources []media.SourceId
	var videoEdgeIDs, audioEdgeIDs []media.StreamId
	for _, t := range tracks {
		if t.haveVideo {
			videoEdgeIDs = append(videoEdgeIDs, t.videoOutID)
			videoSourceOf[t.videoOutID] = t.sourceID
			gridSources = append(gridSources, t.sourceID)
		}
		if t.haveAudio {
			audioEdgeIDs = append(audioEdgeIDs, t.audioOutID)
		}
	}

	const videoFrameRateNum, videoFrameRateDen uint32 = 30, 1

	videoOutID := b.NewEdge()
	videoMixer := mixer.NewVideoMixer(videoFrameRateNum, videoFrameRateDen, edgesOf(b, videoEdgeIDs), videoSourceOf, outW, outH, &mixer.GridLayout{Sources: gridSources}, videoOutID, b.Edge(videoOutID))
	b.Register(videoMixer)

	audioOutID := b.NewEdge()
	audioMixer := mixer.NewAudioMixer(trim.New(nil), edgesOf(b, audioEdgeIDs), audioOutID, b.Edge(audioOutID))
	b.Register(audioMixer)

	frameRateNum, frameRateDen := videoMixer.FrameRate()
	videoEncOutID := b.NewEdge()
	videoEnc, err := codec.NewVideoEncoder("video_encoder", videoCodec, engine.NullEncoder{}, outW, outH, frameRateNum, frameRateDen, videoOutID, videoEncOutID, b.Edge(videoOutID), b.Edge(videoEncOutID))
	if err != nil {
		return err
	}
	b.Register(videoEnc)

	audioEncOutID := b.NewEdge()
	audioEnc, err := codec.NewAudioEncoder("audio_encoder", media.CodecOpus, engine.NullEncoder{}, audioOutID, audioEncOutID, b.Edge(audioOutID), b.Edge(audioEncOutID))
	if err != nil {
		return err
	}
	b.Register(audioEnc)

	// Write to a temporary file beside the destination and rename into
	// place once the container is fully finalized, so a failed or
	// interrupted run never leaves a truncated file at outPath.
	tmpPath := outPath + ".compositor-" + util.GenerateRandomString(8) + ".tmp"
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create output %s: %w", tmpPath, err)
	}
	defer func() {
		outFile.Close()
		os.Remove(tmpPath)
	}()

	var out interface{ Close() error }
	switch format {
	case "mp4":
		w := mp4.NewWriter(outFile)
		s := sink.NewMP4Sink("mp4_sink", w, videoCodec, videoEnc.Params(), outW, outH, videoEncOutID, audioEncOutID, b.Edge(videoEncOutID), b.Edge(audioEncOutID))
		b.Register(s)
		out = s
	case "webm":
		w, err := webm.NewWriter(outFile, []webm.TrackSpec{
			{Codec: videoCodec, Width: outW, Height: outH},
			{Codec: media.CodecOpus},
		})
		if err != nil {
			return fmt.Errorf("init webm writer: %w", err)
		}
		s := sink.NewWebMSink("webm_sink", w, videoEncOutID, audioEncOutID, b.Edge(videoEncOutID), b.Edge(audioEncOutID))
		b.Register(s)
		out = s
	}

	if err := os.MkdirAll(config.Home(), 0o755); err != nil {
		return fmt.Errorf("create working dir: %w", err)
	}

	sched, err := b.Build()
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	if progressWSAddr != "" {
		bcast := progress.NewBroadcaster(progressWSAddr)
		bcast.Register("video_mixer", func() string { return videoMixer.Stats().Snapshot().Report() })
		bcast.Register("audio_mixer", func() string { return audioMixer.Stats().Snapshot().Report() })
		if err := bcast.Start(); err != nil {
			return fmt.Errorf("start progress websocket: %w", err)
		}
		defer bcast.Close()
		color.New(color.FgCyan).Printf("progress websocket listening on ws://%s/progress\n", progressWSAddr)
	}

	s = newSpinner(fmt.Sprintf(" composing %s...", outPath))
	s.Start()
	runErr := sched.Run()
	s.Stop()
	if runErr != nil {
		out.Close()
		return fmt.Errorf("compose: %w", runErr)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, outPath, err)
	}

	color.New(color.FgGreen, color.Bold).Printf("wrote %s\n", outPath)
	return nil
}

func isVideoCodec(c media.CodecName) bool {
	switch c {
	case media.CodecH264, media.CodecH265, media.CodecVP8, media.CodecVP9, media.CodecAV1:
		return true
	default:
		return false
	}
}

// edgesOf looks up the backing stream.Edge for each StreamId, for
// mixer constructors that key their input map by StreamId.
func edgesOf(b *graph.Builder, ids []media.StreamId) map[media.StreamId]*stream.Edge {
	out := make(map[media.StreamId]*stream.Edge, len(ids))
	for _, id := range ids {
		out[id] = b.Edge(id)
	}
	return out
}
