package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"emotion-cam-go/internal/core/processor"
	"emotion-cam-go/internal/integrations/opencv"
	"emotion-cam-go/internal/recorder"
	"emotion-cam-go/internal/session"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var processOpts struct {
	input    string
	detector string
	record   bool
	output   string
	every    int
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run emotion detection over a video file and write a session log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOpts.input, "input", "i", "", "Path to the video file")
	processCmd.Flags().StringVarP(&processOpts.detector, "detector", "d", "", "Detector name (default: configured or first available)")
	processCmd.Flags().BoolVarP(&processOpts.record, "record", "r", false, "Write an annotated copy of the video")
	processCmd.Flags().StringVarP(&processOpts.output, "output", "o", "", "Annotated video path (default: <recording.output_dir>/<input>_annotated.mp4)")
	processCmd.Flags().IntVarP(&processOpts.every, "nth-frame", "n", 1, "Analyze every nth frame")
	processCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if processOpts.every < 1 {
		processOpts.every = 1
	}

	vc, err := gocv.VideoCaptureFile(processOpts.input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", processOpts.input, err)
	}
	defer vc.Close()

	total := int(vc.Get(gocv.VideoCaptureFrameCount))
	fps := vc.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = cfg.Recording.FPS
	}
	size := image.Pt(int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight)))

	_, store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ocv := opencv.NewService(cfg.Detectors, 1)
	manager, name, err := buildManager(ctx, cfg, ocv, processOpts.detector)
	if err != nil {
		return err
	}
	defer manager.Close()

	base := strings.TrimSuffix(filepath.Base(processOpts.input), filepath.Ext(processOpts.input))
	logger := session.NewLogger(cfg.Session.OutputDir, store)
	rec := recorder.New(nil)

	pipeline := processor.NewPipeline(manager, processor.PipelineOptions{
		Session:  logger,
		Recorder: rec,
	})
	if err := pipeline.SetDetector(name); err != nil {
		return err
	}

	if processOpts.record {
		out := processOpts.output
		if out == "" {
			out = filepath.Join(cfg.Recording.OutputDir, base+"_annotated.mp4")
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
		if err := rec.Start(out, fps, size); err != nil {
			return err
		}
	}

	if err := logger.Start(base); err != nil {
		rec.Stop()
		return err
	}

	fmt.Fprintf(os.Stderr, "Processing %s (%dx%d, %.1f fps) with %s\n", processOpts.input, size.X, size.Y, fps, name)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	frame := gocv.NewMat()
	defer frame.Close()

	n := 0
loop:
	for {
		select {
		case <-ctx.Done():
			log.Warn("Processing interrupted")
			break loop
		default:
		}

		if ok := vc.Read(&frame); !ok || frame.Empty() {
			break
		}
		if n%processOpts.every == 0 {
			pipeline.ProcessFrame(frame)
		} else if rec.IsRecording() {
			// nicht analysierte Bilder unverändert übernehmen, damit die Länge stimmt
			rec.WriteFrame(frame)
		}
		n++
		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	files := logger.Files()
	summary := logger.Stop()
	info := rec.Stop()

	printSummary(summary, files, info)
	return nil
}

func printSummary(s session.Summary, files session.Files, info recorder.Info) {
	if s.IsEmpty() {
		fmt.Println("No detections recorded.")
		return
	}

	fmt.Printf("Records:      %d (%.2f per minute)\n", s.TotalRecords, s.AvgRecordsPerMinute)
	fmt.Printf("Most common:  %s\n", s.MostCommonEmotion)
	fmt.Printf("Confidence:   avg %.3f, min %.3f, max %.3f\n",
		s.ConfidenceStats.Average, s.ConfidenceStats.Minimum, s.ConfidenceStats.Maximum)

	emotions := append([]string(nil), s.Emotions()...)
	sort.SliceStable(emotions, func(i, j int) bool {
		return s.EmotionDistribution[emotions[i]] > s.EmotionDistribution[emotions[j]]
	})
	for _, e := range emotions {
		fmt.Printf("  %-18s %6d  %6.2f%%\n", e, s.EmotionDistribution[e], s.EmotionPercentages[e])
	}

	fmt.Printf("Session log:  %s\n", files.CSV)
	fmt.Printf("JSON:         %s\n", files.JSON)
	fmt.Printf("Report:       %s\n", files.Summary)
	if info.Filename != "" {
		fmt.Printf("Video:        %s (%d frames)\n", info.Filename, info.FrameCount)
	}
}
