package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	annotator "github.com/menta2k/smoke-annotator"
	"github.com/menta2k/smoke-annotator/internal/config"
	"github.com/menta2k/smoke-annotator/internal/logger"
	"github.com/menta2k/smoke-annotator/internal/utils"
	"github.com/menta2k/smoke-annotator/pkg/annotation"
	"github.com/menta2k/smoke-annotator/pkg/client"
	"github.com/menta2k/smoke-annotator/pkg/contract"
	"github.com/menta2k/smoke-annotator/pkg/detection"
	"github.com/menta2k/smoke-annotator/pkg/llamacpp"
	"github.com/menta2k/smoke-annotator/pkg/ollama"
	"github.com/menta2k/smoke-annotator/pkg/processing"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

const usage = `usage: %s [-config file] <command> [flags]

commands:
  import    build a sequence annotation from a detections file
  report    print completion and validation issues of a sequence annotation
  classify  classify a sequence box as smoke or false positive
  missed    answer the missed smoke question (yes|no|unset)
  finalize  move a complete sequence to annotated
  reset     move an annotated sequence back to ready_to_annotate
  detect    run the vision model on frame images and write detections
            (-check asks the model to describe the first frame first)
  measure   print natural size and fitted display rect of a frame image
            (-out writes a letterboxed preview)
`

type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	codec *contract.Codec
}

func main() {
	configPath := flag.String("config", "", "config file (default: "+config.GetConfigPath()+" if present)")
	flag.Usage = func() { fmt.Fprintf(os.Stderr, usage, filepath.Base(os.Args[0])) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	a := &app{cfg: cfg, log: log, codec: contract.NewCodec()}
	if err := a.run(flag.Arg(0), flag.Args()[1:]); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) run(cmd string, args []string) error {
	switch cmd {
	case "import":
		return a.importCmd(args)
	case "report":
		return a.reportCmd(args)
	case "classify":
		return a.classifyCmd(args)
	case "missed":
		return a.missedCmd(args)
	case "finalize":
		return a.stageCmd(args, annotation.Finalize{})
	case "reset":
		return a.stageCmd(args, annotation.Reset{})
	case "detect":
		return a.detectCmd(args)
	case "measure":
		return a.measureCmd(args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) workspace() *annotator.Workspace {
	return annotator.NewWithOptions(annotator.OptionsFromConfig(a.cfg, a.log))
}

func (a *app) loadSequence(path string) (*annotator.Workspace, error) {
	data, err := contract.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seq, err := a.codec.DecodeSequenceAnnotation(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ws := a.workspace()
	ws.LoadSequence(seq, nil)
	return ws, nil
}

func (a *app) saveSequence(ws *annotator.Workspace, path string) error {
	data, err := a.codec.EncodeSequenceAnnotation(ws.Sequence())
	if err != nil {
		return fmt.Errorf("failed to encode sequence annotation: %w", err)
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := contract.WriteFile(path, data); err != nil {
		return err
	}
	a.log.WithField("path", path).Info("sequence annotation written")
	return nil
}

func (a *app) importCmd(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("detections", "", "detections JSON file")
	id := fs.Int64("id", 0, "sequence id")
	out := fs.String("out", "sequence.json", "output sequence annotation file")
	_ = fs.Parse(args)
	if *in == "" {
		return errors.New("import: -detections is required")
	}

	data, err := contract.ReadFile(*in)
	if err != nil {
		return err
	}
	detections, err := a.codec.DecodeDetections(data)
	if err != nil {
		return err
	}

	ws := a.workspace()
	seq := ws.ImportSequence(*id, detections)
	fmt.Printf("imported %d detections into %d sequence boxes\n", len(detections), seq.Len())
	return a.saveSequence(ws, *out)
}

func (a *app) reportCmd(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("sequence", "", "sequence annotation file")
	_ = fs.Parse(args)
	if *in == "" {
		return errors.New("report: -sequence is required")
	}

	ws, err := a.loadSequence(*in)
	if err != nil {
		return err
	}
	seq := ws.Sequence()
	c := ws.Completion()

	fmt.Printf("sequence %d  stage=%s  missed_smoke=%s\n", seq.SequenceID(), seq.Stage(), seq.MissedSmoke())
	fmt.Printf("boxes: %d/%d classified (%d%%)  complete=%t\n", c.Completed, c.Total, c.Percentage, c.IsComplete)
	for i, b := range seq.Boxes() {
		fmt.Printf("  box %d: frames=%d smoke=%t type=%s fp=%v\n", i, len(b.Bboxes), b.IsSmoke, b.SmokeType, b.FalsePositiveTypes)
	}
	for _, msg := range ws.ValidationErrors() {
		fmt.Printf("  ! %s\n", msg)
	}
	return nil
}

func (a *app) classifyCmd(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	in := fs.String("sequence", "", "sequence annotation file")
	box := fs.Int("box", -1, "sequence box index")
	smoke := fs.String("smoke", "", "smoke type: "+joinSmokeTypes())
	fp := fs.String("fp", "", "comma separated false positive types to toggle")
	clearBox := fs.Bool("clear", false, "remove the box classification")
	out := fs.String("out", "", "output file (default: overwrite input)")
	_ = fs.Parse(args)
	if *in == "" || *box < 0 {
		return errors.New("classify: -sequence and -box are required")
	}

	ws, err := a.loadSequence(*in)
	if err != nil {
		return err
	}

	var actions []annotation.Action
	switch {
	case *clearBox:
		actions = append(actions, annotation.ClearClassification{Box: *box})
	case *smoke != "":
		actions = append(actions, annotation.ClassifySmoke{Box: *box, SmokeType: types.SmokeType(*smoke)})
	case *fp != "":
		for _, t := range strings.Split(*fp, ",") {
			actions = append(actions, annotation.ToggleFalsePositive{Box: *box, Type: types.FalsePositiveType(strings.TrimSpace(t))})
		}
	default:
		return errors.New("classify: one of -smoke, -fp or -clear is required")
	}

	for _, act := range actions {
		if err := ws.Review(act); err != nil {
			return err
		}
	}
	return a.saveSequence(ws, outOr(*out, *in))
}

func (a *app) missedCmd(args []string) error {
	fs := flag.NewFlagSet("missed", flag.ExitOnError)
	in := fs.String("sequence", "", "sequence annotation file")
	answer := fs.String("answer", "", "yes, no or unset")
	out := fs.String("out", "", "output file (default: overwrite input)")
	_ = fs.Parse(args)

	var review annotation.MissedSmokeReview
	switch strings.ToLower(*answer) {
	case "yes":
		review = annotation.MissedSmokeYes
	case "no":
		review = annotation.MissedSmokeNo
	case "unset":
		review = annotation.MissedSmokeUnreviewed
	default:
		return fmt.Errorf("missed: -answer must be yes, no or unset, got %q", *answer)
	}

	ws, err := a.loadSequence(*in)
	if err != nil {
		return err
	}
	if err := ws.Review(annotation.SetMissedSmoke{Review: review}); err != nil {
		return err
	}
	return a.saveSequence(ws, outOr(*out, *in))
}

func (a *app) stageCmd(args []string, action annotation.Action) error {
	fs := flag.NewFlagSet("stage", flag.ExitOnError)
	in := fs.String("sequence", "", "sequence annotation file")
	out := fs.String("out", "", "output file (default: overwrite input)")
	_ = fs.Parse(args)

	ws, err := a.loadSequence(*in)
	if err != nil {
		return err
	}

	if ws.Sequence().Stage() == annotation.StageImported {
		if _, ok := action.(annotation.Finalize); ok {
			if err := ws.Review(annotation.MarkReady{}); err != nil {
				return err
			}
		}
	}

	if err := ws.Review(action); err != nil {
		var incomplete *annotation.IncompleteError
		if errors.As(err, &incomplete) {
			for _, issue := range incomplete.Issues {
				fmt.Printf("  ! %s\n", issue.Error())
			}
		}
		return err
	}
	fmt.Printf("sequence %d is now %s\n", ws.Sequence().SequenceID(), ws.Sequence().Stage())
	return a.saveSequence(ws, outOr(*out, *in))
}

func (a *app) detectCmd(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	dir := fs.String("in", "", "frame image file or directory")
	out := fs.String("out", "detections.json", "output detections file")
	check := fs.Bool("check", false, "ask the model to describe the first frame before the batch")
	_ = fs.Parse(args)
	if *dir == "" {
		return errors.New("detect: -in is required")
	}
	if !a.cfg.Detector.Enabled {
		return errors.New("detect: detector is disabled (set detector.enabled or ANNOTATOR_DETECTOR_ENABLED=true)")
	}

	vision, err := a.visionClient()
	if err != nil {
		return err
	}
	detector := detection.NewDetector(vision, detection.Config{
		Model:          a.cfg.Detector.Model,
		MinConfidence:  a.cfg.Detector.MinConfidence,
		MergeThreshold: a.cfg.Annotation.DedupThreshold,
	})
	processor := processing.NewProcessor()

	frames := []string{*dir}
	if utils.DirExists(*dir) {
		if frames, err = utils.ListImageFiles(*dir); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if *check && len(frames) > 0 {
		if err := a.checkVision(ctx, processor, detector, frames[0]); err != nil {
			return err
		}
	}

	detections := make([]types.Detection, 0, len(frames))
	for i, frame := range frames {
		img, err := processor.LoadImage(frame)
		if err != nil {
			a.log.WithError(err).WithField("frame", frame).Warn("skipping unreadable frame")
			continue
		}
		imgB64, err := processor.PrepareImageForModel(img, "jpg", a.cfg.Processing.ModelMaxDim, a.cfg.Processing.ModelQuality)
		if err != nil {
			return err
		}

		recordedAt := time.Now().UTC()
		if info, err := os.Stat(frame); err == nil {
			recordedAt = info.ModTime().UTC()
		}
		det, err := detector.Detect(ctx, int64(i+1), recordedAt, imgB64)
		if err != nil {
			return err
		}
		a.log.WithFields(logrus.Fields{"frame": frame, "predictions": len(det.Predictions)}).Info("frame analysed")
		detections = append(detections, det)
	}

	data, err := a.codec.EncodeDetections(detections)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(*out)); err != nil {
		return err
	}
	return contract.WriteFile(*out, data)
}

// visionClient builds the model client for the configured backend
func (a *app) visionClient() (client.VisionClient, error) {
	timeout := time.Duration(a.cfg.Detector.TimeoutSeconds) * time.Second
	url := a.cfg.Detector.ServerURL()

	switch a.cfg.Detector.Backend {
	case "llamacpp":
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		c.SetTimeout(timeout)
		a.log.WithField("url", url).Info("using llama.cpp backend")
		return c, nil
	default:
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		c.SetTimeout(timeout)
		a.log.WithField("url", url).Info("using ollama backend")
		return c, nil
	}
}

func (a *app) checkVision(ctx context.Context, processor *processing.Processor, detector *detection.Detector, frame string) error {
	img, err := processor.LoadImage(frame)
	if err != nil {
		return err
	}
	imgB64, err := processor.PrepareImageForModel(img, "jpg", a.cfg.Processing.ModelMaxDim, a.cfg.Processing.ModelQuality)
	if err != nil {
		return err
	}
	answer, err := detector.TestVision(ctx, imgB64)
	if err != nil {
		return fmt.Errorf("vision check failed: %w", err)
	}
	a.log.WithFields(logrus.Fields{"frame": frame, "model": a.cfg.Detector.Model}).Info("vision check passed")
	fmt.Printf("model sees: %s\n", strings.TrimSpace(answer))
	return nil
}

func (a *app) measureCmd(args []string) error {
	fs := flag.NewFlagSet("measure", flag.ExitOnError)
	in := fs.String("in", "", "frame image file or URL")
	w := fs.Float64("width", a.cfg.Processing.ContainerWidth, "container width")
	h := fs.Float64("height", a.cfg.Processing.ContainerHeight, "container height")
	out := fs.String("out", "", "write a letterboxed preview at the container size (jpg, png or webp)")
	_ = fs.Parse(args)
	if *in == "" {
		return errors.New("measure: -in is required")
	}

	processor := processing.NewProcessor()
	container := types.Size{Width: *w, Height: *h}
	size, err := processor.LoadImageSize(context.Background(), *in)
	if err != nil {
		return err
	}
	info := processing.DisplayInfo(size, container)
	fmt.Printf("natural %.0fx%.0f  displayed %.1fx%.1f at offset (%.1f, %.1f)\n",
		size.Width, size.Height, info.Width, info.Height, info.OffsetX, info.OffsetY)

	if *out == "" {
		return nil
	}
	img, err := processor.LoadImageSmart(context.Background(), *in)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(*out)); err != nil {
		return err
	}
	format := utils.GetFileExtension(*out)
	if err := processor.SaveImage(processor.RenderPreview(img, container), *out, format, a.cfg.Processing.ModelQuality, false); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	a.log.WithField("path", *out).Info("preview written")
	return nil
}

func outOr(out, in string) string {
	if out != "" {
		return out
	}
	return in
}

func joinSmokeTypes() string {
	names := make([]string, 0, len(types.SmokeTypes()))
	for _, t := range types.SmokeTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, "|")
}
