package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/qlab/internal/analysis"
	"github.com/san-kum/qlab/internal/chat"
	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/config"
	"github.com/san-kum/qlab/internal/export"
	"github.com/san-kum/qlab/internal/logger"
	"github.com/san-kum/qlab/internal/server"
	"github.com/san-kum/qlab/internal/session"
	"github.com/san-kum/qlab/internal/storage"
	"github.com/san-kum/qlab/internal/tui"
	"github.com/san-kum/qlab/internal/visualizer"
	"github.com/san-kum/qlab/internal/viz"
)

var (
	configFile string
	dataDir    string
	theme      string
	// snapshot
	measured bool
	at       time.Duration
	output   string
	raster   bool
	ascii    bool
	seed     int64
	// sample
	episodes int
	width    int
	height   int
	save     bool
	runs     int
	// watch
	duration  time.Duration
	frameRate int
	// serve
	addr string
	// ask
	asJSON bool
	// config init
	preset string

	cfg     *config.Config
	log     = zerolog.Nop()
	closers []io.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "qlab",
		Short:             "quantum communication lab",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) { teardown() },
		RunE:              runLab,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "qlab.yaml", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".qlab", "data directory for sampling runs")
	rootCmd.Flags().StringVar(&theme, "theme", "", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	topicsCmd := &cobra.Command{
		Use:   "topics",
		Short: "list lab topics and how quantum channels differ",
		Args:  cobra.NoArgs,
		RunE:  listTopics,
	}

	askCmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "ask the lab assistant one question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  askQuestion,
	}
	askCmd.Flags().BoolVar(&asJSON, "json", false, "print the transcript as JSON")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [topic]",
		Short: "render one frame of a topic",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshot,
	}
	snapshotCmd.Flags().BoolVar(&measured, "measured", false, "render the measured state")
	snapshotCmd.Flags().DurationVar(&at, "at", 0, "animation time of the frame")
	snapshotCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	snapshotCmd.Flags().BoolVar(&raster, "raster", false, "write the terminal rendering as SVG")
	snapshotCmd.Flags().BoolVar(&ascii, "ascii", false, "print the terminal rendering instead of SVG")
	snapshotCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")

	sampleCmd := &cobra.Command{
		Use:   "sample [topic]",
		Short: "measure a topic many times and summarize the outcomes",
		Args:  cobra.ExactArgs(1),
		RunE:  sampleTopic,
	}
	sampleCmd.Flags().IntVarP(&episodes, "episodes", "n", 1000, "number of measurements")
	sampleCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	sampleCmd.Flags().IntVar(&width, "width", 60, "plot width")
	sampleCmd.Flags().IntVar(&height, "height", 10, "plot height")
	sampleCmd.Flags().StringVarP(&output, "output", "o", "", "write the running frequency as SVG")
	sampleCmd.Flags().BoolVar(&save, "save", false, "store the run in the data directory")
	sampleCmd.Flags().IntVar(&runs, "runs", 1, "independent runs sampled in parallel (seeds seed..seed+runs-1)")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list stored sampling runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored sampling run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&width, "width", 60, "plot width")
	plotCmd.Flags().IntVar(&height, "height", 10, "plot height")

	watchCmd := &cobra.Command{
		Use:   "watch [topic]",
		Short: "play a topic's animation in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  watchTopic,
	}
	watchCmd.Flags().BoolVar(&measured, "measured", false, "measure halfway through")
	watchCmd.Flags().DurationVar(&duration, "time", 10*time.Second, "duration (0 runs until interrupted)")
	watchCmd.Flags().IntVar(&frameRate, "fps", 0, "frame rate (default from config)")
	watchCmd.Flags().StringVar(&theme, "theme", "", "color theme")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the web lab",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage the config file",
		// config commands must work even when the current file is invalid
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "write a default config file",
		Args:  cobra.NoArgs,
		RunE:  configInit,
	}
	configInitCmd.Flags().StringVar(&preset, "preset", "", "chat preset ("+strings.Join(config.ListPresets(), ", ")+")")
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "print the effective config",
		Args:  cobra.NoArgs,
		RunE:  configShow,
	}
	configCmd.AddCommand(configInitCmd, configShowCmd)

	rootCmd.AddCommand(topicsCmd, askCmd, snapshotCmd, sampleCmd, runsCmd, plotCmd, watchCmd, serveCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		teardown()
		os.Exit(1)
	}
}

// setup resolves the config and opens the log file.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Resolve(configFile)
	if err != nil {
		return err
	}

	l, closer, err := logger.Open(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	log = l
	closers = append(closers, closer)
	log.Debug().Str("command", cmd.Name()).Str("provider", cfg.Chat.Provider).Msg("starting")
	return nil
}

func teardown() {
	for _, c := range closers {
		c.Close()
	}
	closers = nil
}

func newClient() (chat.Client, error) {
	return chat.New(cfg.ChatOptions())
}

func parseTopic(s string) (concept.ID, error) {
	id, err := concept.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w (available: %s, %s, %s)", err, concept.Superposition, concept.Entanglement, concept.QKD)
	}
	return id, nil
}

func runLab(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	if theme == "" {
		theme = cfg.Lab.Theme
	}
	return tui.RunLab(tui.Options{
		Client:      client,
		Log:         log,
		FPS:         cfg.Lab.FPS,
		Theme:       theme,
		Temperature: &cfg.Chat.Temperature,
		ExportDir:   ".",
	})
}

func listTopics(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tDESCRIPTION")
	for _, d := range concept.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Title, d.Description)
	}
	w.Flush()

	fmt.Println()
	fmt.Println("量子 vs 传统：核心差异")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tTRADITIONAL\tQUANTUM")
	for _, row := range concept.Comparisons() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.Feature, row.Traditional, row.Quantum)
	}
	w.Flush()

	fmt.Println()
	for i, step := range concept.IntroSteps() {
		fmt.Printf("%d. %s\n   %s\n", i+1, step.Title, step.Content)
	}
	return nil
}

func askQuestion(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	ctrl := session.New(client,
		session.WithLogger(log),
		session.WithTemperature(cfg.Chat.Temperature))
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	ctrl.Submit(ctx, strings.Join(args, " "))

	if asJSON {
		return export.TranscriptJSON(os.Stdout, export.Snapshot(ctrl, ""))
	}

	entries := ctrl.Transcript()
	reply := entries[len(entries)-1].Text
	out, err := glamour.Render(reply, "dark")
	if err != nil {
		out = reply + "\n"
	}
	fmt.Print(out)
	if reply == session.FailureReply {
		return fmt.Errorf("chat request failed, see %s", cfg.Log.File)
	}
	return nil
}

func snapshot(cmd *cobra.Command, args []string) error {
	topic, err := parseTopic(args[0])
	if err != nil {
		return err
	}

	vis := visualizer.New(
		visualizer.WithRand(rand.New(rand.NewSource(seed))),
		visualizer.WithStart(time.Unix(0, 0)),
	)
	defer vis.Close()

	vis.Update(topic, measured)
	frame := cfg.FrameInterval()
	for elapsed := time.Duration(0); elapsed < at; elapsed += frame {
		vis.Step(frame)
	}

	if ascii {
		fmt.Print(viz.Rasterize(vis.Surface(), 80, 27).Render(viz.GetTheme(cfg.Lab.Theme)))
		return nil
	}

	doc := export.SceneSVG(vis.Surface())
	if raster {
		doc = export.CanvasToSVG(viz.Rasterize(vis.Surface(), 120, 40), 8)
	}

	if output == "" {
		fmt.Println(doc)
		return nil
	}
	if err := os.WriteFile(output, []byte(doc), 0644); err != nil {
		return err
	}
	log.Info().Str("topic", string(topic)).Str("file", output).Msg("snapshot written")
	fmt.Printf("wrote %s\n", output)
	return nil
}

func sampleTopic(cmd *cobra.Command, args []string) error {
	topic, err := parseTopic(args[0])
	if err != nil {
		return err
	}

	samples, err := analysis.Ensemble{
		Topic:     topic,
		Runs:      runs,
		Episodes:  episodes,
		SeedStart: seed,
	}.Run(cmd.Context())
	if err != nil {
		return err
	}
	s := samples[0]
	printSample(s, seed)
	if len(samples) > 1 {
		printEnsemble(samples, seed)
	}

	if output != "" {
		doc := export.SeriesToSVG(s.Running, 600, 200, 0.5, "#10b981")
		if err := os.WriteFile(output, []byte(doc), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", output)
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(s, seed)
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		log.Info().Str("run", runID).Int("episodes", s.N()).Msg("sampling run saved")
		fmt.Printf("saved run %s\n", runID)
	}
	return nil
}

func printSample(s *analysis.Sample, seed int64) {
	fmt.Println(analysis.Plot(s, width, height))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "episodes\t%d\n", s.N())
	fmt.Fprintf(w, "seed\t%d\n", seed)
	fmt.Fprintf(w, "zeros / ones\t%d / %d\n", s.Counts[0], s.Counts[1])
	fmt.Fprintf(w, "mean\t%.4f\n", s.Mean)
	fmt.Fprintf(w, "stddev\t%.4f\n", s.StdDev)
	fmt.Fprintf(w, "chi-square\t%.4f (p=%.4f)\n", s.ChiSquare, s.PValue)
	if ps := analysis.Spectrum(s); ps != nil {
		fmt.Fprintf(w, "spectral peak\t%.2f× mean\n", analysis.PeakRatio(ps))
	}
	if s.Topic == concept.Entanglement {
		fmt.Fprintf(w, "anti-correlated\t%d / %d\n", s.AntiCorrelated, s.N())
	}
	w.Flush()
}

func printEnsemble(samples []*analysis.Sample, seed int64) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tZEROS\tONES\tMEAN\tP-VALUE")
	for i, s := range samples {
		fmt.Fprintf(w, "%d\t%d\t%d\t%.4f\t%.4f\n", seed+int64(i), s.Counts[0], s.Counts[1], s.Mean, s.PValue)
	}
	w.Flush()

	mean, std := analysis.Spread(samples)
	fmt.Printf("\nmean of means %.4f ± %.4f over %d runs\n", mean, std, len(samples))
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tTIME\tEPISODES\tMEAN\tP-VALUE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\t%.4f\n",
			run.ID,
			run.Topic,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Episodes,
			run.Metrics["mean"],
			run.Metrics["p_value"],
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	s, err := st.LoadSample(args[0])
	if err != nil {
		return err
	}
	printSample(s, meta.Seed)
	return nil
}

func watchTopic(cmd *cobra.Command, args []string) error {
	topic, err := parseTopic(args[0])
	if err != nil {
		return err
	}
	if frameRate <= 0 {
		frameRate = cfg.Lab.FPS
	}
	if theme == "" {
		theme = cfg.Lab.Theme
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := tui.NewLiveRenderer(os.Stdout, viz.GetTheme(theme), frameRate, 80, 24)
	return r.Play(ctx, topic, measured, duration)
}

func serve(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(server.Config{
		Addr:        addr,
		FPS:         cfg.Lab.FPS,
		Temperature: &cfg.Chat.Temperature,
		Client:      client,
		Log:         log,
		SessionTTL:  cfg.Server.SessionTTL,
		Origins:     cfg.Server.Origins,
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()
	fmt.Printf("web lab on http://%s\n", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

func configInit(cmd *cobra.Command, args []string) error {
	c := config.DefaultConfig()
	if preset != "" {
		c = config.GetPreset(preset)
		if c == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists", configFile)
	}
	if err := config.Save(configFile, c); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", configFile)
	return nil
}

func configShow(cmd *cobra.Command, args []string) error {
	c, err := config.Resolve(configFile)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
