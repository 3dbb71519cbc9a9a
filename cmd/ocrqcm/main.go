package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Marianoooo45/ocr-qcm-ctk/catalog"
	"github.com/Marianoooo45/ocr-qcm-ctk/config"
	"github.com/Marianoooo45/ocr-qcm-ctk/dispatch"
	"github.com/Marianoooo45/ocr-qcm-ctk/eventloop"
	"github.com/Marianoooo45/ocr-qcm-ctk/llm"
	"github.com/Marianoooo45/ocr-qcm-ctk/logutil"
	"github.com/Marianoooo45/ocr-qcm-ctk/ocr"
	"github.com/Marianoooo45/ocr-qcm-ctk/pipeline"
	"github.com/Marianoooo45/ocr-qcm-ctk/prompts"
	"github.com/Marianoooo45/ocr-qcm-ctk/screenshot"
	"github.com/Marianoooo45/ocr-qcm-ctk/session"
)

// sampleText stands in for OCR output when testing the AI call path.
const sampleText = "A = 2, B = 3. Sum? A)3 B)4 C)5"

type cliOptions struct {
	envFile string
	verbose bool

	// region overrides; -1 means "use config"
	left, top, width, height int

	provider    string
	model       string
	promptName  string
	temperature float64

	text       string
	previewOut string
	sinks      string
	newBase    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(os.Args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ocrqcm",
		Short:         "Capture a screen region, OCR it, and solve the QCM with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to .env file (highest precedence)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging to stderr")

	cmd.AddCommand(newCaptureCmd(opts))
	cmd.AddCommand(newCompleteCmd(opts))
	cmd.AddCommand(newSolveCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newPromptsCmd(opts))
	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newTestCmd(opts))

	return cmd
}

func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvFileOverride: opts.envFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if !opts.verbose {
		logutil.Setup(cfg.EnableFileLogging)
	}
	log.Printf("Config loaded: provider=%s model=%s key=%s",
		cfg.LLM.Provider, cfg.LLM.Model, logutil.RedactKey(cfg.APIKey(cfg.LLM.Provider)))
	return cfg, nil
}

func addRegionFlags(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().IntVar(&opts.left, "left", -1, "Region left edge (px)")
	cmd.Flags().IntVar(&opts.top, "top", -1, "Region top edge (px)")
	cmd.Flags().IntVar(&opts.width, "width", -1, "Region width (px)")
	cmd.Flags().IntVar(&opts.height, "height", -1, "Region height (px)")
}

func addLLMFlags(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider override (OpenAI, Anthropic, Gemini)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model override")
	cmd.Flags().StringVar(&opts.promptName, "prompt", "", "Prompt template name override")
	cmd.Flags().Float64Var(&opts.temperature, "temp", -1, "Temperature override [0,2]")
}

func resolveRegion(cfg *config.Config, opts *cliOptions) screenshot.Region {
	r := screenshot.Region{
		Left:   cfg.Capture.Left,
		Top:    cfg.Capture.Top,
		Width:  cfg.Capture.Width,
		Height: cfg.Capture.Height,
	}
	if opts.left >= 0 {
		r.Left = opts.left
	}
	if opts.top >= 0 {
		r.Top = opts.top
	}
	if opts.width >= 0 {
		r.Width = opts.width
	}
	if opts.height >= 0 {
		r.Height = opts.height
	}
	return r
}

func ocrParams(cfg *config.Config) ocr.Params {
	return ocr.Params{
		Language:    cfg.OCR.Language,
		EngineMode:  cfg.OCR.EngineMode,
		PageSegMode: cfg.OCR.PageSegMode,
		TessdataDir: cfg.OCR.TessdataDir,
	}
}

// resolvePrompt returns the template name and body to use for this call.
func resolvePrompt(cfg *config.Config, opts *cliOptions) (string, string, error) {
	store := prompts.Open(cfg.PromptsFile)
	name := cfg.LLM.Prompt
	if opts.promptName != "" {
		name = opts.promptName
	}
	body, ok := store.Get(name)
	if !ok {
		return "", "", fmt.Errorf("unknown prompt %q (see 'ocrqcm prompts list')", name)
	}
	return name, body, nil
}

func buildClient(cfg *config.Config, opts *cliOptions) (*llm.Client, error) {
	provider := cfg.LLM.Provider
	if opts.provider != "" {
		provider = opts.provider
	}
	model := cfg.LLM.Model
	if opts.model != "" {
		model = opts.model
	}
	key := cfg.APIKey(provider)
	if key == "" {
		return nil, fmt.Errorf("missing API key for %s", provider)
	}
	return llm.New(llm.Config{
		Provider:  provider,
		Model:     model,
		APIKey:    key,
		MaxTokens: cfg.LLM.MaxTokens,
	})
}

func resolveTemperature(cfg *config.Config, opts *cliOptions) float64 {
	t := cfg.LLM.Temperature
	if opts.temperature >= 0 {
		t = opts.temperature
	}
	if t > 2 {
		t = 2
	}
	return t
}

func buildDispatcher(cfg *config.Config, client *llm.Client, promptName string) *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Meta: dispatch.Meta{
			Provider:   client.Provider(),
			Model:      client.Model(),
			PromptName: promptName,
		},
		LogDir:        cfg.Outputs.LogDir,
		WebhookURL:    cfg.Outputs.WebhookURL,
		TelegramToken: cfg.Outputs.TelegramToken,
		TelegramChat:  cfg.Outputs.TelegramChat,
	}
}

// enabledSinks resolves the sink set: the --sinks flag wins, otherwise the
// configured output toggles.
func enabledSinks(cfg *config.Config, opts *cliOptions) ([]dispatch.Sink, error) {
	if opts.sinks != "" {
		var sinks []dispatch.Sink
		for _, part := range strings.Split(opts.sinks, ",") {
			switch s := dispatch.Sink(strings.TrimSpace(part)); s {
			case dispatch.SinkClipboard, dispatch.SinkDisk, dispatch.SinkDiscord, dispatch.SinkTelegram:
				sinks = append(sinks, s)
			case "":
			default:
				return nil, fmt.Errorf("unknown sink %q", s)
			}
		}
		return sinks, nil
	}

	var sinks []dispatch.Sink
	if cfg.Outputs.CopyClipboard {
		sinks = append(sinks, dispatch.SinkClipboard)
	}
	if cfg.Outputs.AutoSave {
		sinks = append(sinks, dispatch.SinkDisk)
	}
	if cfg.Outputs.SendDiscord {
		sinks = append(sinks, dispatch.SinkDiscord)
	}
	if cfg.Outputs.SendTelegram {
		sinks = append(sinks, dispatch.SinkTelegram)
	}
	return sinks, nil
}

func newCaptureCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the region, run OCR, and print the extracted text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			res, err := pipeline.New().RunOnce(resolveRegion(cfg, opts), ocrParams(cfg))
			if err != nil {
				return err
			}

			if opts.previewOut != "" {
				if err := os.WriteFile(opts.previewOut, res.PreviewPNG, 0644); err != nil {
					return fmt.Errorf("write preview: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Preview written: %s\n", opts.previewOut)
			}

			fmt.Print(res.Text)
			return nil
		},
	}
	addRegionFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.previewOut, "preview-out", "", "Write the preview PNG to this path")
	return cmd
}

func newCompleteCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Run the LLM on given text (or a sample) without capturing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			text := strings.TrimSpace(opts.text)
			if text == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimSpace(string(data))
			}
			if text == "" {
				text = sampleText
			}

			client, err := buildClient(cfg, opts)
			if err != nil {
				return err
			}
			_, body, err := resolvePrompt(cfg, opts)
			if err != nil {
				return err
			}

			answer, err := client.Complete(cmd.Context(), text, body, resolveTemperature(cfg, opts))
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
	addLLMFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.text, "text", "", "Input text ('-' reads stdin; empty uses a sample)")
	return cmd
}

func newSolveCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Capture, OCR, complete, and dispatch the answer to the enabled sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			sess, err := buildSession(cfg, opts)
			if err != nil {
				return err
			}

			res, err := session.Execute(cmd.Context(), sess)
			if err != nil {
				return err
			}

			fmt.Println(res.Answer)
			reportOutcomes(res.Outcomes)
			return nil
		},
	}
	addRegionFlags(cmd, opts)
	addLLMFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.sinks, "sinks", "", "Comma-separated sink override (clipboard,disk,discord,telegram)")
	return cmd
}

func newWatchCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay resident and run one solve pass per hotkey press",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			sess, err := buildSession(cfg, opts)
			if err != nil {
				return err
			}

			loop := eventloop.New(
				func(ctx context.Context) (session.Result, error) {
					return session.Execute(ctx, sess)
				},
				func(res session.Result, err error) {
					if err != nil {
						fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
						return
					}
					fmt.Println(res.Answer)
					reportOutcomes(res.Outcomes)
				},
				0,
			)

			if err := loop.StartHotkey(cfg.Hotkey); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Watching. Press %s to solve, Ctrl+C to quit.\n", cfg.Hotkey)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	addRegionFlags(cmd, opts)
	addLLMFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.sinks, "sinks", "", "Comma-separated sink override (clipboard,disk,discord,telegram)")
	return cmd
}

func buildSession(cfg *config.Config, opts *cliOptions) (session.Options, error) {
	client, err := buildClient(cfg, opts)
	if err != nil {
		return session.Options{}, err
	}
	name, body, err := resolvePrompt(cfg, opts)
	if err != nil {
		return session.Options{}, err
	}
	sinks, err := enabledSinks(cfg, opts)
	if err != nil {
		return session.Options{}, err
	}

	return session.Options{
		Region:      resolveRegion(cfg, opts),
		OCR:         ocrParams(cfg),
		Pipe:        pipeline.New(),
		Client:      client,
		Prompt:      body,
		Temperature: resolveTemperature(cfg, opts),
		Dispatcher:  buildDispatcher(cfg, client, name),
		Sinks:       sinks,
	}, nil
}

func reportOutcomes(outcomes []dispatch.Outcome) {
	for _, o := range outcomes {
		if o.OK {
			fmt.Fprintf(os.Stderr, "%s: ok\n", o.Sink)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", o.Sink, o.Detail())
		}
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider]",
		Short: "List the known providers and their models",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged := catalog.Merge(nil)

			if len(args) == 1 {
				models := catalog.Models(merged, args[0])
				if models == nil {
					return fmt.Errorf("unknown provider %q (see 'ocrqcm models')", args[0])
				}
				for _, m := range models {
					fmt.Fprintln(cmd.OutOrStdout(), m)
				}
				return nil
			}

			for _, p := range merged {
				fmt.Fprintln(cmd.OutOrStdout(), p.Name)
				for _, m := range p.Models {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", m)
				}
			}
			return nil
		},
	}
}

func newTestCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a connectivity test message to a configured sink",
	}

	discord := &cobra.Command{
		Use:   "discord",
		Short: "Post a test message to the Discord webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			d := &dispatch.Dispatcher{WebhookURL: cfg.Outputs.WebhookURL}
			if err := d.TestDiscord(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "discord: ok")
			return nil
		},
	}

	telegram := &cobra.Command{
		Use:   "telegram",
		Short: "Send a test message via the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			d := &dispatch.Dispatcher{
				TelegramToken: cfg.Outputs.TelegramToken,
				TelegramChat:  cfg.Outputs.TelegramChat,
			}
			if err := d.TestTelegram(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "telegram: ok")
			return nil
		},
	}

	cmd.AddCommand(discord, telegram)
	return cmd
}

func newPromptsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage the named prompt templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List template names",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			for _, name := range prompts.Open(cfg.PromptsFile).Names() {
				fmt.Println(name)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a template body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			body, ok := prompts.Open(cfg.PromptsFile).Get(args[0])
			if !ok {
				return fmt.Errorf("unknown prompt %q", args[0])
			}
			fmt.Println(body)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "new",
		Short: "Create a template under a fresh unique name",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			name, err := prompts.Open(cfg.PromptsFile).New(opts.newBase)
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		},
	}
	create.Flags().StringVar(&opts.newBase, "base", "New Prompt", "Base name for the new template")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a template (no-op when absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return prompts.Open(cfg.PromptsFile).Delete(args[0])
		},
	}

	cmd.AddCommand(list, show, create, del)
	return cmd
}
