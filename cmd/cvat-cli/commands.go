package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelsos/cvat-cli/internal/apierr"
	"github.com/kelsos/cvat-cli/internal/config"
	"github.com/kelsos/cvat-cli/internal/logger"
	"github.com/kelsos/cvat-cli/internal/models"
	"github.com/kelsos/cvat-cli/internal/services"
	"github.com/kelsos/cvat-cli/internal/storage"
	"github.com/kelsos/cvat-cli/internal/tui"
	"github.com/kelsos/cvat-cli/internal/utils"
)

const defaultDumpFormat = "CVAT XML 1.1 for images"

// app carries the state shared by the commands of one invocation
type app struct {
	out    io.Writer
	prompt utils.PasswordPrompt

	auth  string
	host  string
	port  int
	debug bool
	poll  pollFlags

	cfg     *config.Config
	service *services.CVATService
}

type taskFlags struct {
	labels       string
	bugTracker   string
	imageQuality int
	frameFilter  string
}

type batchFlags struct {
	continueOnError bool
	reportPath      string
	tui             bool
}

type pollFlags struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
	maxAttempts     int
}

func newRootCmd() *cobra.Command {
	return newApp(os.Stdout, utils.TerminalPrompt).rootCmd()
}

func newApp(out io.Writer, prompt utils.PasswordPrompt) *app {
	return &app{out: out, prompt: prompt}
}

func (a *app) rootCmd() *cobra.Command {
	defaults := config.NewConfig()

	rootCmd := &cobra.Command{
		Use:           "cvat-cli",
		Short:         "A command line client for the CVAT annotation server",
		Long:          `cvat-cli creates, lists, deletes and bulk-manages CVAT tasks, and downloads frames and annotation dumps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.auth, "auth", utils.CurrentUsername(), "Credentials as USER[:PASS]; the password falls back to $PASS and then to a prompt")
	rootCmd.PersistentFlags().StringVar(&a.host, "server-host", defaults.Host, "Host of the CVAT server")
	rootCmd.PersistentFlags().IntVar(&a.port, "server-port", defaults.Port, "Port of the CVAT server")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		a.createCmd(),
		a.massCreateCmd(),
		a.deleteCmd(),
		a.listCmd(),
		a.framesCmd(),
		a.dumpCmd(),
		a.massDumpCmd(),
		a.lastReportCmd(),
	)

	return rootCmd
}

// setup builds the configuration from the environment and the flags, resolves
// credentials and wires the services
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	flags := cmd.Flags()
	if flags.Changed("server-host") {
		cfg.Host = a.host
	}
	if flags.Changed("server-port") {
		cfg.Port = a.port
	}
	if a.debug {
		cfg.Debug = true
	}
	logger.SetDebug(cfg.Debug)

	auth := a.auth
	if !flags.Changed("auth") && cfg.Username != "" {
		auth = cfg.Username
	}
	username, password, err := utils.ParseAuth(auth, a.prompt)
	if err != nil {
		return &apierr.ValidationError{Field: "auth", Value: auth, Reason: err.Error()}
	}
	cfg.Username = username
	cfg.Password = password

	if flags.Lookup("poll-max-attempts") != nil {
		a.poll.apply(flags, &cfg.Poll)
	}

	cfg.SetBaseURL()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("Using CVAT API at %s as %s", cfg.BaseURL, cfg.Username)
	a.cfg = cfg
	a.service = services.NewCVATService(cfg)
	return nil
}

func addTaskFlags(cmd *cobra.Command, tf *taskFlags) {
	cmd.Flags().StringVar(&tf.labels, "labels", "[]", "Labels as a JSON string or a path to a JSON file")
	cmd.Flags().StringVar(&tf.bugTracker, "bug", "", "Bug tracker URL")
	cmd.Flags().IntVar(&tf.imageQuality, "image-quality", 50, "Image quality of the task data (1-100)")
	cmd.Flags().StringVar(&tf.frameFilter, "frame-filter", "", "Frame filter, e.g. step=3")
}

func (tf *taskFlags) params(resourceType models.ResourceType) (models.TaskParams, error) {
	labels, err := utils.ParseJSONArg(tf.labels)
	if err != nil {
		return models.TaskParams{}, &apierr.ValidationError{Field: "labels", Value: tf.labels, Reason: err.Error()}
	}
	if tf.imageQuality < 1 || tf.imageQuality > 100 {
		return models.TaskParams{}, &apierr.ValidationError{Field: "image quality", Value: strconv.Itoa(tf.imageQuality), Reason: "must be between 1 and 100"}
	}

	return models.TaskParams{
		Labels:       labels,
		BugTracker:   tf.bugTracker,
		ImageQuality: tf.imageQuality,
		FrameFilter:  tf.frameFilter,
		ResourceType: resourceType,
	}, nil
}

func addBatchFlags(cmd *cobra.Command, bf *batchFlags) {
	cmd.Flags().BoolVar(&bf.continueOnError, "continue-on-error", false, "Record failed items and keep going instead of aborting the batch")
	cmd.Flags().StringVar(&bf.reportPath, "report", "", "Also write the JSON batch report to this file")
	cmd.Flags().BoolVar(&bf.tui, "tui", false, "Show a terminal progress monitor; logs go to logs/cvat-cli_*.log")
}

func addPollFlags(cmd *cobra.Command, pf *pollFlags) {
	defaults := config.DefaultPollPolicy()
	cmd.Flags().DurationVar(&pf.initialInterval, "poll-initial-interval", defaults.InitialInterval, "First wait between export status checks")
	cmd.Flags().DurationVar(&pf.maxInterval, "poll-max-interval", defaults.MaxInterval, "Longest wait between export status checks")
	cmd.Flags().DurationVar(&pf.maxElapsed, "poll-max-elapsed", defaults.MaxElapsed, "Give up waiting for an export after this long (0 for no limit)")
	cmd.Flags().IntVar(&pf.maxAttempts, "poll-max-attempts", defaults.MaxAttempts, "Give up waiting for an export after this many checks (0 for no limit)")
}

// apply overrides policy with the flags given on the command line
func (pf *pollFlags) apply(flags interface{ Changed(string) bool }, policy *config.PollPolicy) {
	if flags.Changed("poll-initial-interval") {
		policy.InitialInterval = pf.initialInterval
	}
	if flags.Changed("poll-max-interval") {
		policy.MaxInterval = pf.maxInterval
	}
	if flags.Changed("poll-max-elapsed") {
		policy.MaxElapsed = pf.maxElapsed
	}
	if flags.Changed("poll-max-attempts") {
		policy.MaxAttempts = pf.maxAttempts
	}
}

func (a *app) createCmd() *cobra.Command {
	var tf taskFlags

	cmd := &cobra.Command{
		Use:   "create NAME RESOURCE_TYPE RESOURCES...",
		Short: "Create a task and upload its data",
		Long:  `Create a task called NAME and attach RESOURCES to it. RESOURCE_TYPE is one of local, share or remote.`,
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resourceType models.ResourceType
			if err := resourceType.Set(args[1]); err != nil {
				return err
			}
			params, err := tf.params(resourceType)
			if err != nil {
				return err
			}

			taskID, err := a.service.Tasks.CreateTask(cmd.Context(), args[0], params, args[2:])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, taskID)
			return nil
		},
	}
	addTaskFlags(cmd, &tf)

	return cmd
}

func (a *app) massCreateCmd() *cobra.Command {
	var (
		tf                taskFlags
		bf                batchFlags
		duplicateExisting bool
	)

	cmd := &cobra.Command{
		Use:     "mass_create RESOURCE_TYPE RESOURCES_JSON",
		Aliases: []string{"mass-create"},
		Short:   "Create one task per video resource",
		Long: `Create one task per .mp4 or .mov resource, named after the file name without extension.
RESOURCES_JSON is a JSON list or a path to a file holding a JSON list or one resource per line.
Resources whose name already belongs to a task are skipped unless --duplicate-existing is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resourceType, err := models.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			resources, err := utils.ParseStringListArg(args[1])
			if err != nil {
				return &apierr.ValidationError{Field: "resources", Value: args[1], Reason: err.Error()}
			}
			params, err := tf.params(resourceType)
			if err != nil {
				return err
			}

			return a.runBatch(cmd.Context(), bf, func(ctx context.Context) (*models.BatchReport, error) {
				return a.service.Bulk.MassCreate(ctx, params, resources, !duplicateExisting)
			})
		},
	}
	addTaskFlags(cmd, &tf)
	addBatchFlags(cmd, &bf)
	cmd.Flags().BoolVar(&duplicateExisting, "duplicate-existing", false, "Create tasks even when a task with the same name exists")

	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID...",
		Short: "Delete tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskIDs, err := parseIDs("task id", args)
			if err != nil {
				return err
			}
			return a.service.Tasks.DeleteTasks(cmd.Context(), taskIDs)
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := a.service.Tasks.ListTasks(cmd.Context())
			if err != nil {
				return err
			}

			if !asJSON {
				fmt.Fprintln(a.out, tui.RenderTaskTable(tasks))
				return nil
			}

			records := make([]json.RawMessage, 0, len(tasks))
			for _, task := range tasks {
				records = append(records, task.Raw)
			}
			data, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode tasks: %w", err)
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the task records as JSON")

	return cmd
}

func (a *app) framesCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "frames TASK_ID FRAME_ID...",
		Short: "Download frames of a task as JPEG images",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs("id", args)
			if err != nil {
				return err
			}
			_, err = a.service.Tasks.FetchFrames(cmd.Context(), ids[0], ids[1:], outDir)
			return err
		},
	}
	cmd.Flags().StringVar(&outDir, "outdir", "", "Directory to store the frames in (default: current directory)")

	return cmd
}

func (a *app) dumpCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dump TASK_ID FILENAME",
		Short: "Download the annotations of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs("task id", args[:1])
			if err != nil {
				return err
			}
			return a.service.Tasks.DumpTask(cmd.Context(), ids[0], format, args[1])
		},
	}
	cmd.Flags().StringVar(&format, "format", defaultDumpFormat, "Annotation format")
	addPollFlags(cmd, &a.poll)

	return cmd
}

func (a *app) massDumpCmd() *cobra.Command {
	var (
		bf   batchFlags
		opts services.MassDumpOptions
	)

	cmd := &cobra.Command{
		Use:     "mass_dump TASK_ID...",
		Aliases: []string{"mass-dump"},
		Short:   "Download the annotations of many tasks",
		Long: `Download the annotations of each task to a path built from --filename-template.
The template may use {name}, {id}, {name_part1} and {name_part2}; the name parts come
from splitting the task name on --separator. Existing files are kept unless --force is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskIDs, err := parseIDs("task id", args)
			if err != nil {
				return err
			}

			return a.runBatch(cmd.Context(), bf, func(ctx context.Context) (*models.BatchReport, error) {
				return a.service.Bulk.MassDump(ctx, taskIDs, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", defaultDumpFormat, "Annotation format")
	cmd.Flags().StringVar(&opts.Template, "filename-template", "", "Output path template, e.g. ./annotations/{name_part1}/{name}_{id}.xml")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")
	cmd.Flags().StringVar(&opts.Separator, "separator", "_", "Separator used to split task names into parts")
	_ = cmd.MarkFlagRequired("filename-template")
	addBatchFlags(cmd, &bf)
	addPollFlags(cmd, &a.poll)

	return cmd
}

// lastReportCmd works offline, so it skips the credential and server setup
func (a *app) lastReportCmd() *cobra.Command {
	var (
		path   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:       "last_report OPERATION",
		Aliases:   []string{"last-report"},
		Short:     "Show the report saved by the latest mass_create or mass_dump run",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"mass_create", "mass_dump"},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDebug(a.debug)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cobra.OnlyValidArgs(cmd, args); err != nil {
				return &apierr.ValidationError{Field: "operation", Value: args[0], Reason: "expected mass_create or mass_dump"}
			}

			if path == "" {
				lastPath, err := storage.GetLastReportPath(args[0])
				if err != nil {
					return err
				}
				path = lastPath
			}

			report, err := storage.LoadReport(path)
			if err != nil {
				return err
			}
			if report == nil {
				return fmt.Errorf("no %s report found at %s", args[0], path)
			}

			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
				fmt.Fprintln(a.out, string(data))
				return nil
			}

			fmt.Fprintln(a.out, tui.RenderReportTable(report))
			summary := report.Summary()
			if report.Aborted {
				summary += " (aborted)"
			}
			fmt.Fprintln(a.out, summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Read the report from this file instead of the saved one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

// runBatch runs a mass operation, optionally under the terminal monitor, and
// saves its report even when the batch was aborted
func (a *app) runBatch(ctx context.Context, bf batchFlags, run func(ctx context.Context) (*models.BatchReport, error)) error {
	bulk := a.service.Bulk
	bulk.SetContinueOnError(bf.continueOnError)

	var (
		report *models.BatchReport
		err    error
	)
	if bf.tui {
		if _, logErr := logger.InitFileOnly(); logErr != nil {
			return logErr
		}
		defer func() {
			logger.Close()
			logger.Init()
			logger.SetDebug(a.cfg.Debug)
		}()

		monitor := tui.NewBatchMonitor()
		if startErr := monitor.Start(); startErr != nil {
			return startErr
		}
		bulk.SetObserver(monitor)
		err = monitor.Run(ctx, func(ctx context.Context) error {
			var runErr error
			report, runErr = run(ctx)
			return runErr
		})
		bulk.SetObserver(nil)
	} else {
		report, err = run(ctx)
	}

	if report != nil {
		a.saveReport(report, bf.reportPath)
		fmt.Fprintln(a.out, report.Summary())
	}
	return err
}

func (a *app) saveReport(report *models.BatchReport, path string) {
	lastPath, err := storage.SaveLastReport(report)
	if err != nil {
		logger.Warn("Failed to save batch report: %v", err)
	} else {
		logger.Debug("Batch report saved to %s", lastPath)
	}

	if path == "" {
		return
	}
	if err := storage.SaveReport(path, report); err != nil {
		logger.Warn("Failed to write batch report to %s: %v", path, err)
		return
	}
	logger.Info("Batch report written to %s", path)
}

func parseIDs(field string, args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 0 {
			return nil, &apierr.ValidationError{Field: field, Value: arg, Reason: "must be a non-negative integer"}
		}
		ids = append(ids, id)
	}
	return ids, nil
}
