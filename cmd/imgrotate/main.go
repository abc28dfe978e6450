package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yegorkir/imgrotate/internal/backup"
	"github.com/yegorkir/imgrotate/internal/config"
	"github.com/yegorkir/imgrotate/internal/fault"
	"github.com/yegorkir/imgrotate/internal/imagefile"
	"github.com/yegorkir/imgrotate/internal/logging"
	"github.com/yegorkir/imgrotate/internal/rotate"
	"github.com/yegorkir/imgrotate/internal/selection"
	"github.com/yegorkir/imgrotate/internal/session"
	"github.com/yegorkir/imgrotate/internal/tools"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	persistent    bool
	verbose       bool
	configFile    string
	backupDirName string
	fallbackDir   string
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	kind := fault.KindOf(err)
	if kind == fault.Unknown {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return 1
	}
	session.Report(stderr, err)
	return kind.ExitCode()
}

func newRootCommand() *cobra.Command {
	var opt options

	cmd := &cobra.Command{
		Use:   "imgrotate <image> <l|r|f>",
		Short: "Losslessly rotate JPEG and PNG files, keeping a backup of the original",
		Long: `imgrotate — rotate JPEG and PNG files in place

Usage:
  imgrotate <image> <direction>   Rotate once and exit
  imgrotate -p                    Interactive mode

Direction: l (90° left/CCW), r (90° right/CW), f (flip 180°)
Supported formats: JPEG (.jpg, .jpeg) via jpegtran, PNG (.png) via ImageMagick.

The original is copied to rotate_bkup/ next to the image (or ~/rotate_bkup
when that folder cannot be written) before it is replaced.`,
		Args: func(cmd *cobra.Command, args []string) error {
			check := cobra.ExactArgs(2)
			if opt.persistent {
				check = cobra.NoArgs
			}
			if err := check(cmd, args); err != nil {
				cmd.SilenceUsage = false
				return err
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(cmd.ErrOrStderr(), opt.verbose)

			cfg, err := loadConfig(cmd, opt)
			if err != nil {
				return err
			}
			executor := rotate.NewExecutor(
				backup.NewManager(cfg.Backup.DirName, cfg.Backup.FallbackDir),
				tools.NewToolchain(cfg.JPEGTranCandidates(), cfg.MagickCandidates(), cfg.Tools.Timeout),
			)

			if opt.persistent {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				sel := selection.New(cfg.Selection.Command, cfg.Selection.Timeout)
				session.New(executor, sel, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
				return nil
			}

			d, err := imagefile.ParseDirection(args[1])
			if err != nil {
				cmd.SilenceUsage = false
				return err
			}
			img, err := imagefile.Resolve(args[0])
			if err != nil {
				return err
			}
			res, err := executor.Rotate(cmd.Context(), img, d)
			if err != nil {
				return fmt.Errorf("rotate %s: %w", img.Path, err)
			}
			session.Confirm(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opt.persistent, "persistent", "p", false, "Interactive mode: keep prompting for <image> <direction>")
	cmd.Flags().BoolVarP(&opt.verbose, "verbose", "v", false, "Log every rotation step")
	cmd.Flags().StringVarP(&opt.configFile, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/imgrotate/config.yaml)")
	cmd.Flags().StringVar(&opt.backupDirName, "backup-dir-name", "", "Name of the backup folder created next to each image")
	cmd.Flags().StringVar(&opt.fallbackDir, "fallback-dir", "", "Backup folder used when the one next to the image is not writable")
	return cmd
}

func loadConfig(cmd *cobra.Command, opt options) (*config.Config, error) {
	path, required := opt.configFile, true
	if path == "" {
		required = false
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("backup-dir-name") {
		name := opt.backupDirName
		if name == "" || filepath.Base(name) != name {
			return nil, fmt.Errorf("--backup-dir-name %q must be a plain directory name", name)
		}
		cfg.Backup.DirName = name
	}
	if cmd.Flags().Changed("fallback-dir") {
		dir, err := imagefile.ExpandHome(opt.fallbackDir)
		if err != nil {
			return nil, err
		}
		if dir, err = filepath.Abs(dir); err != nil {
			return nil, err
		}
		cfg.Backup.FallbackDir = dir
	}
	return cfg, nil
}
