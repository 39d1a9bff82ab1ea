// templan indexes how message templates are rendered across a source tree and
// converts them from DTML tags to brace tags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/phobologic/templan/internal/config"
	"github.com/phobologic/templan/internal/model"
	"github.com/phobologic/templan/internal/sourceindex"
	"github.com/phobologic/templan/internal/titles"
	"github.com/phobologic/templan/internal/usage"
	"github.com/phobologic/templan/internal/wiki"
)

var version = "dev"

// ExitError carries a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func main() {
	root := newRootCmd(newApp(os.Stdout, os.Stderr))
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// run executes the CLI with args, without fang's styling or signal handling.
func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(newApp(stdout, stderr))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root.ExecuteContext(context.Background())
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger

	sigFilter  string
	refs       bool
	titlesFile string
	cfgFile    string
	dir        string
	verbose    bool

	cfg     *config.Config
	cfgPath string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		logger: log.NewWithOptions(stderr, log.Options{Prefix: "templan"}),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "templan",
		Short: "Analyze message template usage",
		Long: TitleStyle.Render("templan") + SubtitleStyle.Render(" - message template usage analysis") + `

templan finds every place the source tree renders a message template, lists
the variables each template references, and converts templates from DTML
tags to brace tags.

` + SubtitleStyle.Render("Examples:") + `
  templan print                   List invoked templates
  templan --refs print            Include variable references
  templan --sig cycle print       Only templates called with "cycle"
  templan print --html            Summary table as HTML
  templan post                    Replace the wiki summary page
  templan convert                 Convert every invoked template
  templan manifest                Deployment manifest as XML`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.sigFilter, "sig", "", "only include templates with an invocation whose signature contains this text")
	flags.BoolVar(&a.refs, "refs", false, "include variable references")
	flags.StringVar(&a.titlesFile, "titles-file", "", "CSV of template titles (title,name)")
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./"+config.FileName+")")
	flags.StringVarP(&a.dir, "chdir", "C", "", "run as if started in this directory")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newPostCmd(a),
		newPrintCmd(a),
		newConvertCmd(a),
		newManifestCmd(a),
		newPublishCmd(a),
		newInitCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.verbose {
		a.logger.SetLevel(log.DebugLevel)
	}

	cfgFile := a.cfgFile
	if cfgFile != "" {
		cfgFile = a.path(cfgFile)
	}
	cfg, path, err := config.Load(config.LoadOptions{ConfigFile: cfgFile, Dir: a.path(".")})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.cfgPath = path
	if path != "" {
		a.logger.Debug("loaded config", "path", path)
	}
	return nil
}

// path resolves p against the --chdir directory.
func (a *app) path(p string) string {
	if a.dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.dir, p)
}

func newIndex(kind config.IndexKind, include []string, respectIgnores bool) (sourceindex.Index, error) {
	switch kind {
	case config.IndexWalk:
		return sourceindex.Walk{Include: include, RespectIgnores: respectIgnores}, nil
	case config.IndexGrep:
		return sourceindex.Grep{}, nil
	case config.IndexSyntax:
		return sourceindex.Syntax{Include: include, RespectIgnores: respectIgnores}, nil
	default:
		return nil, fmt.Errorf("unknown index %q", kind)
	}
}

// scan runs both searches once for this invocation.
func (a *app) scan(ctx context.Context) (*usage.ScanResult, error) {
	invIdx, err := newIndex(a.cfg.Index.Invocations, a.cfg.Source.Include, a.cfg.Source.RespectIgnores)
	if err != nil {
		return nil, err
	}
	refIdx, err := newIndex(a.cfg.Index.References, []string{"**/*." + a.cfg.Templates.Ext}, a.cfg.Source.RespectIgnores)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("scanning",
		"source", a.cfg.Source.Root, "invocations", a.cfg.Index.Invocations,
		"templates", a.cfg.Templates.Dir, "references", a.cfg.Index.References)

	res, err := usage.Scan(ctx, usage.Sources{Invocations: invIdx, References: refIdx}, usage.Options{
		SourceRoot:        a.path(a.cfg.Source.Root),
		InvocationPattern: a.cfg.Source.InvocationPattern,
		TemplatesRoot:     a.path(a.cfg.Templates.Dir),
		ReferencePattern:  a.cfg.Templates.ReferencePattern,
		TemplateExt:       a.cfg.Templates.Ext,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("scan complete", "invocations", len(res.Invocations), "references", len(res.References))
	return res, nil
}

// titles loads the titles file named by --titles-file or the config, if any.
func (a *app) titles() (map[model.TemplateName]string, error) {
	path := a.titlesFile
	if path == "" {
		path = a.cfg.Templates.TitlesFile
	}
	if path == "" {
		return nil, nil
	}
	return titles.Load(a.path(path))
}

func (a *app) wikiSession() (wiki.Session, error) {
	s, err := wiki.Connect(wiki.Config{
		URL:   a.cfg.Wiki.URL,
		User:  a.cfg.Wiki.User,
		Token: a.cfg.Wiki.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to wiki: %w", err)
	}
	return s, nil
}

// wikiTarget returns the flag value when set, else the configured one.
func wikiTarget(cmd *cobra.Command, flag, flagValue, configured string) string {
	if cmd.Flags().Changed(flag) || configured == "" {
		return flagValue
	}
	return configured
}
