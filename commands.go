package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/templan/internal/model"
	"github.com/phobologic/templan/internal/publish"
	"github.com/phobologic/templan/internal/report"
	"github.com/phobologic/templan/internal/toon"
	"github.com/phobologic/templan/internal/transpile"
)

const (
	defaultSpace = "SYS"
	defaultPage  = "Template use summary"
)

func newPostCmd(a *app) *cobra.Command {
	var space, page string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post the summary table to the wiki",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			space = wikiTarget(cmd, "space", space, a.cfg.Wiki.Space)
			page = wikiTarget(cmd, "page", page, a.cfg.Wiki.Page)

			session, err := a.wikiSession()
			if err != nil {
				return err
			}

			a.logger.Info("Generating the summary table")
			res, err := a.scan(cmd.Context())
			if err != nil {
				return err
			}
			table := report.HTMLTable(res.Index(a.sigFilter).Entries())

			a.logger.Info("Posting to wiki", "space", space, "page", page)
			if err := session.ReplacePageContent(cmd.Context(), space, page, table); err != nil {
				return err
			}
			a.logger.Info("Done")
			return nil
		},
	}
	cmd.Flags().StringVar(&space, "space", defaultSpace, "wiki space to use")
	cmd.Flags().StringVar(&page, "page", defaultPage, "wiki page to write")
	return cmd
}

func newPrintCmd(a *app) *cobra.Command {
	var (
		asHTML, asCSV, asTOON, unused bool
		into                          string
	)
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the summary to the screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.scan(cmd.Context())
			if err != nil {
				return err
			}
			idx := res.Index(a.sigFilter)
			entries := idx.Entries()
			if unused {
				entries = res.Unused()
			}

			var out bytes.Buffer
			switch {
			case asHTML:
				out.WriteString(report.HTMLTable(entries) + "\n")
			case asCSV:
				err = report.CSV(&out, entries)
			case asTOON:
				out.WriteString(toon.Encode(entries) + "\n")
			case unused:
				err = report.ListingEntries(&out, entries, report.ListingOptions{Refs: a.refs})
			default:
				err = report.Listing(&out, idx, report.ListingOptions{Refs: a.refs})
			}
			if err != nil {
				return err
			}

			if into == "" {
				_, err = a.stdout.Write(out.Bytes())
				return err
			}
			return a.splice(a.path(into), out.String())
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "HTML table output")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "CSV output (template,file,signature)")
	cmd.Flags().BoolVar(&asTOON, "toon", false, "TOON output")
	cmd.Flags().BoolVar(&unused, "unused", false, "list referenced templates that nothing renders")
	cmd.Flags().StringVar(&into, "into", "", "write into a marked section of this file instead of stdout")
	return cmd
}

// splice writes body into the sentinel block of path, creating the file
// when needed.
func (a *app) splice(path, body string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated := applySection(string(existing), wrapSection(body))
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	a.logger.Info("updated section", "file", path)
	return nil
}

func newConvertCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert invoked templates from DTML tags to brace tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.scan(cmd.Context())
			if err != nil {
				return err
			}
			files := transpile.Files{
				SourceDir: a.path(a.cfg.Templates.Dir),
				DestDir:   a.path(a.cfg.Templates.DestDir),
				SourceExt: a.cfg.Templates.Ext,
				DestExt:   a.cfg.Templates.DestExt,
				Strict:    strict,
			}

			written, err := files.ConvertAll(res.Index(a.sigFilter).Names())
			for _, path := range written {
				_, _ = fmt.Fprintln(a.stdout, path)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.stderr, SuccessStyle.Render(fmt.Sprintf("converted %d templates", len(written))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "reject templates with unbalanced open/close tags")
	return cmd
}

func newManifestCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write the deployment manifest to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var write func(io.Writer, []model.ManifestEntry) error
			switch format {
			case "xml":
				write = report.WriteManifestXML
			case "yaml":
				write = report.WriteManifestYAML
			default:
				return fmt.Errorf("unsupported manifest format %q (want xml or yaml)", format)
			}

			names, err := a.titles()
			if err != nil {
				return err
			}
			res, err := a.scan(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := report.Manifest(res.Index(a.sigFilter).Entries(), report.ManifestOptions{
				DestExt: a.cfg.Templates.DestExt,
				Titles:  names,
			})
			if err != nil {
				return err
			}
			return write(a.stdout, entries)
		},
	}
	cmd.Flags().StringVar(&format, "format", "xml", "manifest format: xml or yaml")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var space, page string
	cmd := &cobra.Command{
		Use:   "publish [flags] -- COMMAND [ARGS...]",
		Short: "Run a report command and post its output to the wiki",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			space = wikiTarget(cmd, "space", space, a.cfg.Wiki.Space)
			page = wikiTarget(cmd, "page", page, a.cfg.Wiki.Page)

			session, err := a.wikiSession()
			if err != nil {
				return err
			}

			target := publish.Target{Space: space, Page: page}
			err = publish.Publish(cmd.Context(), publish.Runner{Dir: a.dir}, session, target, args[0], args[1:]...)
			var scriptErr *publish.ScriptError
			if errors.As(err, &scriptErr) {
				_, _ = fmt.Fprintln(a.stdout, ErrorStyle.Render("Script failed:"))
				_, _ = fmt.Fprint(a.stdout, scriptErr.Stdout)
				_, _ = fmt.Fprint(a.stdout, scriptErr.Stderr)
				return &ExitError{Code: 1, Err: err}
			}
			if err != nil {
				return err
			}
			a.logger.Info("Posted", "space", space, "page", page)
			return nil
		},
	}
	cmd.Flags().StringVar(&space, "space", defaultSpace, "wiki space to use")
	cmd.Flags().StringVar(&page, "page", defaultPage, "wiki page to write")
	return cmd
}
