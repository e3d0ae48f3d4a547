package cmd

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangodl/pkg/app"
	"github.com/kerbaras/mangodl/pkg/config"
	"github.com/kerbaras/mangodl/pkg/logging"
	"github.com/kerbaras/mangodl/pkg/services"
)

type downloadOptions struct {
	url       string
	all       bool
	chapters  string
	nameless  bool
	language  string
	rateLimit float64
	volLen    int
	noVolume  bool
	saver     bool
	folder    string
	format    string
}

// apply returns a copy of cfg with the flags the user set on top.
func (o downloadOptions) apply(cmd *cobra.Command, cfg config.Config) (*config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("language") {
		cfg.Settings.Language = strings.ToLower(strings.TrimSpace(o.language))
	}
	if flags.Changed("ratelimit") {
		cfg.Settings.RateLimit = o.rateLimit
	}
	if flags.Changed("vollen") {
		if o.volLen < 1 {
			return nil, fmt.Errorf("--vollen must be at least 1, got %d", o.volLen)
		}
		cfg.Settings.VolumeLength = o.volLen
	}
	if o.noVolume {
		cfg.Settings.Volumize = false
	}
	if o.saver {
		cfg.Settings.Saver = true
	}
	if flags.Changed("folder") {
		dir, err := config.ExpandPath(o.folder)
		if err != nil {
			return nil, err
		}
		cfg.Settings.RootDir = dir
	}
	if flags.Changed("format") {
		cfg.Settings.Format = strings.ToLower(strings.TrimSpace(o.format))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// selection is the chapter choice made on the command line, if any.
func (o downloadOptions) selection() (services.Selection, bool, error) {
	switch {
	case o.all && o.chapters != "":
		return services.Selection{}, false, errors.New("--all and --chapters cannot be used together")
	case o.all:
		return services.SelectAll(o.nameless), true, nil
	case o.chapters != "":
		ranges, err := services.ParseRanges(o.chapters)
		if err != nil {
			return services.Selection{}, false, err
		}
		return services.Selection{Ranges: ranges, Nameless: o.nameless}, true, nil
	}
	return services.Selection{}, false, nil
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download [title]",
		Short: "Download manga chapters and pack them into volumes",
		Long: `Download chapters of a manga found by title (in the library or by
searching the site) or given by --url, then pack them into one archive per
volume.

Examples:
  mangodl download "One Punch-Man"
  mangodl download --url https://mangadex.org/title/7139/one-punch-man --all
  mangodl download Berserk --chapters "1-10, 12, 15.5-20" --format epub`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := opts.apply(cmd, *base)
			if err != nil {
				return err
			}
			sel, chosen, err := opts.selection()
			if err != nil {
				return err
			}

			s, err := ctx.openSession(cfg, true)
			if err != nil {
				return err
			}
			defer s.Close()

			ctrl := ctx.newController(s)
			defer ctrl.Close()

			out := cmd.OutOrStdout()
			id, err := ctx.resolveManga(cmd.Context(), s, ctrl, opts.url, args, out)
			if errors.Is(err, app.ErrCancelled) {
				return nil
			}
			if err != nil {
				return err
			}

			session, err := ctrl.Prepare(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "📖 %s: %d chapter(s) in %q\n", session.Manga.Name, len(session.Staged), cfg.Settings.Language)
			if len(session.Missing) > 0 {
				fmt.Fprintf(out, "⚠️  Missing chapters: %s\n", joinInts(session.Missing))
			}

			var report *services.Report
			switch {
			case chosen:
				report, err = runPlain(cmd, ctrl, session, sel)
			case logging.Interactive():
				report, err = app.NewApp(nil, nil).Download(cmd.Context(), ctrl, session, opts.nameless)
				if errors.Is(err, app.ErrCancelled) {
					fmt.Fprintln(out, "Nothing downloaded.")
					return nil
				}
			default:
				return errors.New("not running in a terminal: choose chapters with --all or --chapters")
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(out, report.Render())
			if report.Status() == services.StatusFailed {
				return errors.New("no chapter could be downloaded")
			}
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

func (o *downloadOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.url, "url", "", "Title page link, e.g. https://mangadex.org/title/7139/one-punch-man")
	flags.BoolVarP(&o.all, "all", "a", false, "Download every chapter without asking")
	flags.StringVarP(&o.chapters, "chapters", "c", "", `Chapters to download, e.g. "1-10, 12, 30-"`)
	flags.BoolVar(&o.nameless, "nameless", false, "Include chapters without a number")
	flags.StringVarP(&o.language, "language", "l", "", "Chapter language code (default from config, gb)")
	flags.Float64Var(&o.rateLimit, "ratelimit", 0, "Requests per second")
	flags.IntVar(&o.volLen, "vollen", 0, "Chapters per invented volume")
	flags.BoolVar(&o.noVolume, "novolume", false, "Keep chapter folders and skip volume archives")
	flags.BoolVar(&o.saver, "saver", false, "Download the data saver (low quality) images")
	flags.StringVar(&o.folder, "folder", "", "Download root directory")
	flags.StringVar(&o.format, "format", "", "Archive format: cbz or epub")
}

// runPlain downloads without the terminal UI, printing one line per
// finished chapter.
func runPlain(cmd *cobra.Command, ctrl *services.MangaController, session *services.Session, sel services.Selection) (*services.Report, error) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📥 Downloading %d chapter(s)\n", len(sel.Apply(session.Staged)))

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		events := ctrl.GetProgressChannel()
		for {
			select {
			case p, ok := <-events:
				if !ok {
					return
				}
				printEvent(out, p)
			case <-done:
				for {
					select {
					case p, ok := <-events:
						if !ok {
							return
						}
						printEvent(out, p)
					default:
						return
					}
				}
			}
		}
	}()

	report, err := ctrl.Execute(cmd.Context(), session, sel)
	close(done)
	wg.Wait()
	return report, err
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
