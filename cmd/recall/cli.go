package main

import (
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/recall/internal/config"
	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/imagestore"
	"github.com/hpungsan/recall/internal/logger"
	"github.com/hpungsan/recall/internal/mcp"
	"github.com/hpungsan/recall/internal/ops"
	"github.com/hpungsan/recall/internal/web"
)

// baseDirName is the per-user directory holding config.yaml and reports.
const baseDirName = ".recall"

// runtime is what every command needs once the global flags are resolved.
type runtime struct {
	in  io.Reader
	out io.Writer
	cfg *config.Config
	log logger.Logger
}

// viewer builds an ops.Viewer for the configured database.
func (r *runtime) viewer() (*ops.Viewer, error) {
	return ops.NewViewer(r.cfg.DBPath, r.cfg)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(in io.Reader, out io.Writer) *cli.App {
	rt := &runtime{in: in, out: out, log: logger.NewNop()}

	app := &cli.App{
		Name:      "recall",
		Usage:     "Read-only viewer for Windows Recall capture databases",
		Version:   Version,
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file (default ~/.recall/config.yaml)"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "Optional .env file with RECALL_* variables"},
			&cli.StringFlag{Name: "db", Aliases: []string{"d"}, Usage: "Capture database (ukg.db)"},
			&cli.StringFlag{Name: "image-root", Usage: "Image store directory (default: ImageStore next to the database)"},
			&cli.StringFlag{Name: "image-ext", Usage: "Extension appended to image tokens, e.g. .jpeg"},
			&cli.StringFlag{Name: "utc-offset", Usage: "Display offset, e.g. +09:00, -05:30, Z"},
			&cli.StringFlag{Name: "log-level", Usage: "debug|info|warn|error"},
		},
		Before: func(c *cli.Context) error {
			return rt.setup(c)
		},
		After: func(c *cli.Context) error {
			_ = rt.log.Sync()
			return nil
		},
		Commands: []*cli.Command{
			listCmd(rt),
			browseCmd(rt),
			rangeCmd(rt),
			statusCmd(rt),
			reportCmd(rt),
			imageCmd(rt),
			serveCmd(rt),
			mcpCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// setup resolves configuration: defaults < file < env < flags.
func (r *runtime) setup(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return outputError(errors.NewInvalidRequest(err.Error()))
	}
	if err := config.ApplyEnv(cfg, c.String("env-file")); err != nil {
		return outputError(errors.NewInvalidRequest(err.Error()))
	}

	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("image-root") {
		cfg.ImageRoot = c.String("image-root")
	}
	if c.IsSet("image-ext") {
		ext := c.String("image-ext")
		cfg.ImageExtension = &ext
	}
	if c.IsSet("utc-offset") {
		cfg.DisplayUTCOffset = c.String("utc-offset")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return outputError(errors.NewInvalidRequest(err.Error()))
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid log level %q", cfg.Log.Level)))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	r.cfg = cfg
	r.log = log
	return nil
}

// loadConfig reads path, or ~/.recall/config.yaml when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	return config.Load(filepath.Join(home, baseDirName))
}

// listCmd creates the list command.
func listCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Show the capture table ordered by id, with the deletion status line",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Rows per page (default page_size, max 500)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Rows to skip"},
			&cli.BoolFlag{Name: "tokens", Usage: "Show the ImageToken column"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
		},
		Action: func(c *cli.Context) error {
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			output, err := ops.List(c.Context, v, ops.ListInput{
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
				ShowTokens: c.Bool("tokens"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(rt.out, output)
			}
			printCaptureTable(rt.out, output)
			return nil
		},
	}
}

// browseCmd creates the browse command.
func browseCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Step through screenshots in time order (n/p/g N/r START END/a/q)",
		Flags: append(rangeFlags(),
			&cli.IntFlag{Name: "pos", Usage: "Start position"},
			&cli.BoolFlag{Name: "json", Usage: "Print the view at --pos as JSON and exit"},
		),
		Action: func(c *cli.Context) error {
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			rng := rangeInput(c)

			if c.Bool("json") {
				output, err := ops.Browse(c.Context, v, ops.BrowseInput{Range: rng, Position: c.Int("pos")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(rt.out, output)
			}

			s, err := newSession(c.Context, v, rng, rt.out, rt.log)
			if err != nil {
				return outputError(err)
			}
			defer s.Close()
			if c.Int("pos") != 0 && !s.b.Seek(c.Int("pos")) {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("position %d out of range", c.Int("pos"))))
			}
			return s.Run(c.Context, rt.in)
		},
	}
}

// rangeCmd creates the range command.
func rangeCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "range",
		Usage: "List screenshots whose timestamp falls in an inclusive range",
		Flags: append(rangeFlags(),
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Rows per page"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Rows to skip"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
		),
		Action: func(c *cli.Context) error {
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			rng := rangeInput(c)
			if rng.IsZero() {
				if def := ops.DefaultRange(c.Context, v); def != nil {
					rng = ops.RangeInput{StartMs: &def.StartMs, EndMs: &def.EndMs}
				}
			}
			output, err := ops.Search(c.Context, v, ops.SearchInput{
				Range:  rng,
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(rt.out, output)
			}
			printFrameTable(rt.out, output)
			return nil
		},
	}
}

// statusCmd creates the status command.
func statusCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Summarise the database and run the deletion check",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
		},
		Action: func(c *cli.Context) error {
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Status(c.Context, v)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(rt.out, output)
			}
			printStatus(rt.out, output)
			return nil
		},
	}
}

// reportCmd creates the report command.
func reportCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Write a forensic summary report (markdown or HTML)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default ~/.recall/reports/<db>-<time>.md)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "markdown|html (ignored when --out has an extension)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Timeline rows (default 100)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Print the report instead of writing a file"},
		},
		Action: func(c *cli.Context) error {
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			input := ops.ReportInput{
				Format: c.String("format"),
				Limit:  c.Int("limit"),
				Path:   c.String("out"),
			}

			if c.Bool("stdout") {
				input.Path = ""
				output, err := ops.Report(c.Context, v, input)
				if err != nil {
					return outputError(err)
				}
				if output.Format == ops.FormatHTML {
					_, err = io.WriteString(rt.out, output.HTML)
				} else {
					_, err = io.WriteString(rt.out, output.Markdown)
				}
				return err
			}

			if input.Path == "" {
				path, err := ops.DefaultReportPath(v, strings.ToLower(input.Format))
				if err != nil {
					return outputError(err)
				}
				input.Path = path
			}
			output, err := ops.Report(c.Context, v, input)
			if err != nil {
				return outputError(err)
			}
			rt.log.Info("report written", logger.String("path", output.Path), logger.String("id", output.ID))
			fmt.Fprintf(rt.out, "report %s written to %s\n", output.ID, output.Path)
			return nil
		},
	}
}

// imageInfo describes one screenshot for the image command.
type imageInfo struct {
	Token  string          `json:"token"`
	Path   string          `json:"path"`
	Format string          `json:"format"`
	Size   imagestore.Size `json:"size"`
	Box    imagestore.Size `json:"box"`
	Fitted imagestore.Size `json:"fitted"`
	Out    string          `json:"out,omitempty"`
}

// imageCmd creates the image command.
func imageCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "image",
		Usage:     "Decode one screenshot and show its size fitted into a display box",
		ArgsUsage: "<token>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "box", Aliases: []string{"b"}, Value: "viewer", Usage: "primary|preview|table|viewer or WxH"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the scaled image as JPEG"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one image token is required"))
			}
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			box, err := imagestore.ParseBox(c.String("box"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			token := c.Args().First()
			path, err := v.Images.Resolve(token)
			if err != nil {
				return outputError(err)
			}
			raster, err := imagestore.FileDecoder{}.Decode(c.Context, path)
			if err != nil {
				return outputError(err)
			}

			info := imageInfo{
				Token:  token,
				Path:   path,
				Format: raster.Format,
				Size:   raster.Size,
				Box:    box,
				Fitted: imagestore.Fit(raster.Size, box),
			}
			if out := c.String("out"); out != "" {
				if err := writeScaled(out, v, raster, box); err != nil {
					return outputError(err)
				}
				info.Out = out
			}

			if c.Bool("json") {
				return outputJSON(rt.out, info)
			}
			fmt.Fprintf(rt.out, "%s: %s %s -> %s (box %s)\n", info.Token, info.Format, info.Size, info.Fitted, info.Box)
			if info.Out != "" {
				fmt.Fprintf(rt.out, "written to %s\n", info.Out)
			}
			return nil
		},
	}
}

// writeScaled encodes raster scaled into box as a JPEG at path, refusing
// to write into the image store or over the database.
func writeScaled(path string, v *ops.Viewer, raster *imagestore.Raster, box imagestore.Size) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	root, _ := filepath.Abs(v.Images.Root)
	dbAbs, _ := filepath.Abs(v.Repo.Path())
	if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
		return errors.NewInvalidRequest("output must not be inside the image store")
	}
	if abs == dbAbs {
		return errors.NewInvalidRequest("output must not overwrite the capture database")
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("cannot create %s: %v", path, err))
	}
	if err := jpeg.Encode(f, imagestore.Scale(raster, box), &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		os.Remove(abs)
		return errors.NewInternal(err)
	}
	return f.Close()
}

// serveCmd creates the serve command.
func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default 8765)"},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet("bind") {
				rt.cfg.Web.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				rt.cfg.Web.Port = c.Int("port")
			}
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			srv, err := web.NewServer(v, rt.cfg, rt.log, Version)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve read-only capture tools over MCP stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(rt.cfg.DisabledTools); len(unknown) > 0 {
				rt.log.Warn("unknown tools in disabled_tools", logger.String("tools", strings.Join(unknown, ",")))
			}
			v, err := rt.viewer()
			if err != nil {
				return outputError(err)
			}
			if err := mcp.Run(v, rt.cfg, rt.log, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Aliases: []string{"s"}, Usage: "Range start, \"YYYY-MM-DD HH:MM:SS\" in the display offset"},
		&cli.StringFlag{Name: "end", Aliases: []string{"e"}, Usage: "Range end, \"YYYY-MM-DD HH:MM:SS\" in the display offset"},
		&cli.Int64Flag{Name: "start-ms", Usage: "Range start in Unix milliseconds"},
		&cli.Int64Flag{Name: "end-ms", Usage: "Range end in Unix milliseconds"},
	}
}

func rangeInput(c *cli.Context) ops.RangeInput {
	r := ops.RangeInput{Start: c.String("start"), End: c.String("end")}
	if c.IsSet("start-ms") {
		ms := c.Int64("start-ms")
		r.StartMs = &ms
	}
	if c.IsSet("end-ms") {
		ms := c.Int64("end-ms")
		r.EndMs = &ms
	}
	return r
}

// outputJSON marshals result to out as JSON.
func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	rErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
}

func printCaptureTable(out io.Writer, o *ops.ListOutput) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	showTokens := false
	for _, it := range o.Items {
		if it.ImageToken != "" {
			showTokens = true
			break
		}
	}

	header := "Id\tName\tImage\t"
	if showTokens {
		header += "ImageToken\t"
	}
	fmt.Fprintln(tw, header+"WindowTitle\tAppName\tTimeStamp\tFilePath\tWebUri")
	for _, it := range o.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t", it.ID, it.Name, it.Image)
		if showTokens {
			fmt.Fprintf(tw, "%s\t", it.ImageToken)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			oneLine(it.WindowTitle), it.AppName, it.Time, it.FilePath, it.WebURI)
	}
	tw.Flush()

	fmt.Fprintf(out, "\n%d-%d of %d\n", min(o.Pagination.Offset+1, o.Pagination.Total),
		o.Pagination.Offset+len(o.Items), o.Pagination.Total)
	fmt.Fprintln(out, o.Status.Text)
}

func printFrameTable(out io.Writer, o *ops.SearchOutput) {
	if o.Message != "" {
		fmt.Fprintf(out, "%s (%s - %s)\n", o.Message, o.Range.Start, o.Range.End)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tId\tTimeStamp\tWindowTitle\tImage\tDisplay")
	for _, f := range o.Items {
		display := f.DisplaySize.String()
		if f.Placeholder != "" {
			display = f.Placeholder
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", f.Index, f.ID, f.Time, oneLine(f.WindowTitle), f.ImageToken, display)
	}
	tw.Flush()
	fmt.Fprintf(out, "\n%d of %d in %s - %s\n", len(o.Items), o.Pagination.Total, o.Range.Start, o.Range.End)
}

func printStatus(out io.Writer, o *ops.StatusOutput) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	found := "missing"
	if o.ImageRootFound {
		found = "found"
	}
	fmt.Fprintf(tw, "database\t%s\n", o.DBPath)
	fmt.Fprintf(tw, "image store\t%s (%s)\n", o.ImageRoot, found)
	fmt.Fprintf(tw, "time zone\t%s\n", o.Zone)
	fmt.Fprintf(tw, "captures\t%d\n", o.Stats.Captures)
	fmt.Fprintf(tw, "with images\t%d\n", o.Stats.WithImages)
	fmt.Fprintf(tw, "apps\t%d\n", o.Stats.Apps)
	fmt.Fprintf(tw, "first capture\t%s\n", orDash(o.FirstCapture))
	fmt.Fprintf(tw, "last capture\t%s\n", orDash(o.LastCapture))
	tw.Flush()
	fmt.Fprintln(out, o.Status.Text)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
