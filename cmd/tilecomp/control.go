package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/ipc"
	"github.com/1broseidon/tilecomp/internal/region"
)

// newFlagSet builds a flag set whose usage prints the given lines.
func newFlagSet(name string, usage ...string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		for _, l := range usage {
			fmt.Fprintln(os.Stderr, l)
		}
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags returns -1 to continue, or the exit code.
func parseFlags(fs *flag.FlagSet, args []string, nargs int) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if nargs >= 0 && fs.NArg() != nargs {
		fs.Usage()
		return 2
	}
	return -1
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return 1
}

func runCompose(args []string) int {
	fs := newFlagSet("compose", "Usage: tilecomp compose", "", "Run a compose pass immediately.")
	if code := parseFlags(fs, args, 0); code >= 0 {
		return code
	}
	data, err := ipc.NewClient().Compose()
	if err != nil {
		return fail(err)
	}
	fmt.Printf("frame: %d flushed: %v\n", data.Frame, data.Flushed)
	return 0
}

func runInvalidate(args []string) int {
	fs := newFlagSet("invalidate",
		"Usage: tilecomp invalidate [--rect x,y,w,h | --windows | --cursor]",
		"", "Damage part of the desktop; with no flag the whole desktop.")
	rect := fs.String("rect", "", "Damage one rect, x,y,w,h")
	windows := fs.Bool("windows", false, "Repaint every visible window")
	cursor := fs.Bool("cursor", false, "Redraw the pointer sprite")
	if code := parseFlags(fs, args, 0); code >= 0 {
		return code
	}

	client := ipc.NewClient()
	var err error
	switch {
	case *rect != "":
		r, perr := parseRect(*rect)
		if perr != nil {
			return fail(perr)
		}
		err = client.InvalidateRect(r)
	case *windows:
		err = client.InvalidateWindows()
	case *cursor:
		err = client.InvalidateCursor()
	default:
		err = client.InvalidateScreen()
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

func runBackground(args []string) int {
	fs := newFlagSet("background", "Usage: tilecomp background <#rrggbb>")
	if code := parseFlags(fs, args, 1); code >= 0 {
		return code
	}
	if _, err := compositor.ParseColor(fs.Arg(0)); err != nil {
		return fail(err)
	}
	if err := ipc.NewClient().SetBackground(fs.Arg(0)); err != nil {
		return fail(err)
	}
	return 0
}

func runWallpaper(args []string) int {
	fs := newFlagSet("wallpaper",
		"Usage: tilecomp wallpaper [--mode tile|center|stretch] <path>",
		"", "Load a wallpaper image. An empty path (\"\") clears it.")
	mode := fs.String("mode", "", "Wallpaper mode")
	if code := parseFlags(fs, args, 1); code >= 0 {
		return code
	}
	if *mode != "" {
		if _, ok := compositor.ParseWallpaperMode(*mode); !ok {
			return fail(fmt.Errorf("unknown wallpaper mode %q", *mode))
		}
	}

	path := fs.Arg(0)
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fail(err)
		}
		path = abs
	}
	if err := ipc.NewClient().SetWallpaper(path, *mode); err != nil {
		return fail(err)
	}
	return 0
}

func runWallpaperMode(args []string) int {
	fs := newFlagSet("wallpaper-mode", "Usage: tilecomp wallpaper-mode tile|center|stretch")
	if code := parseFlags(fs, args, 1); code >= 0 {
		return code
	}
	if err := ipc.NewClient().SetWallpaperMode(fs.Arg(0)); err != nil {
		return fail(err)
	}
	return 0
}

func runScreenshot(args []string) int {
	fs := newFlagSet("screenshot", "Usage: tilecomp screenshot [--screen N] [--cursor PATH] <out.png>")
	screen := fs.Int("screen", 0, "Screen id")
	cursor := fs.String("cursor", "", "Also write the cursor sprite to PATH")
	if code := parseFlags(fs, args, 1); code >= 0 {
		return code
	}

	out, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return fail(err)
	}
	cursorPath := ""
	if *cursor != "" {
		if cursorPath, err = filepath.Abs(*cursor); err != nil {
			return fail(err)
		}
	}

	data, err := ipc.NewClient().Screenshot(*screen, out, cursorPath)
	if err != nil {
		return fail(err)
	}
	b := data.Bounds
	fmt.Printf("%s %dx%d+%d+%d\n", data.Path, b.Width, b.Height, b.X, b.Y)
	if data.CursorPath != "" {
		fmt.Printf("%s at %d,%d\n", data.CursorPath, data.Cursor.X, data.Cursor.Y)
	}
	return 0
}

func runToggle(name string, args []string, fn func(*ipc.Client, bool) (int, error)) int {
	fs := newFlagSet(name, "Usage: tilecomp "+name+" on|off")
	if code := parseFlags(fs, args, 1); code >= 0 {
		return code
	}
	enable, err := parseOnOff(fs.Arg(0))
	if err != nil {
		return fail(err)
	}
	n, err := fn(ipc.NewClient(), enable)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s: %d\n", name, n)
	return 0
}

func runCursor(args []string) int {
	fs := newFlagSet("cursor", "Usage: tilecomp cursor <x> <y>")
	if code := parseFlags(fs, args, 2); code >= 0 {
		return code
	}
	x, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fail(fmt.Errorf("bad x: %w", err))
	}
	y, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fail(fmt.Errorf("bad y: %w", err))
	}
	r, err := ipc.NewClient().MoveCursor(x, y)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("cursor: %d,%d %dx%d\n", r.X, r.Y, r.Width, r.Height)
	return 0
}

func printWindowUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tilecomp window put [--title T] [--color C] [--transparent] [--hidden] <id> <x,y,w,h>")
	fmt.Fprintln(os.Stderr, "  tilecomp window remove <id>")
	fmt.Fprintln(os.Stderr, "  tilecomp window raise <id>")
}

func runWindow(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printWindowUsage()
		return 2
	}

	client := ipc.NewClient()
	switch args[0] {
	case "put":
		fs := newFlagSet("put", "Usage: tilecomp window put [flags] <id> <x,y,w,h>")
		title := fs.String("title", "", "Window title")
		color := fs.String("color", "", "Fill colour, #rrggbb[aa]")
		transparent := fs.Bool("transparent", false, "Blend with what is below")
		hidden := fs.Bool("hidden", false, "Insert hidden")
		if code := parseFlags(fs, args[1:], 2); code >= 0 {
			return code
		}
		w, err := windowPayload(fs.Arg(0), fs.Arg(1), *title, *color, *transparent, *hidden)
		if err != nil {
			return fail(err)
		}
		if err := client.PutWindow(w); err != nil {
			return fail(err)
		}
		return 0

	case "remove", "raise":
		fs := newFlagSet(args[0], "Usage: tilecomp window "+args[0]+" <id>")
		if code := parseFlags(fs, args[1:], 1); code >= 0 {
			return code
		}
		id, err := parseWindowID(fs.Arg(0))
		if err != nil {
			return fail(err)
		}
		if args[0] == "remove" {
			err = client.RemoveWindow(id)
		} else {
			err = client.RaiseWindow(id)
		}
		if err != nil {
			return fail(err)
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown window subcommand: %s\n", args[0])
		printWindowUsage()
		return 2
	}
}

func runDrag(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tilecomp drag begin [label] | tilecomp drag end")
		return 2
	}
	client := ipc.NewClient()
	var err error
	switch args[0] {
	case "begin":
		err = client.BeginDrag(strings.Join(args[1:], " "))
	case "end":
		err = client.EndDrag()
	default:
		fmt.Fprintf(os.Stderr, "Unknown drag subcommand: %s\n", args[0])
		return 2
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

func runGeometry(args []string) int {
	fs := newFlagSet("geometry", "Usage: tilecomp geometry <id> on|off")
	if code := parseFlags(fs, args, 2); code >= 0 {
		return code
	}
	id, err := parseWindowID(fs.Arg(0))
	if err != nil {
		return fail(err)
	}
	show, err := parseOnOff(fs.Arg(1))
	if err != nil {
		return fail(err)
	}
	if err := ipc.NewClient().WindowGeometry(id, show); err != nil {
		return fail(err)
	}
	return 0
}

func windowPayload(idArg, rectArg, title, color string, transparent, hidden bool) (ipc.WindowPayload, error) {
	id, err := parseWindowID(idArg)
	if err != nil {
		return ipc.WindowPayload{}, err
	}
	r, err := parseRect(rectArg)
	if err != nil {
		return ipc.WindowPayload{}, err
	}
	if color != "" {
		if _, err := compositor.ParseColor(color); err != nil {
			return ipc.WindowPayload{}, err
		}
	}
	opaque := !transparent
	visible := !hidden
	return ipc.WindowPayload{
		ID:      id,
		Title:   title,
		Bounds:  r,
		Opaque:  &opaque,
		Visible: &visible,
		Color:   color,
	}, nil
}

// parseRect parses "x,y,w,h".
func parseRect(s string) (region.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return region.Rect{}, fmt.Errorf("rect must be x,y,w,h: %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return region.Rect{}, fmt.Errorf("rect must be x,y,w,h: %q", s)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return region.Rect{}, fmt.Errorf("rect %q is empty", s)
	}
	return region.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

// parseWindowID accepts decimal or 0x-prefixed hex ids.
func parseWindowID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("bad window id %q", s)
	}
	return uint32(n), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "show":
		return true, nil
	case "off", "false", "0", "hide":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
