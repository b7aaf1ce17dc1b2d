package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
)

// version is set at build time via ldflags.
var version = "dev"

const bannerWidth = 80

const usageHeader = `Remote Shell

Opens an interactive shell on a cloud-managed device over a WebSocket.
Press '~' to leave the shell.

Configuration comes from (later wins): built-in defaults, the env file,
MIST_HOST / MIST_APITOKEN / MIST_SITE_ID / MIST_DEVICE_ID, then flags.

Usage:
  remote-shell [flags]

Flags:
`

// app holds everything run needs from the outside world.
type app struct {
	stdin       io.Reader
	stdout      io.Writer
	provisioner Provisioner
	dial        DialFunc
}

type options struct {
	host         string
	siteID       string
	deviceID     string
	envFile      string
	logFile      string
	recordScreen bool
	help         bool
	version      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		provisioner: NewHTTPProvisioner(),
		dial:        DialWebSocket,
	}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (a *app) flagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("remote-shell", pflag.ContinueOnError)
	fs.SetOutput(a.stdout)
	fs.BoolVarP(&opts.help, "help", "h", false, "show this help message and exit")
	fs.BoolVarP(&opts.version, "version", "v", false, "print the version and exit")
	fs.StringVarP(&opts.host, "cloud", "c", defaultHost, "cloud API host")
	fs.StringVarP(&opts.siteID, "site", "s", "", "site id")
	fs.StringVarP(&opts.deviceID, "device", "d", "", "device id")
	fs.StringVarP(&opts.envFile, "env", "e", defaultEnvFile, "environment file")
	fs.StringVarP(&opts.logFile, "log_file", "l", defaultLogFile, "diagnostic log file")
	fs.BoolVar(&opts.recordScreen, "record-screen", false, "write the final screen to the log file")
	fs.Usage = func() {
		fmt.Fprint(a.stdout, usageHeader)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) run(ctx context.Context, args []string) int {
	var opts options
	fs := a.flagSet(&opts)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(a.stdout, "ERROR: %v\n", err)
		return 2
	}
	if opts.help {
		fs.Usage()
		return 0
	}
	if opts.version {
		fmt.Fprintf(a.stdout, "remote-shell v%s\n", version)
		return 0
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(a.stdout, "ERROR: unexpected argument %q\n", fs.Arg(0))
		return 2
	}

	logger, logCloser, err := newLogger(opts.logFile)
	if err != nil {
		fmt.Fprintf(a.stdout, "ERROR: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	cfg, err := LoadConfig(defaultConfig(), opts.envFile)
	if err != nil {
		fmt.Fprintf(a.stdout, "ERROR: %v\n", err)
		return 1
	}
	if fs.Changed("cloud") {
		cfg.Host = opts.host
	}
	if fs.Changed("site") {
		cfg.SiteID = opts.siteID
	}
	if fs.Changed("device") {
		cfg.DeviceID = opts.deviceID
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(a.stdout, "ERROR: %v\nRun with --help for usage.\n", err)
		return 1
	}

	printSettings(a.stdout, cfg)
	logger.Info().Str("host", cfg.Host).Str("site", cfg.SiteID).Str("device", cfg.DeviceID).Msg("provisioning shell")

	info, err := a.provisioner.Provision(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("provisioning failed")
		printProvisioningError(a.stdout, err)
		return 1
	}

	fmt.Fprintln(a.stdout, banner("WS DATA"))
	fmt.Fprintln(a.stdout, formatJSON(info.Raw))
	fmt.Fprintln(a.stdout, banner("STARTING CLI"))
	fmt.Fprintln(a.stdout, banner("Enter '~'-Key for Shell exit"))

	session := NewSession(info.URL, NewKeyboard(a.stdin), a.stdout, logger)
	session.RecordScreen = opts.recordScreen
	if a.dial != nil {
		session.dial = a.dial
	}

	err = session.Run(ctx)
	var connectErr *ConnectError
	switch {
	case err == nil:
		logger.Info().Msg("session ended")
		return 0
	case errors.As(err, &connectErr):
		fmt.Fprintln(a.stdout, banner("ERROR"))
		fmt.Fprintf(a.stdout, "Unable to open the remote shell: %v\n", err)
		return 1
	default:
		logger.Error().Err(err).Msg("session failed")
		fmt.Fprintf(a.stdout, "\r\nSession ended: %v\r\n", err)
		return 1
	}
}

// banner centres title in a line of dashes.
func banner(title string) string {
	return lipgloss.PlaceHorizontal(bannerWidth, lipgloss.Center, " "+title+" ",
		lipgloss.WithWhitespaceChars("-"))
}

func printSettings(w io.Writer, cfg Config) {
	fmt.Fprintln(w, banner("SETTINGS"))
	fmt.Fprintf(w, "cloud host : %s\n", cfg.Host)
	fmt.Fprintf(w, "api token  : %s\n", cfg.MaskedToken())
	fmt.Fprintf(w, "site id    : %s\n", cfg.SiteID)
	fmt.Fprintf(w, "device id  : %s\n", cfg.DeviceID)
}

func printProvisioningError(w io.Writer, err error) {
	fmt.Fprintln(w, banner("ERROR"))
	fmt.Fprintln(w, "Unable to start the remote shell session. Please check the site id, device id, API token and cloud host.")
	fmt.Fprintln(w, err)

	var perr *ProvisioningError
	if errors.As(err, &perr) && perr.Body != "" {
		fmt.Fprintln(w, formatJSON([]byte(perr.Body)))
	}
}

// formatJSON indents b when it is JSON and returns it unchanged otherwise.
func formatJSON(b []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return string(b)
	}
	return out.String()
}
