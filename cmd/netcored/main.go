// Command netcored is a reference driver for this module: it loads a
// TOML boot configuration, brings up a dns.Instance and an
// httpcore.Instance over it (optionally TLS-wrapped), fetches one URL,
// and prints the response. It exists to exercise the library end to
// end outside of the firmware target it is ultimately embedded in, the
// way cmd/routedns exists to exercise routedns's resolver library.
package main

import (
	"fmt"
	"io"
	"os"

	syslog "github.com/RackSec/srslog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/dns"
	"github.com/fwnet/netcore/httpcore"
	"github.com/fwnet/netcore/tlspump"
	"github.com/fwnet/netcore/transport"
)

type options struct {
	configPath string
	url        string
	method     string
	bootImage  bool
	version    string
	arch       string
	useSyslog  bool
	logLevel   string
}

func main() {
	var opt options
	cmd := &cobra.Command{
		Use:   "netcored <config.toml>",
		Short: "Reference driver for the DNS/HTTP/TLS core",
		Long: `Reference driver for the DNS query engine, HTTP client, and TLS
pump implemented in this module.

Loads a TOML boot configuration describing the DNS servers, cache
backend, and HTTP/TLS timeouts to bring the stack up with, resolves
and fetches one URL, and prints the response.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.configPath = args[0]
			return run(opt)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&opt.url, "url", "u", "", "URL to fetch (overrides --boot-image)")
	cmd.Flags().StringVarP(&opt.method, "method", "X", "GET", "HTTP method: GET or HEAD")
	cmd.Flags().BoolVar(&opt.bootImage, "boot-image", false, "fetch the templated boot image URL instead of --url")
	cmd.Flags().StringVar(&opt.version, "image-version", "latest", "boot image version, used with --boot-image")
	cmd.Flags().StringVar(&opt.arch, "arch", "x86_64", "boot image architecture, used with --boot-image")
	cmd.Flags().BoolVar(&opt.useSyslog, "syslog", false, "mirror log output to the local syslog daemon")
	cmd.Flags().StringVarP(&opt.logLevel, "log-level", "l", "info", "log level: debug, info, warn, error")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opt options) error {
	setupLogging(opt)

	cfg, err := netcore.LoadBootConfig(opt.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	world := netcore.NewDnsWorld()
	defer world.Reset()

	cacheBackend, err := buildCacheBackend(cfg)
	if err != nil {
		return err
	}

	family := cfg.AddressFamily()
	dnsSvc := dns.NewService(world, family, cacheBackend)
	defer dnsSvc.Close()

	if len(cfg.DNS.Servers) == 0 {
		return fmt.Errorf("dns.servers must list at least one server")
	}
	udp, err := transport.NewNetPacketConn(cfg.DNS.Servers[0] + ":53")
	if err != nil {
		return fmt.Errorf("dial DNS server: %w", err)
	}
	dnsInst := dnsSvc.NewInstance("netcored", udp)
	dnsCfg := dnsConfigFrom(cfg)
	if cerr := dnsInst.Configure(&dnsCfg); cerr != nil {
		return fmt.Errorf("configure DNS instance: %w", cerr)
	}
	defer dnsInst.Configure(nil)

	var httpSvc *httpcore.Service
	if cfg.TLS.Enabled {
		netcore.Log.Warn("TLS boot config enabled, but no cryptographic Engine is wired into the reference driver; HTTPS fetches will fail at connect time")
		httpSvc = httpcore.NewServiceWithTLS(dnsInst, noEngineFactory, cfg.TLS.HandshakeTimeout.Duration())
	} else {
		httpSvc = httpcore.NewService(dnsInst)
	}

	httpInst := httpSvc.NewInstance("netcored")
	httpCfg := httpcore.Config{
		UseDefaultAddr: cfg.UseDefaultAddr,
		StationAddress: cfg.StationIP,
		StationMask:    cfg.SubnetMask,
		Timeout:        cfg.HTTP.Timeout.Duration(),
	}
	if cerr := httpInst.Configure(&httpCfg); cerr != nil {
		return fmt.Errorf("configure HTTP instance: %w", cerr)
	}
	defer httpInst.Configure(nil)

	target, err := resolveTarget(opt)
	if err != nil {
		return err
	}

	method := httpcore.MethodGet
	if opt.method == "HEAD" {
		method = httpcore.MethodHead
	}

	result, err := runFetch(httpInst, method, target, cfg.HTTP.Timeout.Duration())
	if err != nil {
		return fmt.Errorf("fetch %s: %w", target, err)
	}

	fmt.Printf("%d %s\n", result.StatusCode, result.Reason)
	for _, h := range result.Headers {
		fmt.Printf("%s: %s\n", h.Name, h.Value)
	}
	fmt.Println()
	os.Stdout.Write(result.Body)
	return nil
}

// resolveTarget picks the URL to fetch: an explicit --url, or the
// templated boot-image URL expanded against --image-version/--arch.
func resolveTarget(opt options) (string, error) {
	if opt.url != "" {
		return opt.url, nil
	}
	if opt.bootImage {
		return expandBootImageURL("boot.example.net", opt.version, opt.arch)
	}
	return "", fmt.Errorf("one of --url or --boot-image is required")
}

// noEngineFactory is the placeholder tlspump.Engine factory wired when
// the boot config asks for TLS but the driver has no concrete
// cryptographic engine available, since that engine is an external
// collaborator this module does not implement (spec §1). Any HTTPS
// request routed through it fails at connect time rather than at
// compile time, so the driver still demonstrates the wiring path.
func noEngineFactory(serverName string) tlspump.Engine {
	return nil
}

// setupLogging installs a logrus logger as netcore.Log, optionally
// mirroring its output to the local syslog daemon via srslog the way
// routedns's own cmd wires a syslog resolver (syslog.go), here used as
// a plain io.Writer sink rather than a DNS resolver in its own right.
func setupLogging(opt options) {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(opt.logLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if opt.useSyslog {
		writer, err := syslog.Dial("", "", syslog.LOG_INFO, "netcored")
		if err != nil {
			logger.WithError(err).Warn("syslog unavailable, logging to stderr only")
		} else {
			logger.SetOutput(io.MultiWriter(os.Stderr, writer))
		}
	}

	netcore.Log = netcore.NewLogrusLogger(logger)
}
