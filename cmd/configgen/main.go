package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/atlasgate/internal/config"
	"github.com/danmuck/atlasgate/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("configgen", flag.ContinueOnError)
	output := fs.String("output", "atlasgate.toml", "output path for config template")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.String("input", "", "config path for validation (defaults to -output)")
	force := fs.Bool("force", false, "overwrite existing files")
	certDir := fs.String("cert-dir", "", "also write a self-signed server.crt/server.key here")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma separated DNS names and IPs for the certificate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.ConfigureRuntime()

	if *validate {
		path := *input
		if path == "" {
			path = *output
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := cfg.Transport.ValidateServerTransport(); err != nil {
			return err
		}
		log.Info().Str("path", path).Str("listen", cfg.ListenAddr()).Int("tokens", len(cfg.Tokens)).Msg("configgen.validated")
		return nil
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		return err
	}
	log.Info().Str("path", *output).Msg("configgen.template written")

	if *certDir != "" {
		certPath := filepath.Join(*certDir, "server.crt")
		keyPath := filepath.Join(*certDir, "server.key")
		if err := writeSelfSigned(certPath, keyPath, splitHosts(*hosts), *force); err != nil {
			return err
		}
		log.Info().Str("cert", certPath).Str("key", keyPath).Msg("configgen.certificate written")
	}
	return nil
}

func splitHosts(raw string) []string {
	out := []string{}
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
