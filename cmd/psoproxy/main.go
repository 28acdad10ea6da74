// Command psoproxy runs the single-client GameCube relay described in
// spec.md §4J, independent of the main server binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/openpso/server/internal/proxy"
)

func main() {
	listenAddr := flag.String("listen", ":9500", "address to listen for the single proxied client on")
	upstreamAddr := flag.String("upstream", "127.0.0.1:9300", "upstream server address to relay to")
	publicAddr := flag.String("public-address", "127.0.0.1", "address clients should reconnect to (this proxy's own address)")
	publicPort := flag.Int("public-port", 9500, "port clients should reconnect to (usually -listen's port)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ip := net.ParseIP(*publicAddr)
	if ip == nil {
		log.Error("invalid public address", "address", *publicAddr)
		os.Exit(1)
	}

	srv := proxy.New(*listenAddr, *upstreamAddr, ip, uint16(*publicPort), log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting proxy", "listen", *listenAddr, "upstream", *upstreamAddr)
	if err := srv.Run(ctx); err != nil {
		log.Error("proxy exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("proxy shut down cleanly")
}
