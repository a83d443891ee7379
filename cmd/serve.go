package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/minvws/nl-rdo-prs-go/api"
	"github.com/minvws/nl-rdo-prs-go/internal/exchange"
	"github.com/minvws/nl-rdo-prs-go/internal/oprfcore"
	"github.com/minvws/nl-rdo-prs-go/internal/pseudonym"
	"github.com/minvws/nl-rdo-prs-go/internal/registry"
	"github.com/minvws/nl-rdo-prs-go/internal/ridcore"
)

var (
	address        string
	dbType         string
	dbDSN          string
	masterKeyPath  string
	oprfKeyPath    string
	debug          bool
	insecureTLS    bool
	serverCertPath string
	serverKeyPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve http_address",
	Short: "Serve the PRS HTTP API",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return serveCmdLoadConfig(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("config", "", "Pathname of the configuration file")
	serveCmd.Flags().String("db-type", "sqlite", "KeyRegistry database type: sqlite or postgres")
	serveCmd.Flags().String("db-dsn", "", "KeyRegistry database DSN")
	serveCmd.Flags().String("master-key", "", "Path to the base64url-encoded 32-byte master key file")
	serveCmd.Flags().String("oprf-key", "", "Path to the base64url-encoded 32-byte OPRF key file")
	serveCmd.Flags().Bool("insecure-tls", false, "Serve over TLS; no self-signed certificate is generated, so --server-cert-path and --server-key-path are still required")
	serveCmd.Flags().String("server-cert-path", "", "Path to server certificate")
	serveCmd.Flags().String("server-key-path", "", "Path to server private key")
}

func serveCmdLoadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if len(args) > 0 {
		viper.Set("address", args[0])
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if configPath != "" {
		slog.Debug("Loading server configuration file", "path", configPath)
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("configuration file read failed: %w", err)
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}

	address = viper.GetString("address")
	if address == "" {
		return fmt.Errorf("the serve command requires the 'http_address' argument")
	}

	dbType = viper.GetString("db-type")
	dbDSN = viper.GetString("db-dsn")
	if dbDSN == "" {
		return errors.New("the --db-dsn flag is required")
	}

	masterKeyPath = viper.GetString("master-key")
	if masterKeyPath == "" {
		return errors.New("the --master-key flag is required")
	}
	oprfKeyPath = viper.GetString("oprf-key")
	if oprfKeyPath == "" {
		return errors.New("the --oprf-key flag is required")
	}

	insecureTLS = viper.GetBool("insecure-tls")
	serverCertPath = viper.GetString("server-cert-path")
	serverKeyPath = viper.GetString("server-key-path")

	return nil
}

func runServe() error {
	dbConfig := &DatabaseConfig{Type: dbType, DSN: dbDSN}
	db, err := dbConfig.open()
	if err != nil {
		return err
	}
	store := registry.NewStore(db)

	masterKey, err := loadKeyFile(masterKeyPath)
	if err != nil {
		return err
	}
	oprfKey, err := loadKeyFile(oprfKeyPath)
	if err != nil {
		return err
	}

	oprfEngine, err := oprfcore.New(oprfKey)
	if err != nil {
		return fmt.Errorf("failed to initialise oprf engine: %w", err)
	}

	orch := exchange.New(store, pseudonym.New(masterKey), ridcore.New(masterKey), oprfEngine)
	handler := api.NewRouter(orch)

	useTLS := insecureTLS || (serverCertPath != "" && serverKeyPath != "")
	server := NewServer(address, handler, useTLS)
	slog.Info("Starting PRS server", "addr", address)
	return server.Start()
}

// Server represents the HTTP server, following the graceful-shutdown
// pattern of the teacher's RendezvousServer.
type Server struct {
	addr    string
	handler http.Handler
	useTLS  bool
}

// NewServer creates a new Server.
func NewServer(addr string, handler http.Handler, useTLS bool) *Server {
	return &Server{addr: addr, handler: handler, useTLS: useTLS}
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 3 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Debug("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Debug("Server forced to shutdown:", "err", err)
		}
	}()

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer func() { _ = lis.Close() }()
	slog.Info("Listening", "local", lis.Addr().String())

	if s.useTLS {
		preferredCipherSuites := []uint16{
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		}

		if serverCertPath != "" && serverKeyPath != "" {
			srv.TLSConfig = &tls.Config{
				MinVersion:   tls.VersionTLS12,
				CipherSuites: preferredCipherSuites,
			}
			return srv.ServeTLS(lis, serverCertPath, serverKeyPath)
		}
		return fmt.Errorf("no TLS cert or key provided")
	}
	return srv.Serve(lis)
}
