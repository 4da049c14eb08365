package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mchmarny/xray/pkg/profile"
	"github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverMaxBodyBytes        = 1 << 20
	serverPortDefault         = 8080

	portFlag = "port"
)

func newServerCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP scoring API",
		Action:  cmdStartServer,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  portFlag,
				Usage: "Port on which the server will listen",
				Value: serverPortDefault,
			},
			newWorkersFlag(),
		},
	}
}

func cmdStartServer(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	address := fmt.Sprintf("127.0.0.1:%d", cmd.Int(portFlag))

	// fail on a bad default profile before accepting requests
	if _, err := cfg.Profiles.Get(cfg.Profile); err != nil {
		return err
	}
	if n := cmd.Int(workersFlag); n > 0 {
		cfg.Workers = n
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(cfg),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
		BaseContext:    func(_ net.Listener) context.Context { return ctx },
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", "http://"+address)

	select {
	case <-done:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(cfg *appConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/profiles", profilesAPIHandler(cfg))
	mux.HandleFunc("POST /api/score", scoreAPIHandler(cfg))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func profilesAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, listProfiles(cfg.Profiles))
	}
}

// scoreAPIHandler scores the request body as one document. The profile
// and strict query params override the server defaults.
func scoreAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		name := q.Get("profile")
		if name == "" {
			name = cfg.Profile
		}

		strict := cfg.Strict
		if v := q.Get("strict"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "strict must be a boolean")
				return
			}
			strict = b
		}

		e, err := newEngine(r.Context(), cfg, name, strict, cfg.Workers)
		if err != nil {
			var ce *profile.ConfigError
			if errors.As(err, &ce) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.Error("failed to create engine", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create engine")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, serverMaxBodyBytes))
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeError(w, http.StatusRequestEntityTooLarge, "document too large")
				return
			}
			writeError(w, http.StatusBadRequest, "error reading document")
			return
		}

		rep := e.Score(r.Context(), q.Get("file"), string(body))
		slog.Debug("api document scored", "composite", rep.Composite, "profile", rep.Profile)
		writeJSON(w, http.StatusOK, rep)
	}
}
