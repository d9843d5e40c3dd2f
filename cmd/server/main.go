package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/xid"

	"go-soft404/internal/batch"
	"go-soft404/internal/config"
	"go-soft404/internal/ioformats"
	"go-soft404/internal/models"
	"go-soft404/pkg/logger"
	"go-soft404/pkg/soft404"
)

type checkReq struct {
	URL string `json:"url"`
}

type batchReq struct {
	URLs []string `json:"urls"`
}

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.New().Errorf("config: %v", err)
		os.Exit(2)
	}
	l := logger.NewWith(os.Stderr, cfg.Log.Level, cfg.Log.JSON)

	h, err := newHandler(cfg, l)
	if err != nil {
		l.Errorf("config: %v", err)
		os.Exit(2)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      logRequest(l, h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Infof("server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	l.Infof("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	l.Infof("bye")
}

func newHandler(cfg *config.Config, l *logger.Logger) (http.Handler, error) {
	det, err := soft404.New(cfg, l)
	if err != nil {
		return nil, err
	}
	// a check makes at most two sequential fetches
	perCheck := 2*cfg.Timeout() + 5*time.Second
	runner := batch.New(det,
		batch.WithConcurrency(cfg.Batch.Concurrency),
		batch.WithRate(cfg.Batch.RatePerSecond, cfg.Batch.Burst),
		batch.WithTimeout(perCheck),
		batch.WithLogger(l.With("component", "batch")),
	)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// POST /check  { "url": "https://..." }
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		var req checkReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), perCheck)
		defer cancel()

		res, err := det.Check(ctx, req.URL)
		if errors.Is(err, models.ErrMalformedURL) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	// POST /check/batch  { "urls": ["https://...", "..."] }
	mux.HandleFunc("/check/batch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		var req batchReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		writeJSON(w, http.StatusOK, runner.Run(r.Context(), req.URLs))
	})

	// POST /check/upload (multipart file=...) -> NDJSON stream
	mux.HandleFunc("/check/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart parse error"})
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file part 'file' required"})
			return
		}
		defer f.Close()

		// copy to temp file to reuse format reader; keep the extension so xlsx/csv are detected
		tmp, err := os.CreateTemp("", "upload-*-"+safeName(hdr.Filename))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "temp file error"})
			return
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, f); err != nil {
			tmp.Close()
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "copy error"})
			return
		}
		tmp.Close()

		urls, err := ioformats.ReadURLs(tmp.Name())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		flusher, _ := w.(http.Flusher)
		_ = runner.Stream(r.Context(), urls, func(res models.CheckResult) {
			_ = enc.Encode(res)
			if flusher != nil {
				flusher.Flush()
			}
		})
	})

	return mux, nil
}

func safeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			out = append(out, r)
		}
	}
	if len(out) > 64 {
		out = out[len(out)-64:]
	}
	return string(out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logRequest(l *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := xid.New().String()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
		l.With("request_id", id).Infof("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
