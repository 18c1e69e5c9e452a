package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/propfin/pkg/logger"
)

// Probe reports whether a dependency is usable.
type Probe func(context.Context) error

// LivenessHandler answers 200 ALIVE while the process can serve requests.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// ReadinessHandler runs every probe concurrently, each bounded by timeout,
// and answers 200 READY or 503 NOT_READY followed by the failing probe names.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, probes map[string]Probe) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			mu     sync.Mutex
			failed []string
			g      errgroup.Group
		)
		for name, probe := range probes {
			g.Go(func() error {
				if err := probe(ctx); err != nil {
					log.ErrorContext(ctx, "readiness probe failed", slog.String("probe", name), logger.Error(err))
					mu.Lock()
					failed = append(failed, name)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(failed) > 0 {
			sort.Strings(failed)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY: " + strings.Join(failed, ",")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
