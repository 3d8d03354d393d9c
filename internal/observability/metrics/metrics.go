// Package metrics keeps in-process counters for the orchestrator and exposes
// them in Prometheus text exposition format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type actionKey struct {
	action   string
	strategy string
	status   string
}

type requestKey struct {
	handler string
	code    string
}

type histogram struct {
	bounds []float64
	counts []uint64
	sum    float64
	count  uint64
}

func newHistogram() *histogram {
	bounds := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60}
	return &histogram{bounds: bounds, counts: make([]uint64, len(bounds))}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.bounds {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			return
		}
	}
}

type collector struct {
	mu        sync.Mutex
	actions   map[actionKey]uint64
	durations map[string]*histogram
	fallbacks uint64
	approvals uint64
	requests  map[requestKey]uint64
}

var global = &collector{
	actions:   make(map[actionKey]uint64),
	durations: make(map[string]*histogram),
	requests:  make(map[requestKey]uint64),
}

// ObserveAction records the outcome of one orchestrated user action.
func ObserveAction(action, strategy, status string, duration time.Duration) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.actions[actionKey{action: action, strategy: strategy, status: status}]++
	hist := global.durations[action]
	if hist == nil {
		hist = newHistogram()
		global.durations[action] = hist
	}
	hist.observe(duration.Seconds())
}

// ObserveFallback counts one strategy downgrade from direct mint to the
// swap-and-basket path.
func ObserveFallback() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.fallbacks++
}

// ObserveApprovals counts approval calls included in submitted plans.
func ObserveApprovals(n int) {
	if n <= 0 {
		return
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	global.approvals += uint64(n)
}

// ObserveHTTPRequest records one handled HTTP request.
func ObserveHTTPRequest(handler string, status int) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.requests[requestKey{handler: handler, code: strconv.Itoa(status)}]++
}

// Handler exposes the collected metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, global.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.Grow(1024)

	b.WriteString("# HELP bundlehub_actions_total Total orchestrated user actions by outcome.\n")
	b.WriteString("# TYPE bundlehub_actions_total counter\n")
	actionKeys := make([]actionKey, 0, len(c.actions))
	for key := range c.actions {
		actionKeys = append(actionKeys, key)
	}
	sort.Slice(actionKeys, func(i, j int) bool {
		a, z := actionKeys[i], actionKeys[j]
		if a.action != z.action {
			return a.action < z.action
		}
		if a.strategy != z.strategy {
			return a.strategy < z.strategy
		}
		return a.status < z.status
	})
	for _, key := range actionKeys {
		b.WriteString(fmt.Sprintf("bundlehub_actions_total{action=%q,strategy=%q,status=%q} %d\n",
			key.action, key.strategy, key.status, c.actions[key]))
	}

	b.WriteString("# HELP bundlehub_strategy_fallbacks_total Direct mint calls downgraded to swap-and-basket.\n")
	b.WriteString("# TYPE bundlehub_strategy_fallbacks_total counter\n")
	b.WriteString(fmt.Sprintf("bundlehub_strategy_fallbacks_total %d\n", c.fallbacks))

	b.WriteString("# HELP bundlehub_approvals_total Approval calls included in submitted plans.\n")
	b.WriteString("# TYPE bundlehub_approvals_total counter\n")
	b.WriteString(fmt.Sprintf("bundlehub_approvals_total %d\n", c.approvals))

	b.WriteString("# HELP bundlehub_action_duration_seconds End-to-end action duration.\n")
	b.WriteString("# TYPE bundlehub_action_duration_seconds histogram\n")
	actions := make([]string, 0, len(c.durations))
	for action := range c.durations {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	for _, action := range actions {
		hist := c.durations[action]
		for idx, bound := range hist.bounds {
			b.WriteString(fmt.Sprintf("bundlehub_action_duration_seconds_bucket{action=%q,le=\"%s\"} %d\n",
				action, strconv.FormatFloat(bound, 'f', -1, 64), hist.counts[idx]))
		}
		b.WriteString(fmt.Sprintf("bundlehub_action_duration_seconds_bucket{action=%q,le=\"+Inf\"} %d\n", action, hist.count))
		b.WriteString(fmt.Sprintf("bundlehub_action_duration_seconds_sum{action=%q} %s\n", action, strconv.FormatFloat(hist.sum, 'f', -1, 64)))
		b.WriteString(fmt.Sprintf("bundlehub_action_duration_seconds_count{action=%q} %d\n", action, hist.count))
	}

	b.WriteString("# HELP bundlehub_http_requests_total Total HTTP requests handled.\n")
	b.WriteString("# TYPE bundlehub_http_requests_total counter\n")
	requestKeys := make([]requestKey, 0, len(c.requests))
	for key := range c.requests {
		requestKeys = append(requestKeys, key)
	}
	sort.Slice(requestKeys, func(i, j int) bool {
		if requestKeys[i].handler != requestKeys[j].handler {
			return requestKeys[i].handler < requestKeys[j].handler
		}
		return requestKeys[i].code < requestKeys[j].code
	})
	for _, key := range requestKeys {
		b.WriteString(fmt.Sprintf("bundlehub_http_requests_total{handler=%q,code=%q} %d\n",
			key.handler, key.code, c.requests[key]))
	}

	return b.String()
}

// StartServer launches a standalone HTTP server exposing /metrics.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
