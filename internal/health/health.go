// Package health собирает состояние зависимостей сервиса заказов и отдаёт его
// HTTP-пробами /healthz, /livez и /readyz.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout ограничивает время одной проверки.
const DefaultCheckTimeout = 2 * time.Second

// Status — состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worse возвращает более тяжёлый из двух статусов.
func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Check — результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — сводный отчёт /healthz.
type Report struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Checks        map[string]Check `json:"checks,omitempty"`
}

// Checker проверяет один компонент и должен уважать отмену ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// Monitor хранит зарегистрированные проверки и запускает их параллельно.
type Monitor struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	timeout  time.Duration
	started  time.Time
}

// NewMonitor создаёт монитор без проверок.
func NewMonitor(version string) *Monitor {
	return &Monitor{
		checkers: make(map[string]Checker),
		version:  version,
		timeout:  DefaultCheckTimeout,
		started:  time.Now(),
	}
}

// Register добавляет проверку; повторная регистрация имени заменяет предыдущую.
func (m *Monitor) Register(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// Report запускает все проверки, каждую со своим таймаутом.
func (m *Monitor) Report(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	timeout := m.timeout
	m.mu.RUnlock()

	var (
		mu     sync.Mutex
		checks = make(map[string]Check, len(checkers))
		g      errgroup.Group
	)
	for name, checker := range checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			result := checker.Check(checkCtx)

			mu.Lock()
			checks[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, c := range checks {
		overall = worse(overall, c.Status)
	}
	return Report{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Version:       m.version,
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Checks:        checks,
	}
}

// Mount вешает пробы на router.
func (m *Monitor) Mount(r *mux.Router) {
	r.HandleFunc("/healthz", m.serveHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", serveLive).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", m.serveReady).Methods(http.MethodGet, http.MethodHead)
}

// serveHealth отдаёт полный отчёт; 503 только при unhealthy.
func (m *Monitor) serveHealth(w http.ResponseWriter, r *http.Request) {
	report := m.Report(r.Context())

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

func serveLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// serveReady снимает готовность только при unhealthy; растущий backlog outbox трафик не отключает.
func (m *Monitor) serveReady(w http.ResponseWriter, r *http.Request) {
	if m.Report(r.Context()).Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// PingChecker считает компонент unhealthy, если ping вернул ошибку.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// Ping оборачивает функцию проверки соединения.
func Ping(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Check(ctx context.Context) Check {
	start := time.Now()
	result := Check{Name: c.name, Status: StatusHealthy}
	if err := c.ping(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// BacklogFunc возвращает число неопубликованных событий и время самого старого из них.
type BacklogFunc func(ctx context.Context) (pending int, oldest time.Time, err error)

// BacklogChecker переводит сервис в degraded, когда outbox копит больше maxPending
// событий или самое старое ждёт дольше maxAge. Нулевой порог не проверяется.
type BacklogChecker struct {
	name       string
	backlog    BacklogFunc
	maxPending int
	maxAge     time.Duration
	now        func() time.Time
}

func NewBacklogChecker(name string, backlog BacklogFunc, maxPending int, maxAge time.Duration) *BacklogChecker {
	return &BacklogChecker{
		name:       name,
		backlog:    backlog,
		maxPending: maxPending,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (c *BacklogChecker) Check(ctx context.Context) Check {
	start := time.Now()
	result := Check{Name: c.name, Status: StatusHealthy}

	pending, oldest, err := c.backlog(ctx)
	age := time.Duration(0)
	if pending > 0 && !oldest.IsZero() {
		age = c.now().Sub(oldest)
	}

	switch {
	case err != nil:
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	case c.maxPending > 0 && pending > c.maxPending:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("%d pending events (limit %d)", pending, c.maxPending)
	case c.maxAge > 0 && age > c.maxAge:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("oldest pending event is %s old", age.Truncate(time.Second))
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}
