// Package metrics 提供Prometheus监控指标
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// 指标名称
const (
	HTTPRequestsTotal     = "caidan_http_requests_total"
	HTTPRequestDuration   = "caidan_http_request_duration_seconds"
	PlanSolveTotal        = "caidan_plan_solve_total"
	PlanSolveDuration     = "caidan_plan_solve_duration_seconds"
	PlanGenerations       = "caidan_plan_generations"
	PlanBestScore         = "caidan_plan_best_score"
	PlanActiveSolves      = "caidan_plan_active_solves"
	QueueJobsTotal        = "caidan_queue_jobs_total"
	CatalogRecipes        = "caidan_catalog_recipes"
	DomainRelaxationTotal = "caidan_domain_relaxation_total"
)

// MetricsRegistry 指标注册表
type MetricsRegistry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *MetricsRegistry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *MetricsRegistry {
	once.Do(func() {
		registry = NewRegistry()
		initDefaultMetrics(registry)
	})
	return registry
}

// NewRegistry 创建空的注册表
func NewRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// initDefaultMetrics 初始化默认指标
func initDefaultMetrics(r *MetricsRegistry) {
	r.NewCounter(HTTPRequestsTotal, "HTTP请求总数", []string{"method", "path", "status"})
	r.NewHistogram(HTTPRequestDuration, "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0})

	// 求解
	r.NewCounter(PlanSolveTotal, "菜单规划求解次数", []string{"solver", "status"})
	r.NewHistogram(PlanSolveDuration, "菜单规划求解耗时",
		[]string{"solver"},
		[]float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0})
	r.NewHistogram(PlanGenerations, "每次求解的遗传代数",
		[]string{"solver"},
		[]float64{1, 10, 50, 100, 250, 500, 1000, 5000})
	r.NewGauge(PlanBestScore, "最近一次求解的最优得分", []string{"solver"})
	r.NewGauge(PlanActiveSolves, "当前进行中的求解数", []string{})
	r.NewCounter(DomainRelaxationTotal, "未能应用全部过滤器的菜品数", []string{})

	// 异步任务
	r.NewCounter(QueueJobsTotal, "异步规划任务数", []string{"status"})

	r.NewGauge(CatalogRecipes, "食谱目录中的食谱数", []string{})
}

// NewCounter 创建计数器
func (r *MetricsRegistry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter := &Counter{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.counters[name] = counter
	return counter
}

// NewGauge 创建仪表盘
func (r *MetricsRegistry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge := &Gauge{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.gauges[name] = gauge
	return gauge
}

// NewHistogram 创建直方图
func (r *MetricsRegistry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram := &Histogram{
		Name:    name,
		Help:    help,
		Labels:  labels,
		Buckets: buckets,
		counts:  make(map[string][]int),
		sums:    make(map[string]float64),
	}
	r.histograms[name] = histogram
	return histogram
}

// GetCounter 获取计数器
func (r *MetricsRegistry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *MetricsRegistry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *MetricsRegistry) GetHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Value 当前计数
func (c *Counter) Value(labelValues ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[labelKey(labelValues)]
}

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Inc 增加
func (g *Gauge) Inc(labelValues ...string) {
	g.Add(1, labelValues...)
}

// Dec 减少
func (g *Gauge) Dec(labelValues ...string) {
	g.Add(-1, labelValues...)
}

// Add 增加指定值
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] += value
}

// Value 当前值
func (g *Gauge) Value(labelValues ...string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.values[labelKey(labelValues)]
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}

	// 只记入第一个满足的桶，输出时累加
	placed := false
	for i, bucket := range h.Buckets {
		if value <= bucket {
			h.counts[key][i]++
			placed = true
			break
		}
	}
	if !placed {
		h.counts[key][len(h.Buckets)]++
	}
	h.sums[key] += value
}

// Count 观测次数
func (h *Histogram) Count(labelValues ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, c := range h.counts[labelKey(labelValues)] {
		total += c
	}
	return total
}

// labelKey 生成标签键
func labelKey(labels []string) string {
	return strings.Join(labels, ",")
}

// Handler 返回Prometheus格式的指标HTTP处理器
func Handler() http.Handler {
	return GetRegistry().Handler()
}

// Handler 返回该注册表的HTTP处理器
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.Expose(w)
	})
}

// Expose 按名称顺序输出全部指标
func (r *MetricsRegistry) Expose(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedNames(r.counters) {
		counter := r.counters[name]
		fmt.Fprintf(w, "# HELP %s %s\n", counter.Name, counter.Help)
		fmt.Fprintf(w, "# TYPE %s counter\n", counter.Name)

		counter.mu.RLock()
		for _, key := range sortedNames(counter.values) {
			fmt.Fprintf(w, "%s%s %g\n", counter.Name, braces(counter.Labels, key, ""), counter.values[key])
		}
		counter.mu.RUnlock()
	}

	for _, name := range sortedNames(r.gauges) {
		gauge := r.gauges[name]
		fmt.Fprintf(w, "# HELP %s %s\n", gauge.Name, gauge.Help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", gauge.Name)

		gauge.mu.RLock()
		for _, key := range sortedNames(gauge.values) {
			fmt.Fprintf(w, "%s%s %g\n", gauge.Name, braces(gauge.Labels, key, ""), gauge.values[key])
		}
		gauge.mu.RUnlock()
	}

	for _, name := range sortedNames(r.histograms) {
		histogram := r.histograms[name]
		fmt.Fprintf(w, "# HELP %s %s\n", histogram.Name, histogram.Help)
		fmt.Fprintf(w, "# TYPE %s histogram\n", histogram.Name)

		histogram.mu.RLock()
		for _, key := range sortedNames(histogram.counts) {
			counts := histogram.counts[key]
			cumulative := 0
			for i, bucket := range histogram.Buckets {
				cumulative += counts[i]
				le := `le="` + strconv.FormatFloat(bucket, 'g', -1, 64) + `"`
				fmt.Fprintf(w, "%s_bucket%s %d\n", histogram.Name, braces(histogram.Labels, key, le), cumulative)
			}
			cumulative += counts[len(histogram.Buckets)]
			fmt.Fprintf(w, "%s_bucket%s %d\n", histogram.Name, braces(histogram.Labels, key, `le="+Inf"`), cumulative)
			fmt.Fprintf(w, "%s_sum%s %g\n", histogram.Name, braces(histogram.Labels, key, ""), histogram.sums[key])
			fmt.Fprintf(w, "%s_count%s %d\n", histogram.Name, braces(histogram.Labels, key, ""), cumulative)
		}
		histogram.mu.RUnlock()
	}
}

// braces 生成 {a="x",b="y"} 形式的标签，没有标签时为空
func braces(names []string, key, extra string) string {
	parts := make([]string, 0, len(names)+1)
	if len(names) > 0 {
		vals := strings.Split(key, ",")
		for i, name := range names {
			val := ""
			if i < len(vals) {
				val = vals[i]
			}
			parts = append(parts, fmt.Sprintf("%s=%q", name, val))
		}
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	registry := GetRegistry()

	if counter := registry.GetCounter(HTTPRequestsTotal); counter != nil {
		counter.Inc(method, path, strconv.Itoa(status))
	}
	if histogram := registry.GetHistogram(HTTPRequestDuration); histogram != nil {
		histogram.Observe(duration.Seconds(), method, path)
	}
}

// RecordPlanSolve 记录一次求解
func RecordPlanSolve(solver string, success bool, duration time.Duration, generations int, score int64) {
	registry := GetRegistry()

	status := "success"
	if !success {
		status = "failure"
	}
	if counter := registry.GetCounter(PlanSolveTotal); counter != nil {
		counter.Inc(solver, status)
	}
	if histogram := registry.GetHistogram(PlanSolveDuration); histogram != nil {
		histogram.Observe(duration.Seconds(), solver)
	}
	if !success {
		return
	}
	if histogram := registry.GetHistogram(PlanGenerations); histogram != nil {
		histogram.Observe(float64(generations), solver)
	}
	if gauge := registry.GetGauge(PlanBestScore); gauge != nil {
		gauge.Set(float64(score), solver)
	}
}

// SolveStarted 进行中的求解数加一，返回的函数在求解结束时调用
func SolveStarted() func() {
	gauge := GetRegistry().GetGauge(PlanActiveSolves)
	if gauge == nil {
		return func() {}
	}
	gauge.Inc()
	return func() { gauge.Dec() }
}

// RecordDomainRelaxation 记录未能应用全部过滤器的菜品数
func RecordDomainRelaxation(dishes int) {
	if dishes <= 0 {
		return
	}
	if counter := GetRegistry().GetCounter(DomainRelaxationTotal); counter != nil {
		counter.Add(float64(dishes))
	}
}

// RecordQueueJob 记录异步任务状态（queued / succeeded / failed）
func RecordQueueJob(status string) {
	if counter := GetRegistry().GetCounter(QueueJobsTotal); counter != nil {
		counter.Inc(status)
	}
}

// SetCatalogSize 设置食谱目录大小
func SetCatalogSize(n int) {
	if gauge := GetRegistry().GetGauge(CatalogRecipes); gauge != nil {
		gauge.Set(float64(n))
	}
}
