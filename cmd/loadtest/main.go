// Command loadtest нагружает HTTP API магазина сценарием
// «разместить заказ» с опциональной отменой части заказов.
// Перед прогоном инструмент сам создаёт категорию и товар
// с достаточным запасом, от имени администратора.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerUserID         = "X-User-Id"
	headerUserRole       = "X-User-Role"

	codeTransportError = "transport_error"

	defaultQty   = 1
	defaultPrice = "10.00"
)

type loadMode string

const (
	modePlace       loadMode = "place"
	modePlaceCancel loadMode = "place-cancel"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	quantity    int
	price       string
	seedStock   int
	adminID     string
	customerTag string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// statusKey переводит результат HTTP-вызова в ключ для счётчиков:
// код ответа либо transport_error, если ответа не было.
func statusKey(status int, err error) string {
	if err != nil && status == 0 {
		return codeTransportError
	}
	return strconv.Itoa(status)
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

func (c *collector) record(method string, latency time.Duration, status int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if err == nil && isSuccessStatus(status) {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[statusKey(status, err)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	codesCopy := make(map[string]int64, len(stats.codes))
	for code, count := range stats.codes {
		codesCopy[code] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "base URL of the shop HTTP API")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-cancel")
	flag.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for place-cancel mode (0..100)")
	flag.IntVar(&cfg.quantity, "quantity", defaultQty, "units of the seeded product per order")
	flag.StringVar(&cfg.price, "price", defaultPrice, "price of the seeded product")
	flag.IntVar(&cfg.seedStock, "seed-stock", 0, "stock of the seeded product (0 = derived from total and quantity)")
	flag.StringVar(&cfg.adminID, "admin-id", "loadtest-admin", "user id used for catalog seeding")
	flag.StringVar(&cfg.customerTag, "customer-tag", "load", "customer id prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.quantity <= 0 {
		return cfg, errors.New("quantity must be > 0")
	}
	if cfg.seedStock < 0 {
		return cfg, errors.New("seed-stock must be >= 0")
	}
	if cfg.cancelRate < 0 || cfg.cancelRate > 100 {
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	}
	if strings.TrimSpace(cfg.baseURL) == "" {
		return cfg, errors.New("addr is required")
	}
	if strings.TrimSpace(cfg.price) == "" {
		return cfg, errors.New("price is required")
	}
	if strings.TrimSpace(cfg.adminID) == "" {
		return cfg, errors.New("admin-id is required")
	}
	if strings.TrimSpace(cfg.customerTag) == "" {
		return cfg, errors.New("customer-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modePlaceCancel:
		return modePlaceCancel, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s (use place | place-cancel)", value)
	}
}

// apiClient — минимальный HTTP-клиент магазина для нагрузочного прогона.
type apiClient struct {
	baseURL string
	client  *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type callResult struct {
	status int
	body   []byte
}

func (c *apiClient) do(method, path, userID, role, idempotencyKey string, payload any) (callResult, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return callResult{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return callResult{}, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	if role != "" {
		req.Header.Set(headerUserRole, role)
	}
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return callResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return callResult{status: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}
	return callResult{status: resp.StatusCode, body: raw}, nil
}

type idResponse struct {
	ID string `json:"id"`
}

// seedCatalog создаёт категорию и товар для прогона и возвращает id товара.
func seedCatalog(api *apiClient, cfg config, runID string) (string, error) {
	category := map[string]string{
		"name":        fmt.Sprintf("loadtest-%s", runID),
		"description": "synthetic load-test category",
	}
	result, err := api.do(http.MethodPost, "/categories", cfg.adminID, "admin", "", category)
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	if result.status != http.StatusCreated {
		return "", fmt.Errorf("create category: unexpected status %d: %s", result.status, result.body)
	}
	var categoryResp idResponse
	if err := json.Unmarshal(result.body, &categoryResp); err != nil {
		return "", fmt.Errorf("decode category response: %w", err)
	}

	stock := cfg.seedStock
	if stock == 0 {
		stock = cfg.total * cfg.quantity
		if cfg.duration > 0 && !cfg.totalSet {
			stock = 1_000_000
		}
	}

	product := map[string]any{
		"name":        fmt.Sprintf("loadtest-product-%s", runID),
		"description": "synthetic load-test product",
		"price":       json.Number(cfg.price),
		"stock":       stock,
		"category_id": categoryResp.ID,
	}
	result, err = api.do(http.MethodPost, "/products", cfg.adminID, "admin", "", product)
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	if result.status != http.StatusCreated {
		return "", fmt.Errorf("create product: unexpected status %d: %s", result.status, result.body)
	}
	var productResp idResponse
	if err := json.Unmarshal(result.body, &productResp); err != nil {
		return "", fmt.Errorf("decode product response: %w", err)
	}
	return productResp.ID, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	api := newAPIClient(cfg.baseURL, cfg.timeout)

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	productID, err := seedCatalog(api, cfg, runID)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "catalog seeding failed: %v\n", err)
		os.Exit(1)
	}

	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(api, cfg, productID, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(
	api *apiClient,
	cfg config,
	productID string,
	index int,
	runID string,
	col *collector,
) error {
	scenarioStart := time.Now()
	scenarioStatus := http.StatusOK
	var scenarioErr error
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioStatus, scenarioErr)
	}()

	customerID := fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, index)
	placeKey := fmt.Sprintf("lt-place-%s-%d", runID, index)

	orderID, status, err := callPlaceOrder(api, customerID, productID, cfg.quantity, placeKey, col)
	if err != nil || status != http.StatusCreated {
		scenarioStatus = status
		scenarioErr = err
		if scenarioErr == nil {
			scenarioErr = fmt.Errorf("place order returned status %d", status)
		}
		return scenarioErr
	}
	if orderID == "" {
		scenarioStatus = http.StatusInternalServerError
		scenarioErr = errors.New("place response returned empty order id")
		return scenarioErr
	}

	if cfg.mode == modePlaceCancel && shouldCancelScenario(index, cfg.cancelRate) {
		status, err := callCancelOrder(api, customerID, orderID, col)
		if err != nil || status != http.StatusOK {
			scenarioStatus = status
			scenarioErr = err
			if scenarioErr == nil {
				scenarioErr = fmt.Errorf("cancel order returned status %d", status)
			}
			return scenarioErr
		}
	}

	return nil
}

func callPlaceOrder(
	api *apiClient,
	customerID, productID string,
	quantity int,
	key string,
	col *collector,
) (string, int, error) {
	start := time.Now()
	payload := map[string]any{
		"items": []map[string]any{
			{"product_id": productID, "quantity": quantity},
		},
	}

	result, err := api.do(http.MethodPost, "/orders", customerID, "customer", key, payload)
	col.record("PlaceOrder", time.Since(start), result.status, err)
	if err != nil {
		return "", result.status, err
	}
	if result.status != http.StatusCreated {
		return "", result.status, nil
	}

	var order idResponse
	if err := json.Unmarshal(result.body, &order); err != nil {
		return "", result.status, fmt.Errorf("decode order response: %w", err)
	}
	return order.ID, result.status, nil
}

func callCancelOrder(api *apiClient, customerID, orderID string, col *collector) (int, error) {
	start := time.Now()
	payload := map[string]string{"reason": "load-cancel"}

	result, err := api.do(http.MethodPost, "/orders/"+orderID+"/cancel", customerID, "customer", "", payload)
	col.record("CancelOrder", time.Since(start), result.status, err)
	return result.status, err
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
