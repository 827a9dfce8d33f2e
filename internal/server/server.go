// Package server exposes the forecast over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/iwvelando/feasibility-forecast/internal/cache"
	"github.com/iwvelando/feasibility-forecast/internal/config"
	"github.com/iwvelando/feasibility-forecast/internal/coordinator"
	"github.com/iwvelando/feasibility-forecast/internal/forecast"
	"github.com/iwvelando/feasibility-forecast/pkg/comparison"
	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/export"
	"github.com/iwvelando/feasibility-forecast/pkg/optimization"
	"github.com/iwvelando/feasibility-forecast/pkg/output"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

// Options configure the handler. A nil Cache keeps results in memory for
// the default TTL.
type Options struct {
	MaxUploadSize int64
	Version       string
	Cache         cache.Cache
	CORSOrigins   []string
}

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	cache         cache.Cache
	versions      *coordinator.Versions
}

type editorOptions struct {
	Session string
	Version uint64
}

// NewHandler constructs the HTTP handler that serves the forecast API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	resultCache := opts.Cache
	if resultCache == nil {
		resultCache = cache.NewMemory(constants.DefaultCacheTTLSeconds * time.Second)
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		cache:         resultCache,
		versions:      coordinator.NewVersions(),
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(h.requestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/api", func(api chi.Router) {
		// Forecast API endpoint (file upload)
		api.Post("/forecast", h.handleForecast)
		api.Get("/version", h.handleVersion)

		// Editor-driven updates, spreadsheet export and config serialization
		api.Post("/editor/forecast", h.handleForecastEditor)
		api.Post("/editor/export", h.handleExport)
		api.Post("/editor/config", h.handleConfigExport)
	})

	return r
}

func (h *handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type forecastResponse struct {
	RequestID   string                   `json:"requestId"`
	Version     uint64                   `json:"version,omitempty"`
	Scenarios   []string                 `json:"scenarios"`
	Results     []*engine.ScenarioResult `json:"results"`
	Comparisons []comparison.Comparison  `json:"comparisons,omitempty"`
	BreakEven   []optimization.Summary   `json:"breakEven,omitempty"`
	Failures    []forecast.Failure       `json:"failures,omitempty"`
	CSV         string                   `json:"csv"`
	Warnings    []string                 `json:"warnings,omitempty"`
	Duration    string                   `json:"duration"`
	Cached      bool                     `json:"cached"`
	Config      map[string]interface{}   `json:"config,omitempty"`
	ConfigYAML  string                   `json:"configYaml,omitempty"`
}

type fieldError struct {
	Item   string `json:"item,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error         string       `json:"error"`
	RequestID     string       `json:"requestId,omitempty"`
	Fields        []fieldError `json:"fields,omitempty"`
	LatestVersion uint64       `json:"latestVersion,omitempty"`
}

// requestError carries the status a failed calculation answers with.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

func (h *handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecast"
	start := time.Now()
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "missing configuration file", op)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to read configuration: %v", err), op)
		return
	}

	configBytes := buf.Bytes()
	configMap, err := decodeYAMLToMap(configBytes)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("error reading config data, %v", err), op)
		return
	}

	f, cached, err := h.calculate(r.Context(), configBytes, op)
	if err != nil {
		h.respondCalculationError(w, r, err, op)
		return
	}
	h.respondForecast(w, r, f, cached, start, configBytes, configMap, 0, op)
}

func (h *handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// decodeEditorPayload reads {"config": {...}, "options": {...}}. A payload
// without a config key is itself the config.
func decodeEditorPayload(r io.Reader) ([]byte, map[string]interface{}, editorOptions, *requestError) {
	var opts editorOptions

	var payload map[string]interface{}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, nil, opts, badRequest("failed to decode configuration: %v", err)
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	rawOptions, hasOptions := payload["options"]
	configPayload := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		if key != "options" {
			configPayload[key] = value
		}
	}
	if rawConfig, ok := payload["config"]; ok {
		cfgMap, ok := rawConfig.(map[string]interface{})
		if !ok {
			return nil, nil, opts, badRequest("invalid config payload: expected object")
		}
		configPayload = cfgMap
	}

	if hasOptions {
		optsMap, ok := rawOptions.(map[string]interface{})
		if !ok {
			return nil, nil, opts, badRequest("invalid options payload: expected object")
		}
		if session, ok := optsMap["session"].(string); ok {
			opts.Session = strings.TrimSpace(session)
		}
		if raw, ok := optsMap["version"]; ok {
			version, err := coerceVersion(raw)
			if err != nil {
				return nil, nil, opts, badRequest("invalid version: %v", err)
			}
			opts.Version = version
		}
	}

	configBytes, err := yaml.Marshal(configPayload)
	if err != nil {
		return nil, nil, opts, badRequest("failed to encode configuration: %v", err)
	}
	configMap, err := decodeYAMLToMap(configBytes)
	if err != nil {
		return nil, nil, opts, badRequest("failed to parse configuration: %v", err)
	}
	return configBytes, configMap, opts, nil
}

func (h *handler) handleForecastEditor(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecastEditor"
	start := time.Now()

	configBytes, configMap, opts, reqErr := decodeEditorPayload(r.Body)
	if reqErr != nil {
		h.respondError(w, r, reqErr.status, reqErr.Error(), op)
		return
	}

	version := opts.Version
	if version == 0 {
		version = h.versions.Next(opts.Session)
	} else if !h.versions.Observe(opts.Session, version) {
		h.respondStale(w, r, opts.Session, version, op)
		return
	}

	f, cached, err := h.calculate(r.Context(), configBytes, op)
	if !h.versions.IsLatest(opts.Session, version) {
		h.respondStale(w, r, opts.Session, version, op)
		return
	}
	if err != nil {
		h.respondCalculationError(w, r, err, op)
		return
	}
	h.respondForecast(w, r, f, cached, start, configBytes, configMap, version, op)
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"

	configBytes, _, _, reqErr := decodeEditorPayload(r.Body)
	if reqErr != nil {
		h.respondError(w, r, reqErr.status, reqErr.Error(), op)
		return
	}

	f, _, err := h.calculate(r.Context(), configBytes, op)
	if err != nil {
		h.respondCalculationError(w, r, err, op)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, f.Results, f.Comparisons); err != nil {
		h.respondError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to build workbook: %v", err), op)
		return
	}

	name := "forecast"
	if len(f.Results) > 0 && f.Results[0].Project != "" {
		name = f.Results[0].Project
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName(name)+".xlsx"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write workbook", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleConfigExport"

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode configuration: %v", err), op)
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	yamlBytes, err := marshalOrderedConfigYAML(payload)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to encode configuration: %v", err), op)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"configYaml": string(yamlBytes),
	})
}

// calculate answers a forecast for configBytes, from the cache when the
// same configuration was calculated before.
func (h *handler) calculate(ctx context.Context, configBytes []byte, op string) (*forecast.Forecast, bool, error) {
	key := cache.Key("forecast", []byte(h.version), configBytes)
	if cached, ok := h.cache.Get(ctx, key); ok {
		var f forecast.Forecast
		if err := json.Unmarshal(cached, &f); err == nil {
			return &f, true, nil
		}
		h.logger.Warn("discarding unreadable cache entry", zap.String("op", op), zap.String("key", key))
	}

	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(configBytes))
	if err != nil {
		return nil, false, badRequest("%v", err)
	}

	f, err := forecast.GetForecast(ctx, h.logger, *cfg)
	if err != nil {
		if errors.Is(err, validation.ErrValidation) {
			return nil, false, &requestError{status: http.StatusBadRequest, err: err}
		}
		return nil, false, &requestError{status: http.StatusInternalServerError, err: fmt.Errorf("failed to compute forecast: %w", err)}
	}

	if encoded, err := json.Marshal(f); err == nil {
		if err := h.cache.Set(ctx, key, encoded); err != nil {
			h.logger.Warn("failed to cache forecast", zap.String("op", op), zap.Error(err))
		}
	}
	return f, false, nil
}

func (h *handler) respondForecast(w http.ResponseWriter, r *http.Request, f *forecast.Forecast, cached bool,
	start time.Time, configBytes []byte, configMap map[string]interface{}, version uint64, op string) {
	elapsed := time.Since(start)

	if configMap == nil {
		configMap = make(map[string]interface{})
	}

	response := forecastResponse{
		RequestID:   requestIDFrom(r.Context()),
		Version:     version,
		Scenarios:   f.ScenarioNames(),
		Results:     f.Results,
		Comparisons: f.Comparisons,
		BreakEven:   f.BreakEven,
		Failures:    f.Failures,
		CSV:         output.CsvString(f.Results),
		Warnings:    f.Warnings,
		Duration:    elapsed.String(),
		Cached:      cached,
		Config:      configMap,
		ConfigYAML:  string(configBytes),
	}

	h.logger.Info("forecast computed",
		zap.String("op", op),
		zap.String("requestId", response.RequestID),
		zap.Int("scenarios", len(response.Scenarios)),
		zap.Bool("cached", cached),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) respondStale(w http.ResponseWriter, r *http.Request, session string, version uint64, op string) {
	latest := h.versions.Latest(session)
	h.logger.Debug("discarding superseded calculation",
		zap.String("op", op),
		zap.String("session", session),
		zap.Uint64("version", version),
		zap.Uint64("latest", latest),
	)
	h.writeJSON(w, http.StatusConflict, errorResponse{
		Error:         fmt.Sprintf("version %d was superseded by version %d", version, latest),
		RequestID:     requestIDFrom(r.Context()),
		LatestVersion: latest,
	})
}

func (h *handler) respondCalculationError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := http.StatusInternalServerError
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		status = reqErr.status
	}
	resp := errorResponse{Error: err.Error(), RequestID: requestIDFrom(r.Context())}
	for _, fe := range validation.FieldErrors(err) {
		resp.Fields = append(resp.Fields, fieldError{Item: fe.Item, Field: fe.Field, Reason: fe.Reason})
	}
	h.logFailure(op, status, resp.Error)
	h.writeJSON(w, status, resp)
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	h.logFailure(op, status, msg)
	h.writeJSON(w, status, errorResponse{Error: msg, RequestID: requestIDFrom(r.Context())})
}

func (h *handler) logFailure(op string, status int, msg string) {
	h.logger.Error("forecast request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func decodeYAMLToMap(data []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return make(map[string]interface{}), nil
	}

	var result map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]interface{})
	}
	return result, nil
}

// configSectionOrder is the order sections are written in, matching the
// layout of a hand-written configuration.
var configSectionOrder = []string{"logging", "output", "project", "scenarios", "comparison", "breakEven"}

func marshalOrderedConfigYAML(payload map[string]interface{}) ([]byte, error) {
	items := make([]orderedItem, 0, len(payload))
	seen := make(map[string]struct{})

	for _, key := range configSectionOrder {
		if value, ok := payload[key]; ok {
			items = append(items, orderedItem{key: key, value: value})
			seen[key] = struct{}{}
		}
	}

	remainingKeys := make([]string, 0, len(payload))
	for key := range payload {
		if _, already := seen[key]; already {
			continue
		}
		remainingKeys = append(remainingKeys, key)
	}
	sort.Strings(remainingKeys)
	for _, key := range remainingKeys {
		items = append(items, orderedItem{key: key, value: payload[key]})
	}

	return yaml.Marshal(orderedConfig{items: items})
}

type orderedConfig struct {
	items []orderedItem
}

type orderedItem struct {
	key   string
	value interface{}
}

func (o orderedConfig) MarshalYAML() (interface{}, error) {
	mapNode := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	for _, item := range o.items {
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item.key,
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(item.value); err != nil {
			return nil, err
		}
		mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	}

	return mapNode, nil
}

func coerceVersion(value interface{}) (uint64, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, fmt.Errorf("expected a non-negative integer, got %v", v)
		}
		return uint64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, nil
		}
		return strconv.ParseUint(trimmed, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported version type %T", value)
}

func fileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, strings.TrimSpace(name))
	if cleaned == "" {
		return "forecast"
	}
	return cleaned
}
