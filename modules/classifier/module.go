package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ClassifierModule exposes the configured classifier as a request-reply service.
type ClassifierModule struct {
	cfg        Config
	classifier Classifier
}

// Compile-time interface checks.
var _ mono.Module = (*ClassifierModule)(nil)
var _ mono.ServiceProviderModule = (*ClassifierModule)(nil)
var _ mono.HealthCheckableModule = (*ClassifierModule)(nil)

// NewModule creates a ClassifierModule for cfg.
func NewModule(cfg Config) (*ClassifierModule, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &ClassifierModule{cfg: cfg, classifier: c}, nil
}

// New builds the classifier selected by cfg.Mode.
func New(cfg Config) (Classifier, error) {
	switch cfg.Mode {
	case "", ModeFixed:
		return NewFixed(cfg.FixedLabel), nil
	case ModeRemote:
		if cfg.URL == "" {
			return nil, fmt.Errorf("classifier: remote mode requires a URL")
		}
		return NewRemote(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("classifier: unknown mode %q", cfg.Mode)
	}
}

// Name returns the module name.
func (m *ClassifierModule) Name() string {
	return "classifier"
}

// RegisterServices registers the classify service.
func (m *ClassifierModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceClassify, json.Unmarshal, json.Marshal, m.classify,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceClassify, err)
	}

	log.Printf("[classifier] Registered services: services.classifier.%s", ServiceClassify)
	return nil
}

func (m *ClassifierModule) classify(ctx context.Context, req ClassifyRequest, _ *mono.Msg) (ClassifyResponse, error) {
	label, err := m.classifier.Classify(ctx, req.Text)
	if err != nil {
		return ClassifyResponse{}, err
	}
	return ClassifyResponse{Label: label}, nil
}

// Start logs the selected mode.
func (m *ClassifierModule) Start(_ context.Context) error {
	mode := m.cfg.Mode
	if mode == "" {
		mode = ModeFixed
	}
	log.Printf("[classifier] Module started (mode: %s)", mode)
	return nil
}

// Stop shuts down the module.
func (m *ClassifierModule) Stop(_ context.Context) error {
	log.Println("[classifier] Module stopped")
	return nil
}

// Health returns the health status.
func (m *ClassifierModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"mode": m.cfg.Mode}
	if m.cfg.Mode == ModeRemote {
		details["url"] = m.cfg.URL
	}
	return mono.HealthStatus{
		Healthy: m.classifier != nil,
		Message: "operational",
		Details: details,
	}
}
