package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ClassifierAdapter implements Classifier by calling the classify service.
type ClassifierAdapter struct {
	container mono.ServiceContainer
}

// NewClassifierAdapter creates a new ClassifierAdapter.
func NewClassifierAdapter(container mono.ServiceContainer) *ClassifierAdapter {
	if container == nil {
		panic("classifier: ServiceContainer is nil")
	}
	return &ClassifierAdapter{container: container}
}

// Classify returns the mood label for text.
func (a *ClassifierAdapter) Classify(ctx context.Context, text string) (string, error) {
	req := ClassifyRequest{Text: text}
	var resp ClassifyResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceClassify,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return "", fmt.Errorf("failed to classify: %w", err)
	}
	return resp.Label, nil
}
