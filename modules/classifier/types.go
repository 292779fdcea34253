package classifier

import "time"

// ServiceClassify is the request-reply service exposed by the module.
const ServiceClassify = "classify"

// Classifier modes.
const (
	ModeFixed  = "fixed"
	ModeRemote = "remote"
)

// Config selects and configures the classifier implementation.
type Config struct {
	Mode       string
	URL        string
	Timeout    time.Duration
	FixedLabel string
}

// ClassifyRequest is the request for the classify service.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse is the response for the classify service.
type ClassifyResponse struct {
	Label string `json:"label"`
}
