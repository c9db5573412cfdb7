package metrics

import "github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.Config `json:"sinks"`
}
