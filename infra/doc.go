// Package infra holds the technology adapters: the zerolog logger, the
// prometheus and influx metric sinks and the MQTT vehicle bus. Everything
// here implements an interface declared in a core package; nothing in core
// imports infra.
package infra
