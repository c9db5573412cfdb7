// Package factory is the extension point for pluggable implementations
// selected by name in the configuration file, currently the metrics sinks.
// A package registers a Builder for each kind it provides, usually from an
// init function, and the service wiring calls Create with the Config taken
// from the file:
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	reg.Register("influx", func(options map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ URL string `json:"url"` }
//	    if err := factory.Decode(options, &c); err != nil {
//	        return nil, err
//	    }
//	    return newInfluxSink(c.URL), nil
//	})
package factory
