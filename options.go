package prims

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims/surface"
)

// Option configures context acquisition.
//
// Example:
//
//	// Best available backend, default surface registry
//	ctx, err := prims.Acquire("face")
//
//	// Force the Vulkan backend
//	ctx, err := prims.Acquire("face", prims.WithBackend(gputypes.BackendVulkan))
type Option func(*options)

// options holds optional configuration for Acquire.
type options struct {
	backend    gputypes.Backend
	backendSet bool
	provider   any
	registry   *surface.Registry
}

func defaultOptions() options {
	return options{
		registry: surface.Default(),
	}
}

// WithBackend selects a specific HAL backend instead of the best available
// one. gputypes.BackendEmpty selects the software (or noop) backend.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
		o.backendSet = true
	}
}

// WithDeviceProvider makes the context render with a device owned by the
// host application instead of opening its own.
//
// The provider must expose its HAL device and queue:
//
//	type halProvider interface {
//	    HalDevice() any // hal.Device
//	    HalQueue() any  // hal.Queue
//	}
//
// The context never destroys a borrowed device.
func WithDeviceProvider(provider any) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithRegistry looks the surface up in r instead of the default registry.
func WithRegistry(r *surface.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}
