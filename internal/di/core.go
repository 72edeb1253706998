package di

import (
	"fmt"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/loader"
	"github.com/conneroisu/girouette/internal/logging"
	"github.com/conneroisu/girouette/internal/registry"
	"github.com/conneroisu/girouette/internal/scanner"
	"github.com/conneroisu/girouette/pkg/metrics"
	"github.com/conneroisu/girouette/pkg/router"
)

// CoreOptions configures the core services.
type CoreOptions struct {
	Root           string
	Suffixes       []string
	Extensions     []string
	Pattern        string
	HotReload      bool
	MaxConcurrency int
}

// RegisterCoreServices registers the scanner, failure collector, cache and
// loader. The router, logger and importer must be registered as instances;
// metrics may be. Validate reports the ones that are missing.
func RegisterCoreServices(c *ServiceContainer, opts CoreOptions) {
	if !c.Has(ServiceMetrics) {
		c.RegisterInstance(ServiceMetrics, (*metrics.Metrics)(nil))
	}

	c.RegisterSingleton(ServiceFailures, func(DependencyResolver) (interface{}, error) {
		return gerrors.NewCollector(), nil
	})

	c.RegisterSingleton(ServiceScanner, func(DependencyResolver) (interface{}, error) {
		s := scanner.New(opts.Root)
		if len(opts.Suffixes) > 0 {
			s.Suffixes = append([]string(nil), opts.Suffixes...)
		}
		if len(opts.Extensions) > 0 {
			s.Extensions = append([]string(nil), opts.Extensions...)
		}
		return s.WithPattern(opts.Pattern)
	})

	c.RegisterSingleton(ServiceCache, func(resolver DependencyResolver) (interface{}, error) {
		r, err := resolve[router.Router](resolver, ServiceRouter)
		if err != nil {
			return nil, err
		}
		logger, err := resolve[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}
		m, err := resolve[*metrics.Metrics](resolver, ServiceMetrics)
		if err != nil {
			return nil, err
		}
		failures, err := resolve[*gerrors.Collector](resolver, ServiceFailures)
		if err != nil {
			return nil, err
		}
		return registry.NewCache(r,
			registry.WithLogger(logger),
			registry.WithMetrics(m),
			registry.WithCollector(failures),
		), nil
	}).DependsOn(ServiceRouter, ServiceLogger, ServiceMetrics, ServiceFailures)

	c.RegisterSingleton(ServiceLoader, func(resolver DependencyResolver) (interface{}, error) {
		s, err := resolve[*scanner.Scanner](resolver, ServiceScanner)
		if err != nil {
			return nil, err
		}
		importer, err := resolve[loader.Importer](resolver, ServiceImporter)
		if err != nil {
			return nil, err
		}
		logger, err := resolve[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}
		m, err := resolve[*metrics.Metrics](resolver, ServiceMetrics)
		if err != nil {
			return nil, err
		}
		return loader.New(s, importer,
			loader.WithLogger(logger),
			loader.WithMetrics(m),
			loader.WithHotReload(opts.HotReload),
			loader.WithMaxConcurrency(opts.MaxConcurrency),
		), nil
	}).DependsOn(ServiceScanner, ServiceImporter, ServiceLogger, ServiceMetrics)
}

// Resolve gets a service and asserts its type.
func Resolve[T any](c *ServiceContainer, name string) (T, error) {
	return resolve[T](c, name)
}

func resolve[T any](resolver DependencyResolver, name string) (T, error) {
	var zero T
	instance, err := resolver.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, gerrors.NewInternalError(gerrors.ErrCodeServiceNotFound,
			fmt.Sprintf("service '%s' has unexpected type %T", name, instance), nil)
	}
	return typed, nil
}
