// Package di is a small dependency-injection container. The application
// registers its host-provided services (router, logger, store) as instances
// and resolves the core services built on them by name.
package di

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	gerrors "github.com/conneroisu/girouette/internal/errors"
)

// Service names shared by the application and the CLI.
const (
	ServiceRouter   = "router"
	ServiceLogger   = "logger"
	ServiceStore    = "store"
	ServiceMetrics  = "metrics"
	ServiceFailures = "failures"
	ServiceScanner  = "scanner"
	ServiceImporter = "importer"
	ServiceCache    = "cache"
	ServiceLoader   = "loader"
)

// dependencyResolver is handed to factories so nested lookups share the
// resolving set and cycles are reported instead of deadlocking.
type dependencyResolver struct {
	container *ServiceContainer
	resolving map[string]bool
}

// Get retrieves a service using the safe resolver
func (dr *dependencyResolver) Get(name string) (interface{}, error) {
	return dr.container.getWithResolver(name, dr.resolving)
}

// DependencyResolver resolves the dependencies of a factory.
type DependencyResolver interface {
	Get(name string) (interface{}, error)
}

// FactoryFunc creates a service instance using the dependency resolver
type FactoryFunc func(resolver DependencyResolver) (interface{}, error)

// ServiceDefinition defines how a service is created
type ServiceDefinition struct {
	Name         string
	Factory      FactoryFunc
	Singleton    bool
	Dependencies []string
}

// ServiceContainer manages dependency injection for the application
type ServiceContainer struct {
	services   map[string]ServiceDefinition
	singletons map[string]interface{}
	creating   map[string]*sync.WaitGroup
	// order records singleton creation for reverse-order shutdown.
	order []string
	mu    sync.RWMutex
}

// ServiceBuilder helps build service definitions
type ServiceBuilder struct {
	name      string
	container *ServiceContainer
}

// NewServiceContainer creates an empty container
func NewServiceContainer() *ServiceContainer {
	return &ServiceContainer{
		services:   make(map[string]ServiceDefinition),
		singletons: make(map[string]interface{}),
		creating:   make(map[string]*sync.WaitGroup),
	}
}

// Register registers a transient service; every Get calls factory.
func (c *ServiceContainer) Register(name string, factory FactoryFunc) *ServiceBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.services[name] = ServiceDefinition{
		Name:    name,
		Factory: factory,
	}
	delete(c.singletons, name)
	return &ServiceBuilder{name: name, container: c}
}

// RegisterSingleton registers a service created once on first Get.
func (c *ServiceContainer) RegisterSingleton(name string, factory FactoryFunc) *ServiceBuilder {
	return c.Register(name, factory).AsSingleton()
}

// RegisterInstance registers an existing instance as a singleton
func (c *ServiceContainer) RegisterInstance(name string, instance interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.singletons[name] = instance
	c.services[name] = ServiceDefinition{
		Name:      name,
		Singleton: true,
	}
}

// Get retrieves a service from the container
func (c *ServiceContainer) Get(name string) (interface{}, error) {
	return c.getWithResolver(name, make(map[string]bool))
}

func (c *ServiceContainer) getWithResolver(name string, resolving map[string]bool) (interface{}, error) {
	if resolving[name] {
		return nil, gerrors.NewInternalError(gerrors.ErrCodeCircularDependency,
			fmt.Sprintf("circular dependency detected for service '%s'", name), nil)
	}

	c.mu.RLock()
	definition, exists := c.services[name]
	c.mu.RUnlock()

	if !exists {
		return nil, gerrors.NewInternalError(gerrors.ErrCodeServiceNotFound,
			fmt.Sprintf("service '%s' not registered", name), nil)
	}

	if !definition.Singleton {
		resolving[name] = true
		instance, err := c.create(definition, resolving)
		delete(resolving, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create service '%s': %w", name, err)
		}
		return instance, nil
	}

	for {
		c.mu.Lock()
		if instance, exists := c.singletons[name]; exists {
			c.mu.Unlock()
			return instance, nil
		}
		wg, creating := c.creating[name]
		if !creating {
			break
		}
		c.mu.Unlock()
		// Another goroutine is creating it; a failed creation is retried.
		wg.Wait()
	}

	// Reserve creation while still holding the lock.
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.creating[name] = wg
	resolving[name] = true
	c.mu.Unlock()

	instance, err := c.create(definition, resolving)
	delete(resolving, name)

	c.mu.Lock()
	delete(c.creating, name)
	if err == nil {
		c.singletons[name] = instance
		c.order = append(c.order, name)
	}
	c.mu.Unlock()
	wg.Done()

	if err != nil {
		return nil, fmt.Errorf("failed to create singleton service '%s': %w", name, err)
	}
	return instance, nil
}

func (c *ServiceContainer) create(definition ServiceDefinition, resolving map[string]bool) (interface{}, error) {
	if definition.Factory == nil {
		return nil, fmt.Errorf("factory is nil")
	}
	return definition.Factory(&dependencyResolver{container: c, resolving: resolving})
}

// Has checks if a service is registered
func (c *ServiceContainer) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.services[name]
	return exists
}

// Validate checks that every dependency declared with DependsOn is
// registered, so a missing host service is reported before anything is
// created.
func (c *ServiceContainer) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		for _, dep := range c.services[name].Dependencies {
			if _, ok := c.services[dep]; !ok {
				errs = append(errs, gerrors.NewInternalError(gerrors.ErrCodeServiceNotFound,
					fmt.Sprintf("service '%s' depends on unregistered service '%s'", name, dep), nil))
			}
		}
	}
	return errors.Join(errs...)
}

// Shutdown closes created singletons in reverse creation order. Services
// implementing Shutdown(ctx) or Close() are closed; registered instances
// belong to the caller and are left alone.
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	order := c.order
	singletons := c.singletons
	c.order = nil
	c.singletons = make(map[string]interface{})
	for name, definition := range c.services {
		if definition.Factory == nil {
			c.singletons[name] = singletons[name]
		}
	}
	c.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		var err error
		switch s := singletons[name].(type) {
		case interface{ Shutdown(context.Context) error }:
			err = s.Shutdown(ctx)
		case interface{ Close() error }:
			err = s.Close()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// AsSingleton marks the service as a singleton
func (sb *ServiceBuilder) AsSingleton() *ServiceBuilder {
	sb.update(func(d *ServiceDefinition) { d.Singleton = true })
	return sb
}

// DependsOn records the services the factory resolves
func (sb *ServiceBuilder) DependsOn(dependencies ...string) *ServiceBuilder {
	sb.update(func(d *ServiceDefinition) {
		d.Dependencies = append(d.Dependencies, dependencies...)
	})
	return sb
}

func (sb *ServiceBuilder) update(fn func(*ServiceDefinition)) {
	sb.container.mu.Lock()
	defer sb.container.mu.Unlock()
	d := sb.container.services[sb.name]
	fn(&d)
	sb.container.services[sb.name] = d
}
