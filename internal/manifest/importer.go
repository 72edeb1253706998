package manifest

import (
	"context"
	"errors"
	"os"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/loader"
	"github.com/conneroisu/girouette/pkg/annotations"
)

// Resolver returns the controller instance registered under name.
type Resolver func(name string) (interface{}, bool)

// Importer loads manifest files into an annotation store.
type Importer struct {
	store   *annotations.Store
	resolve Resolver
}

// NewImporter creates an importer writing to store. Controller names are
// looked up through resolve.
func NewImporter(store *annotations.Store, resolve Resolver) *Importer {
	return &Importer{store: store, resolve: resolve}
}

// Import implements loader.Importer. The controller's record is replaced
// wholesale, so a reloaded file never keeps routes it no longer declares.
func (i *Importer) Import(_ context.Context, path string) (*loader.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.NewModuleLoadError(gerrors.ErrCodeReadFailed, "cannot read controller file", err).
			WithPath(path)
	}

	m, err := Decode(path, data)
	if err != nil {
		return nil, err
	}

	name := ControllerName(path, m)
	instance, ok := i.resolve(name)
	if !ok {
		return nil, gerrors.NewModuleLoadError(gerrors.ErrCodeUnknownController,
			"no controller registered as "+name, nil).
			WithPath(path).
			WithController(name)
	}

	if err := m.Validate(); err != nil {
		var ge *gerrors.GirouetteError
		if errors.As(err, &ge) {
			return nil, ge.WithPath(path).WithController(name)
		}
		return nil, err
	}

	id := annotations.ID(name)
	i.store.Declare(id, m.Annotate)

	return &loader.Module{
		Path:       path,
		Controller: id,
		Instance:   instance,
	}, nil
}
