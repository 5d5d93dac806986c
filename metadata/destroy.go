package metadata

import (
	"github.com/gomlx/exceptions"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Object is implemented by the objects whose copies are tracked by a Registry.
type Object interface {
	// Metadata returns the registry of the object.
	Metadata() *Registry

	// Finalize releases the resources of the object itself (not its device allocations).
	// It is called once, when the last reference is released.
	Finalize() error
}

// Destroy releases one reference to obj. Objects are released only through Destroy.
//
// When the reference count reaches zero, obj.Finalize is called, every allocation in the registry is freed and
// the registry is marked destroyed. All errors found during teardown are returned together.
//
// It panics if obj was already released more times than it was retained.
func Destroy(obj Object) error {
	if obj == nil {
		exceptions.Panicf("metadata.Destroy: nil object")
	}
	r := obj.Metadata()
	if r == nil {
		exceptions.Panicf("metadata.Destroy: object %v has no registry", obj)
	}
	if !r.release() {
		return nil
	}

	var errs *multierror.Error
	if err := obj.Finalize(); err != nil {
		errs = multierror.Append(errs, errors.WithMessagef(err, "finalizing %s", r))
	}
	if err := r.freeAll(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		klog.Errorf("Failed to destroy %s: %v", r, err)
		return err
	}
	klog.V(1).Infof("%s destroyed", r)
	return nil
}
