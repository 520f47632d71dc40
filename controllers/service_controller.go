// Package controllers holds the reconcile driver that watches Services and
// keeps their mesh override resources convergent.
package controllers

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	istionetworkingv1beta1 "istio.io/client-go/pkg/apis/networking/v1beta1"

	"github.com/mt-inside/overrides/pkg/errs"
	"github.com/mt-inside/overrides/pkg/mesh"
	"github.com/mt-inside/overrides/pkg/metrics"
	"github.com/mt-inside/overrides/pkg/versions"
)

// serviceFinalizer gates Service deletion until its owned DestinationRule
// and VirtualService have been cleaned up.
const serviceFinalizer = "overrides.mt165.co.uk/Service"

// fieldManager identifies this controller's writes to the API server for
// server-side apply conflict resolution.
const fieldManager = "github.com/mt-inside/overrides"

// reconcileTimeout bounds a single reconcile attempt so a stuck API call
// cannot block a worker indefinitely.
const reconcileTimeout = 30 * time.Second

// requeueBackoff is the requeue delay after a reconcile error.
const requeueBackoff = 1 * time.Second

// resyncPeriod is the requeue delay after a successful apply, so the
// controller periodically re-asserts desired state even without new events.
const resyncPeriod = 300 * time.Second

// ServiceReconciler watches Services and materializes the DestinationRule
// and VirtualService describing their override routing.
type ServiceReconciler struct {
	client.Client
	Recorder record.EventRecorder
	Metrics  *metrics.Metrics
}

// Reconcile implements the finalizer handshake and apply/cleanup dispatch
// described for the reconcile driver: add the finalizer on first sight of a
// live Service, apply desired mesh resources, and on deletion clean up
// before releasing the finalizer.
func (r *ServiceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	logger := log.FromContext(ctx).WithValues("service", req.Name, "namespace", req.Namespace)
	start := time.Now()

	var svc corev1.Service
	if err := r.Get(ctx, req.NamespacedName, &svc); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		err = errors.Wrap(err, "get service")
		r.Metrics.ObserveReconcile(start, err)
		logger.Error(err, "reconcile failed")
		return ctrl.Result{RequeueAfter: requeueBackoff}, nil
	}

	if svc.Namespace == "" {
		err := errs.Wrap(errs.ErrMissingKey, errors.New("service has no namespace"), "validate service")
		r.Metrics.ObserveReconcile(start, err)
		logger.Error(err, "reconcile failed")
		return ctrl.Result{RequeueAfter: requeueBackoff}, nil
	}

	result, err := r.dispatch(ctx, logger, &svc)
	r.Metrics.ObserveReconcile(start, err)
	if err != nil {
		logger.Error(err, "reconcile failed")
		return ctrl.Result{RequeueAfter: requeueBackoff}, nil
	}
	return result, nil
}

func (r *ServiceReconciler) dispatch(ctx context.Context, logger logr.Logger, svc *corev1.Service) (ctrl.Result, error) {
	if svc.DeletionTimestamp.IsZero() {
		if !controllerutil.ContainsFinalizer(svc, serviceFinalizer) {
			original := svc.DeepCopy()
			controllerutil.AddFinalizer(svc, serviceFinalizer)
			if err := r.Patch(ctx, svc, client.StrategicMergeFrom(original)); err != nil {
				return ctrl.Result{}, errs.Wrap(errs.ErrFinalizer, err, "add finalizer")
			}
		}
		return r.apply(ctx, logger, svc)
	}

	if !controllerutil.ContainsFinalizer(svc, serviceFinalizer) {
		return ctrl.Result{}, nil
	}

	r.cleanup(logger, svc)

	original := svc.DeepCopy()
	controllerutil.RemoveFinalizer(svc, serviceFinalizer)
	if err := r.Patch(ctx, svc, client.StrategicMergeFrom(original)); err != nil {
		return ctrl.Result{}, errs.Wrap(errs.ErrFinalizer, err, "remove finalizer")
	}
	return ctrl.Result{}, nil
}

func (r *ServiceReconciler) apply(ctx context.Context, logger logr.Logger, svc *corev1.Service) (ctrl.Result, error) {
	if len(svc.Spec.Selector) == 0 {
		return ctrl.Result{}, nil
	}

	vs, err := versions.Resolve(ctx, r.Client, svc)
	if err != nil {
		return ctrl.Result{}, err
	}

	owner := ownerReferenceFor(svc)
	dr := mesh.BuildDestinationRule(svc.Name, svc.Namespace, vs, &owner)
	virtualService := mesh.BuildVirtualService(svc.Name, svc.Namespace, vs, &owner)

	if err := r.Patch(ctx, dr, client.Apply, client.ForceOwnership, client.FieldOwner(fieldManager)); err != nil {
		return ctrl.Result{}, errs.Wrap(errs.ErrApply, err, "apply destinationrule")
	}
	if err := r.Patch(ctx, virtualService, client.Apply, client.ForceOwnership, client.FieldOwner(fieldManager)); err != nil {
		return ctrl.Result{}, errs.Wrap(errs.ErrApply, err, "apply virtualservice")
	}

	if err := r.publishCreatedEvent(svc); err != nil {
		return ctrl.Result{}, err
	}

	logger.Info("applied override resources", "versions", vs)
	return ctrl.Result{RequeueAfter: resyncPeriod}, nil
}

func (r *ServiceReconciler) cleanup(logger logr.Logger, svc *corev1.Service) {
	logger.Info("cleaning up override resources, owned objects will be garbage-collected")
}

func (r *ServiceReconciler) publishCreatedEvent(svc *corev1.Service) error {
	if r.Recorder == nil {
		return nil
	}
	r.Recorder.Event(svc, corev1.EventTypeNormal, "Created Overrides", "Creating DestinationRule and VirtualService")
	return nil
}

// ownerReferenceFor builds the controller owner reference attached to a
// Service's DestinationRule and VirtualService, so the API server's garbage
// collector removes them if the finalizer path is ever bypassed.
func ownerReferenceFor(svc *corev1.Service) metav1.OwnerReference {
	blockOwnerDeletion := true
	isController := true
	return metav1.OwnerReference{
		APIVersion:         "v1",
		Kind:               "Service",
		Name:               svc.Name,
		UID:                svc.UID,
		Controller:         &isController,
		BlockOwnerDeletion: &blockOwnerDeletion,
	}
}

// SetupWithManager wires the controller to watch Services plus the
// DestinationRules/VirtualServices it owns.
func (r *ServiceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Service{}).
		Owns(&istionetworkingv1beta1.DestinationRule{}).
		Owns(&istionetworkingv1beta1.VirtualService{}).
		Complete(r)
}
