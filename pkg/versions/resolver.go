// Package versions resolves the set of workload versions backing a Service,
// by listing its selected Pods and reading their version label.
package versions

import (
	"context"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mt-inside/overrides/pkg/errs"
	"github.com/mt-inside/overrides/pkg/selector"
)

// versionLabel is the Pod label this controller reads to partition
// workloads into DestinationRule subsets.
const versionLabel = "version"

// Resolve lists the Pods selected by svc and returns their version labels in
// listing order. Duplicates are preserved deliberately — see the mesh
// builder package for why.
//
// svc.Spec.Selector must be non-empty; callers are expected to have already
// filtered out selector-less Services, so an empty selector here is a
// programming error.
func Resolve(ctx context.Context, c client.Client, svc *corev1.Service) ([]string, error) {
	if len(svc.Spec.Selector) == 0 {
		panic("versions.Resolve: called with an empty Service selector")
	}

	logger := log.FromContext(ctx)

	sel, err := labels.Parse(selector.Format(svc.Spec.Selector))
	if err != nil {
		return nil, errs.Wrap(errs.ErrList, err, "parse selector for service "+svc.Namespace+"/"+svc.Name)
	}

	var pods corev1.PodList
	if err := c.List(ctx, &pods,
		client.InNamespace(svc.Namespace),
		client.MatchingLabelsSelector{Selector: sel},
	); err != nil {
		return nil, errs.Wrap(errs.ErrList, err, "list pods for service "+svc.Namespace+"/"+svc.Name)
	}

	versions := make([]string, 0, len(pods.Items))
	for _, pod := range pods.Items {
		v, ok := pod.Labels[versionLabel]
		if !ok {
			warnSkippedPod(logger, pod)
			continue
		}
		versions = append(versions, v)
	}

	return versions, nil
}

func warnSkippedPod(logger logr.Logger, pod corev1.Pod) {
	logger.Info("skipping pod missing version label", "pod", pod.Namespace+"/"+pod.Name)
}
