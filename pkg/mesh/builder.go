// Package mesh builds the Istio DestinationRule and VirtualService objects
// that express a Service's override-routing configuration. Both functions
// are pure: given the same Service, version set, and owner reference they
// produce byte-stable output, which is what lets server-side apply converge
// without churn.
package mesh

import (
	istioapi "istio.io/api/networking/v1beta1"
	istiov1beta1 "istio.io/client-go/pkg/apis/networking/v1beta1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// defaultSubset is the subset name the fallback route targets when no
// override header matches. Its existence as an actual workload subset is
// not validated here.
const defaultSubset = "v1"

// overrideHeader is the HTTP header inspected for version overrides.
const overrideHeader = "x-override"

func fqdn(name, namespace string) string {
	return name + "." + namespace + ".svc.cluster.local"
}

// BuildDestinationRule returns the DestinationRule for svcName/svcNamespace
// with one subset per entry in versions, in order. versions is not
// deduplicated: duplicate entries produce duplicate subsets, matching the
// behavior this was ported from.
func BuildDestinationRule(svcName, svcNamespace string, versions []string, owner *metav1.OwnerReference) *istiov1beta1.DestinationRule {
	subsets := make([]*istioapi.Subset, 0, len(versions))
	for _, v := range versions {
		subsets = append(subsets, &istioapi.Subset{
			Name:   v,
			Labels: map[string]string{"version": v},
		})
	}

	dr := &istiov1beta1.DestinationRule{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "networking.istio.io/v1beta1",
			Kind:       "DestinationRule",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      svcName,
			Namespace: svcNamespace,
		},
		Spec: istioapi.DestinationRule{
			Host:    fqdn(svcName, svcNamespace),
			Subsets: subsets,
		},
	}
	if owner != nil {
		dr.OwnerReferences = []metav1.OwnerReference{*owner}
	}
	return dr
}

// BuildVirtualService returns the VirtualService for svcName/svcNamespace:
// one header-match route per version plus a trailing default route to the
// "v1" subset.
func BuildVirtualService(svcName, svcNamespace string, versions []string, owner *metav1.OwnerReference) *istiov1beta1.VirtualService {
	host := fqdn(svcName, svcNamespace)

	routes := make([]*istioapi.HTTPRoute, 0, len(versions)+1)
	for _, v := range versions {
		routes = append(routes, &istioapi.HTTPRoute{
			Match: []*istioapi.HTTPMatchRequest{
				{
					Headers: map[string]*istioapi.StringMatch{
						overrideHeader: {
							MatchType: &istioapi.StringMatch_Regex{
								Regex: "(.*,|^)" + svcName + ":" + v + "(,.*|$)",
							},
						},
					},
				},
			},
			Route: []*istioapi.HTTPRouteDestination{
				{
					Destination: &istioapi.Destination{
						Host:   host,
						Subset: v,
					},
				},
			},
		})
	}

	routes = append(routes, &istioapi.HTTPRoute{
		Route: []*istioapi.HTTPRouteDestination{
			{
				Destination: &istioapi.Destination{
					Host:   host,
					Subset: defaultSubset,
				},
			},
		},
	})

	vs := &istiov1beta1.VirtualService{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "networking.istio.io/v1beta1",
			Kind:       "VirtualService",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      svcName + "-overrides",
			Namespace: svcNamespace,
		},
		Spec: istioapi.VirtualService{
			Hosts: []string{host},
			Http:  routes,
		},
	}
	if owner != nil {
		vs.OwnerReferences = []metav1.OwnerReference{*owner}
	}
	return vs
}
