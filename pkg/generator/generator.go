// Package generator implements the one-shot variant: list every
// selector-bearing Service and emit its desired DestinationRule and
// VirtualService as a YAML stream, with no cluster writes.
package generator

import (
	"context"
	"io"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/mt-inside/overrides/pkg/errs"
	"github.com/mt-inside/overrides/pkg/mesh"
	"github.com/mt-inside/overrides/pkg/versions"
)

const yamlSeparator = "---\n"

// Run lists Services cluster-wide, and for each one with a non-empty
// selector, writes its DestinationRule then its VirtualService to w,
// separated by "---" lines. Services without a selector (such as the
// default "kubernetes" Service) are skipped.
func Run(ctx context.Context, c client.Client, w io.Writer) error {
	var services corev1.ServiceList
	if err := c.List(ctx, &services); err != nil {
		return errs.Wrap(errs.ErrList, err, "list services")
	}

	for _, svc := range services.Items {
		if len(svc.Spec.Selector) == 0 {
			continue
		}

		vs, err := versions.Resolve(ctx, c, &svc)
		if err != nil {
			return err
		}

		dr := mesh.BuildDestinationRule(svc.Name, svc.Namespace, vs, nil)
		virtualService := mesh.BuildVirtualService(svc.Name, svc.Namespace, vs, nil)

		if err := writeYAML(w, dr); err != nil {
			return err
		}
		if err := writeYAML(w, virtualService); err != nil {
			return err
		}
	}

	return nil
}

func writeYAML(w io.Writer, obj interface{}) error {
	out, err := yaml.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = io.WriteString(w, yamlSeparator)
	return err
}
