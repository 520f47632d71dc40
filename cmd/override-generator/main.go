// Command override-generator lists every selector-bearing Service in the
// cluster and prints its desired DestinationRule and VirtualService as a
// YAML stream on stdout. It makes no writes to the cluster.
package main

import (
	"context"
	"flag"
	"os"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/mt-inside/overrides/pkg/generator"
	"github.com/mt-inside/overrides/pkg/k8sclient"
)

func main() {
	var kubeconfig string
	flag.StringVar(&kubeconfig, "kubeconfig", "", "path to a kubeconfig (accepted, not implemented)")
	flag.StringVar(&kubeconfig, "k", "", "path to a kubeconfig (shorthand for -kubeconfig)")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	log := zap.New(zap.UseFlagOptions(&opts))
	ctx := context.Background()

	if kubeconfig != "" {
		log.Error(nil, "-kubeconfig is accepted but not implemented; unset it to use in-cluster or default kubeconfig credentials")
		os.Exit(1)
	}

	kc, err := k8sclient.New(ctx, log, "")
	if err != nil {
		log.Error(err, "failed to connect to kubernetes")
		os.Exit(1)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	c, err := client.New(kc.Config, client.Options{Scheme: scheme})
	if err != nil {
		log.Error(err, "failed to build client")
		os.Exit(1)
	}

	if err := generator.Run(ctx, c, os.Stdout); err != nil {
		log.Error(err, "generation failed")
		os.Exit(1)
	}
}
