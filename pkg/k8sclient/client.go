// Package k8sclient builds the authenticated connection to the Kubernetes
// API used by the generator, and verifies it is reachable before the
// generator does any real work. The operator builds its config through
// controller-runtime instead and does not use this package.
package k8sclient

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/mt-inside/overrides/pkg/errs"
)

// Client wraps a REST config already validated against a live API server.
type Client struct {
	Config *rest.Config
}

// New builds a Client using in-cluster credentials when running inside a
// Pod, falling back to the default kubeconfig otherwise, and probes the
// server's version endpoint to fail fast on a bad connection.
//
// kubeconfigFlag mirrors the CLI's -k/--kubeconfig flag. The flag is
// accepted for interface parity with the original tool but not implemented;
// passing a non-empty value is a usage error.
func New(ctx context.Context, log logr.Logger, kubeconfigFlag string) (*Client, error) {
	if kubeconfigFlag != "" {
		return nil, errors.New("-k/--kubeconfig is accepted but not implemented; unset it to use in-cluster or default kubeconfig credentials")
	}

	config, err := loadConfig()
	if err != nil {
		return nil, errs.Wrap(errs.ErrConnect, err, "load kubernetes config")
	}

	dc, err := discovery.NewDiscoveryClientForConfig(config)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConnect, err, "build discovery client")
	}

	v, err := dc.ServerVersion()
	if err != nil {
		return nil, errs.Wrap(errs.ErrConnect, err, "probe server version")
	}

	log.V(1).Info("connected to kubernetes API", "gitVersion", v.GitVersion, "platform", v.Platform)

	return &Client{Config: config}, nil
}

func loadConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("no in-cluster config and no usable kubeconfig: %w", err)
	}
	return cfg, nil
}
