// Command override-operator runs the reconcile loop that keeps every
// Service's DestinationRule and VirtualService convergent with its backing
// Pods, plus an HTTP endpoint serving /metrics and /healthz.
package main

import (
	"flag"
	"os"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	istionetworkingv1beta1 "istio.io/client-go/pkg/apis/networking/v1beta1"

	"github.com/mt-inside/overrides/controllers"
	"github.com/mt-inside/overrides/pkg/health"
	"github.com/mt-inside/overrides/pkg/harness"
	"github.com/mt-inside/overrides/pkg/metrics"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(istionetworkingv1beta1.AddToScheme(scheme))
}

func main() {
	var kubeconfig string
	var healthAddr string

	// -kubeconfig itself is registered on the default FlagSet by
	// controller-runtime's config package; it is read back after Parse.
	flag.StringVar(&kubeconfig, "k", "", "path to a kubeconfig (shorthand for -kubeconfig)")
	flag.StringVar(&healthAddr, "health-addr", ":8080", "address the /metrics and /healthz endpoints bind to")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	if f := flag.Lookup("kubeconfig"); f != nil && f.Value.String() != "" {
		kubeconfig = f.Value.String()
	}

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if kubeconfig != "" {
		setupLog.Error(nil, "-kubeconfig is accepted but not implemented; unset it to use in-cluster or default kubeconfig credentials")
		os.Exit(1)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: "0"},
		HealthProbeBindAddress: "0",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	m := metrics.New("override_operator")

	if err := (&controllers.ServiceReconciler{
		Client:   mgr.GetClient(),
		Recorder: mgr.GetEventRecorderFor(eventRecorderName()),
		Metrics:  m,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Service")
		os.Exit(1)
	}

	mux := health.NewMux(setupLog, m.Registry, "override_operator", version)

	setupLog.Info("starting override-operator", "healthAddr", healthAddr)
	if err := harness.Run(setupLog, mgr, mux, healthAddr); err != nil {
		setupLog.Error(err, "exited with error")
		os.Exit(1)
	}
}

// eventRecorderName folds CONTROLLER_POD_NAME into the recorder's component
// string, since controller-runtime's EventRecorder has no separate instance
// field.
func eventRecorderName() string {
	if pod := os.Getenv("CONTROLLER_POD_NAME"); pod != "" {
		return "override-operator/" + pod
	}
	return "override-operator"
}
