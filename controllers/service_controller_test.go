package controllers

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	istionetworkingv1beta1 "istio.io/client-go/pkg/apis/networking/v1beta1"

	"github.com/mt-inside/overrides/pkg/metrics"
)

func newTestScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	Expect(corev1.AddToScheme(scheme)).To(Succeed())
	Expect(istionetworkingv1beta1.AddToScheme(scheme)).To(Succeed())
	return scheme
}

var _ = Describe("ServiceReconciler", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	When("a live Service lacks the finalizer", func() {
		It("adds the finalizer before applying", func() {
			scheme := newTestScheme()
			svc := &corev1.Service{
				ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "demo"},
				Spec:       corev1.ServiceSpec{Selector: map[string]string{"app": "web"}},
			}
			c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(svc).Build()
			r := &ServiceReconciler{Client: c, Recorder: record.NewFakeRecorder(10), Metrics: metrics.New("override_operator")}

			_, err := r.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: "web", Namespace: "demo"}})
			Expect(err).NotTo(HaveOccurred())

			var got corev1.Service
			Expect(c.Get(ctx, types.NamespacedName{Name: "web", Namespace: "demo"}, &got)).To(Succeed())
			Expect(controllerutil.ContainsFinalizer(&got, serviceFinalizer)).To(BeTrue())
		})
	})

	When("a Service has no selector", func() {
		It("creates no DestinationRule or VirtualService", func() {
			scheme := newTestScheme()
			svc := &corev1.Service{
				ObjectMeta: metav1.ObjectMeta{Name: "kubernetes", Namespace: "default"},
			}
			c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(svc).Build()
			r := &ServiceReconciler{Client: c, Recorder: record.NewFakeRecorder(10), Metrics: metrics.New("override_operator")}

			_, err := r.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: "kubernetes", Namespace: "default"}})
			Expect(err).NotTo(HaveOccurred())

			var drList istionetworkingv1beta1.DestinationRuleList
			Expect(c.List(ctx, &drList)).To(Succeed())
			Expect(drList.Items).To(BeEmpty())
		})
	})

	When("a Service with the finalizer selects one versioned Pod", func() {
		It("applies a DestinationRule with one subset and a VirtualService with override+default routes", func() {
			scheme := newTestScheme()
			svc := &corev1.Service{
				ObjectMeta: metav1.ObjectMeta{
					Name:       "web",
					Namespace:  "demo",
					Finalizers: []string{serviceFinalizer},
				},
				Spec: corev1.ServiceSpec{Selector: map[string]string{"app": "web"}},
			}
			pod := &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "web-1",
					Namespace: "demo",
					Labels:    map[string]string{"app": "web", "version": "v1"},
				},
			}
			c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(svc, pod).Build()
			r := &ServiceReconciler{Client: c, Recorder: record.NewFakeRecorder(10), Metrics: metrics.New("override_operator")}

			result, err := r.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: "web", Namespace: "demo"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(resyncPeriod))

			var dr istionetworkingv1beta1.DestinationRule
			Expect(c.Get(ctx, types.NamespacedName{Name: "web", Namespace: "demo"}, &dr)).To(Succeed())
			Expect(dr.Spec.Subsets).To(HaveLen(1))
			Expect(dr.Spec.Subsets[0].Name).To(Equal("v1"))

			var vs istionetworkingv1beta1.VirtualService
			Expect(c.Get(ctx, types.NamespacedName{Name: "web-overrides", Namespace: "demo"}, &vs)).To(Succeed())
			Expect(vs.Spec.Http).To(HaveLen(2))
		})
	})

	When("a Service with the finalizer is deleted", func() {
		It("runs cleanup and removes the finalizer", func() {
			scheme := newTestScheme()
			now := metav1.Now()
			svc := &corev1.Service{
				ObjectMeta: metav1.ObjectMeta{
					Name:              "web",
					Namespace:         "demo",
					Finalizers:        []string{serviceFinalizer},
					DeletionTimestamp: &now,
				},
				Spec: corev1.ServiceSpec{Selector: map[string]string{"app": "web"}},
			}
			c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(svc).Build()
			r := &ServiceReconciler{Client: c, Recorder: record.NewFakeRecorder(10), Metrics: metrics.New("override_operator")}

			result, err := r.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: "web", Namespace: "demo"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(ctrl.Result{}))

			var got corev1.Service
			getErr := c.Get(ctx, types.NamespacedName{Name: "web", Namespace: "demo"}, &got)
			if getErr == nil {
				Expect(controllerutil.ContainsFinalizer(&got, serviceFinalizer)).To(BeFalse())
			}
		})
	})
})
