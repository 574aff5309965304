package kubernetes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
)

// Service labels that publish a Service as a relay origin.
const (
	LabelEnabled    = "xrelay-proxy-enabled"
	LabelOriginHost = "xrelay-proxy-origin-host"
	LabelOriginPort = "xrelay-proxy-origin-port" // port name or number, optional
)

// K8sResolver routes requested hosts to in-cluster Services that carry the
// origin labels.
type K8sResolver struct {
	store cache.Store
}

// NewK8sResolver starts a Service informer (limited to namespace when it is
// non-empty) and waits for its cache to sync. The informer runs until ctx is
// done.
func NewK8sResolver(ctx context.Context, clientset kubernetes.Interface, namespace string) (*K8sResolver, error) {
	factory := informers.NewSharedInformerFactoryWithOptions(clientset, 10*time.Minute, informers.WithNamespace(namespace))
	serviceInformer := factory.Core().V1().Services().Informer()

	factory.Start(ctx.Done())
	for typ, synced := range factory.WaitForCacheSync(ctx.Done()) {
		if !synced {
			return nil, fmt.Errorf("informer cache for %v did not sync", typ)
		}
	}

	return &K8sResolver{
		store: serviceInformer.GetStore(),
	}, nil
}

func (r *K8sResolver) Resolve(ctx context.Context, host string) (string, error) {
	for _, obj := range r.store.List() {
		svc, ok := obj.(*corev1.Service)
		if !ok {
			continue
		}

		labels := svc.Labels
		if labels[LabelEnabled] != "true" {
			continue
		}
		if !strings.EqualFold(labels[LabelOriginHost], host) {
			continue
		}

		port := servicePort(svc, labels[LabelOriginPort])
		if port == 0 {
			continue
		}

		return fmt.Sprintf("%s.%s.svc.cluster.local:%d", svc.Name, svc.Namespace, port), nil
	}

	return "", fmt.Errorf("service not found for origin host '%s'", host)
}

// servicePort picks the port named or numbered by want, or the first port
// when want is empty.
func servicePort(svc *corev1.Service, want string) int32 {
	if len(svc.Spec.Ports) == 0 {
		return 0
	}
	if want == "" {
		return svc.Spec.Ports[0].Port
	}
	for _, p := range svc.Spec.Ports {
		if p.Name == want || strconv.Itoa(int(p.Port)) == want {
			return p.Port
		}
	}
	return 0
}
