package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	"github.com/hasirciogluhq/xrelay-proxy/internal/discovery/dns"
	"github.com/hasirciogluhq/xrelay-proxy/internal/discovery/kubernetes"
	"github.com/hasirciogluhq/xrelay-proxy/internal/discovery/memory"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ResolverFactory creates origin resolvers based on configuration
type ResolverFactory struct {
	cfg *config.Config

	// newClientset is swapped in tests to avoid touching a real cluster.
	newClientset func() (k8s.Interface, error)
}

// NewResolverFactory creates a new resolver factory
func NewResolverFactory(cfg *config.Config) *ResolverFactory {
	f := &ResolverFactory{cfg: cfg}
	f.newClientset = f.buildClientset
	return f
}

// Create creates an origin resolver based on configuration
func (f *ResolverFactory) Create(ctx context.Context) (core.OriginResolver, error) {
	switch f.cfg.DiscoveryMode {
	case config.DiscoveryDNS, "":
		logger.Info("Creating DNS Origin Resolver", "origin_port", f.cfg.OriginPort)
		return dns.NewResolver(f.cfg.OriginPort), nil
	case config.DiscoveryStatic:
		return f.createStaticResolver()
	case config.DiscoveryKubernetes:
		return f.createKubernetesResolver(ctx)
	default:
		return nil, fmt.Errorf("unknown discovery mode: %s", f.cfg.DiscoveryMode)
	}
}

func (f *ResolverFactory) createStaticResolver() (core.OriginResolver, error) {
	logger.Info("Creating Static Origin Resolver", "origins", f.cfg.StaticOrigins)

	resolver, err := memory.NewResolver(f.cfg.StaticOrigins, f.cfg.OriginPort)
	if err != nil {
		return nil, fmt.Errorf("failed to create static resolver: %w", err)
	}

	return resolver, nil
}

func (f *ResolverFactory) createKubernetesResolver(ctx context.Context) (core.OriginResolver, error) {
	logger.Info("Creating Kubernetes Origin Resolver",
		"kubeconfig", f.cfg.KubeConfigPath,
		"context", f.cfg.KubeContext,
		"namespace", f.cfg.Namespace)

	clientset, err := f.newClientset()
	if err != nil {
		return nil, err
	}

	resolver, err := kubernetes.NewK8sResolver(ctx, clientset, f.cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to start kubernetes resolver: %w", err)
	}
	logger.Info("Kubernetes resolver created successfully")
	return resolver, nil
}

func (f *ResolverFactory) buildClientset() (k8s.Interface, error) {
	kubeconfig := f.cfg.KubeConfigPath

	// Outside a cluster fall back to the user's kubeconfig
	if kubeconfig == "" && os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		if home := os.Getenv("HOME"); home != "" {
			kubeconfig = home + "/.kube/config"
		}
	}

	configOverrides := &clientcmd.ConfigOverrides{}
	if f.cfg.KubeContext != "" {
		configOverrides.CurrentContext = f.cfg.KubeContext
		logger.Info("Using specific Kubernetes context", "context", f.cfg.KubeContext)
	}

	var restConfig *rest.Config
	var err error

	if kubeconfig != "" {
		restConfig, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig},
			configOverrides,
		).ClientConfig()

		if err != nil {
			logger.Warn("Failed to load kubeconfig, will try in-cluster config", "error", err)
		}
	}

	if restConfig == nil {
		logger.Info("Attempting in-cluster Kubernetes configuration")
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config (tried kubeconfig and in-cluster): %w", err)
		}
	}

	clientset, err := k8s.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, nil
}
