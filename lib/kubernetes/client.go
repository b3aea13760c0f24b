package kubernetes

import (
	"github.com/rotisserie/eris"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// ProxyOptions contains options for connecting to the cluster
type ProxyOptions struct {
	// Host is the kubectl proxy URL. When empty the in-cluster service account is used.
	Host string
}

// Client represents a kubernetes client
type Client struct {
	Clientset kubernetes.Interface
}

// NewClientWithOptions creates a new Kubernetes client, either through a kubectl proxy
// or from the in-cluster service account
func NewClientWithOptions(options ProxyOptions) (*Client, error) {
	config, err := GetConfigWithHost(options.Host)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create Kubernetes client")
	}

	return &Client{Clientset: clientset}, nil
}

// NewClientFromClientset wraps an existing clientset, e.g. a fake one in tests
func NewClientFromClientset(clientset kubernetes.Interface) *Client {
	return &Client{Clientset: clientset}
}

// GetConfigWithHost returns a Kubernetes config for the given kubectl proxy host,
// falling back to the in-cluster config when host is empty
func GetConfigWithHost(host string) (*rest.Config, error) {
	if host == "" {
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, eris.Wrap(err, "failed to load in-cluster config (set K8S_PROXY_URL to use a kubectl proxy)")
		}
		return config, nil
	}

	return &rest.Config{
		Host: host,
		// No authentication needed when using kubectl proxy
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: true,
		},
	}, nil
}
