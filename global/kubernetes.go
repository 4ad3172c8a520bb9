package global

import (
	"github.com/pkg/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewK8sClient builds a clientset from kubeconfig, or from the in-cluster
// environment when kubeconfig is empty.
func NewK8sClient(kubeconfig string) (*kubernetes.Clientset, *rest.Config, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "Get kubernetes rest config error")
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "Get kubernetes clientset error")
	}
	return clientset, restConfig, nil
}
