package kubernetes

import (
	"context"

	"github.com/rotisserie/eris"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NamespaceExists checks if a namespace exists in the cluster
func (c *Client) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	_, err := c.Clientset.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "error checking namespace %s", namespace)
	}

	return true, nil
}

// EnsureNamespace creates the namespace unless it already exists
func (c *Client) EnsureNamespace(ctx context.Context, namespace string) error {
	exists, err := c.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = c.Clientset.CoreV1().Namespaces().Create(ctx, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: namespace},
	}, metav1.CreateOptions{})

	// another request may have created it in the meantime
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return eris.Wrapf(err, "error creating namespace %s", namespace)
	}

	return nil
}
