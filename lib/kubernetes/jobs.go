package kubernetes

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// maxLogBytes caps how much of a container's log is read back
const maxLogBytes = 64 * 1024

// DeleteJob removes a job and lets the garbage collector clean up its pods.
// A job that no longer exists is not an error.
func (c *Client) DeleteJob(ctx context.Context, namespace, jobName string) error {
	policy := metav1.DeletePropagationBackground
	err := c.Clientset.BatchV1().Jobs(namespace).Delete(ctx, jobName, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return eris.Wrapf(err, "failed to delete job %s", jobName)
	}

	return nil
}

// JobPods lists the pods created for a job
func (c *Client) JobPods(ctx context.Context, namespace, jobName string) ([]corev1.Pod, error) {
	pods, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("job-name=%s", jobName),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list pods for job %s", jobName)
	}

	return pods.Items, nil
}

// PodLogs returns the last tailLines lines of a container's log
func (c *Client) PodLogs(ctx context.Context, namespace, podName, container string, tailLines int64) (string, error) {
	req := c.Clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{
		Container: container,
		TailLines: &tailLines,
	})

	stream, err := req.Stream(ctx)
	if err != nil {
		return "", eris.Wrapf(err, "failed to get logs for pod %s", podName)
	}
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, maxLogBytes))
	if err != nil {
		return "", eris.Wrapf(err, "failed to read logs for pod %s", podName)
	}

	return string(data), nil
}
