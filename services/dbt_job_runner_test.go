package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/dbt-cloudrun/lib/kubernetes"
)

const testNamespace = "dbt-runs"

type jobOutcome struct {
	condition batchv1.JobConditionType
	exitCode  int32
	waiting   string
}

// newFakeCluster returns a clientset where every created job immediately gets a
// pod reflecting outcome, plus the job's condition when one is set
func newFakeCluster(t *testing.T, outcome jobOutcome) *fake.Clientset {
	t.Helper()

	clientset := fake.NewSimpleClientset()
	clientset.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		job := action.(k8stesting.CreateAction).GetObject().(*batchv1.Job)

		if outcome.condition != "" {
			job.Status.Conditions = append(job.Status.Conditions, batchv1.JobCondition{
				Type:   outcome.condition,
				Status: corev1.ConditionTrue,
			})
		}

		status := corev1.ContainerStatus{Name: dbtContainerName}
		if outcome.waiting != "" {
			status.State.Waiting = &corev1.ContainerStateWaiting{Reason: outcome.waiting, Message: "back-off pulling image"}
		} else {
			status.State.Terminated = &corev1.ContainerStateTerminated{ExitCode: outcome.exitCode}
		}

		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      job.Name + "-x1",
				Namespace: job.Namespace,
				Labels:    map[string]string{"job-name": job.Name},
			},
			Status: corev1.PodStatus{ContainerStatuses: []corev1.ContainerStatus{status}},
		}
		require.NoError(t, clientset.Tracker().Add(pod))

		// fall through to the default tracker so the mutated job gets stored
		return false, nil, nil
	})

	return clientset
}

func newTestJobRunner(clientset *fake.Clientset) *JobRunner {
	return NewJobRunner(kubernetes.NewClientFromClientset(clientset), JobRunnerOptions{
		Namespace:    testNamespace,
		Image:        "ghcr.io/dbt-labs/dbt-bigquery:1.8.0",
		Deadline:     time.Hour,
		EnvSecret:    "dbt-credentials",
		PollInterval: 5 * time.Millisecond,
	})
}

func listJobs(t *testing.T, clientset *fake.Clientset) []batchv1.Job {
	t.Helper()
	jobs, err := clientset.BatchV1().Jobs(testNamespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	return jobs.Items
}

func TestJobRunnerSuccess(t *testing.T) {
	clientset := newFakeCluster(t, jobOutcome{condition: batchv1.JobComplete})
	args := []string{"build", "--project-dir", "dbt", "--profiles-dir", "dbt", "--target", "prod"}

	result, err := newTestJobRunner(clientset).Invoke(context.Background(), args)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "fake logs", result.Output)

	_, err = clientset.CoreV1().Namespaces().Get(context.Background(), testNamespace, metav1.GetOptions{})
	require.NoError(t, err)

	jobs := listJobs(t, clientset)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Contains(t, job.Name, "dbt-build-")
	assert.Equal(t, int32(0), *job.Spec.BackoffLimit)
	assert.Equal(t, int64(3600), *job.Spec.ActiveDeadlineSeconds)

	pod := job.Spec.Template.Spec
	assert.Equal(t, corev1.RestartPolicyNever, pod.RestartPolicy)
	require.Len(t, pod.Containers, 1)
	assert.Equal(t, "ghcr.io/dbt-labs/dbt-bigquery:1.8.0", pod.Containers[0].Image)
	assert.Equal(t, args, pod.Containers[0].Args)
	require.Len(t, pod.Containers[0].EnvFrom, 1)
	assert.Equal(t, "dbt-credentials", pod.Containers[0].EnvFrom[0].SecretRef.Name)
}

func TestJobRunnerReportsFailure(t *testing.T) {
	clientset := newFakeCluster(t, jobOutcome{condition: batchv1.JobFailed, exitCode: 1})

	result, err := newTestJobRunner(clientset).Invoke(context.Background(), []string{"source", "freshness"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, listJobs(t, clientset)[0].Name, "dbt-source-")
}

func TestJobRunnerPodError(t *testing.T) {
	clientset := newFakeCluster(t, jobOutcome{waiting: "ImagePullBackOff"})

	_, err := newTestJobRunner(clientset).Invoke(context.Background(), []string{"build"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image pull failed")

	// the abandoned job is removed
	assert.Empty(t, listJobs(t, clientset))
}

func TestJobRunnerInterrupted(t *testing.T) {
	// no job condition ever appears
	clientset := newFakeCluster(t, jobOutcome{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestJobRunner(clientset).Invoke(ctx, []string{"build"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was interrupted")
	assert.Empty(t, listJobs(t, clientset))
}

func TestJobRunnerSubmitError(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	clientset.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(batchv1.Resource("jobs"), "", errors.New("service account cannot create jobs"))
	})

	_, err := newTestJobRunner(clientset).Invoke(context.Background(), []string{"build"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit job")
}

func TestCheckPodForErrors(t *testing.T) {
	pod := &corev1.Pod{Status: corev1.PodStatus{
		Phase: corev1.PodFailed,
		ContainerStatuses: []corev1.ContainerStatus{{
			Name:  dbtContainerName,
			State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: 1}},
		}},
	}}
	assert.NoError(t, checkPodForErrors(pod), "a dbt failure is not a pod error")

	pod.Status.ContainerStatuses[0].State = corev1.ContainerState{
		Waiting: &corev1.ContainerStateWaiting{Reason: "CreateContainerConfigError", Message: `secret "dbt-credentials" not found`},
	}
	err := checkPodForErrors(pod)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}
