package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/dbt-cloudrun/lib/kubernetes"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/models"
	"github.com/dbt-cloudrun/utils"
)

const (
	dbtContainerName    = "dbt"
	defaultPollInterval = 5 * time.Second
	defaultLogTailLines = 200
	jobTTLAfterFinished = 600
	cleanupTimeout      = 30 * time.Second
	failedPodExitCode   = 1
)

// JobRunnerOptions configures the Kubernetes jobs created for each invocation
type JobRunnerOptions struct {
	Namespace      string
	Image          string
	Deadline       time.Duration
	ServiceAccount string
	EnvSecret      string
	PollInterval   time.Duration
	LogTailLines   int64
}

// JobRunner runs every dbt invocation as a Kubernetes Job and waits for it to finish
type JobRunner struct {
	client *kubernetes.Client
	opts   JobRunnerOptions
}

// NewJobRunner creates a new JobRunner instance
func NewJobRunner(client *kubernetes.Client, opts JobRunnerOptions) *JobRunner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.LogTailLines <= 0 {
		opts.LogTailLines = defaultLogTailLines
	}

	return &JobRunner{client: client, opts: opts}
}

// Invoke submits a job running dbt with args and blocks until it completes or fails
func (r *JobRunner) Invoke(ctx context.Context, args []string) (*models.InvocationResult, error) {
	logger := logging.Log(ctx)
	start := time.Now()

	if err := r.client.EnsureNamespace(ctx, r.opts.Namespace); err != nil {
		return nil, err
	}

	job := r.buildJob(args)
	logger.Info().Str("job", job.Name).Str("namespace", r.opts.Namespace).Msg("Submitting dbt job")

	_, err := r.client.Clientset.BatchV1().Jobs(r.opts.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to submit job %s", job.Name)
	}

	succeeded, err := r.waitForJob(ctx, job.Name)
	if err != nil {
		logger.Error().Err(err).Str("job", job.Name).Msg("dbt job did not finish")
		r.cleanup(job.Name)
		return nil, err
	}

	exitCode, output := r.collectOutput(ctx, job.Name)
	if !succeeded && exitCode == 0 {
		exitCode = failedPodExitCode
	}
	result := &models.InvocationResult{
		Args:     args,
		Success:  succeeded,
		ExitCode: exitCode,
		Output:   output,
		Duration: time.Since(start),
	}

	if succeeded {
		logger.Info().Str("job", job.Name).Dur("duration", result.Duration).Str("output", output).Msg("dbt job completed")
	} else {
		logger.Warn().Str("job", job.Name).Int("exitCode", exitCode).Str("output", output).Msg("dbt job failed")
	}

	return result, nil
}

func (r *JobRunner) buildJob(args []string) *batchv1.Job {
	prefix := "dbt"
	if len(args) > 0 {
		prefix = "dbt-" + args[0]
	}
	jobName := utils.GenerateJobName(prefix)

	labels := map[string]string{
		"app":      "dbt-cloudrun",
		"job-name": jobName,
	}

	container := corev1.Container{
		Name:  dbtContainerName,
		Image: r.opts.Image,
		Args:  args,
	}
	if r.opts.EnvSecret != "" {
		container.EnvFrom = []corev1.EnvFromSource{{
			SecretRef: &corev1.SecretEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: r.opts.EnvSecret},
			},
		}}
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: r.opts.Namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            utils.Int32Ptr(0),
			TTLSecondsAfterFinished: utils.Int32Ptr(jobTTLAfterFinished),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy:      corev1.RestartPolicyNever,
					ServiceAccountName: r.opts.ServiceAccount,
					Containers:         []corev1.Container{container},
				},
			},
		},
	}
	if r.opts.Deadline > 0 {
		job.Spec.ActiveDeadlineSeconds = utils.Int64Ptr(int64(r.opts.Deadline.Seconds()))
	}

	return job
}

// waitForJob polls the job until it reports Complete or Failed. Pod-level problems
// that keep dbt from ever starting are returned as errors.
func (r *JobRunner) waitForJob(ctx context.Context, jobName string) (bool, error) {
	var succeeded bool

	err := wait.PollUntilContextCancel(ctx, r.opts.PollInterval, true, func(ctx context.Context) (bool, error) {
		job, err := r.client.Clientset.BatchV1().Jobs(r.opts.Namespace).Get(ctx, jobName, metav1.GetOptions{})
		if err != nil {
			return false, eris.Wrapf(err, "failed to get job %s", jobName)
		}

		for _, condition := range job.Status.Conditions {
			if condition.Status != corev1.ConditionTrue {
				continue
			}
			switch condition.Type {
			case batchv1.JobComplete:
				succeeded = true
				return true, nil
			case batchv1.JobFailed:
				return true, nil
			}
		}

		pods, err := r.client.JobPods(ctx, r.opts.Namespace, jobName)
		if err != nil {
			return false, err
		}
		for i := range pods {
			if err := checkPodForErrors(&pods[i]); err != nil {
				return false, eris.Wrapf(err, "pod error in job %s", jobName)
			}
		}

		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, eris.Wrapf(ctx.Err(), "job %s was interrupted", jobName)
		}
		return false, err
	}

	return succeeded, nil
}

// collectOutput reads the dbt container's exit code and log tail from the job's pods
func (r *JobRunner) collectOutput(ctx context.Context, jobName string) (int, string) {
	logger := logging.Log(ctx)

	pods, err := r.client.JobPods(ctx, r.opts.Namespace, jobName)
	if err != nil || len(pods) == 0 {
		logger.Warn().Err(err).Str("job", jobName).Msg("No pods found for dbt job")
		return 0, ""
	}

	pod := pods[len(pods)-1]
	exitCode := 0
	for _, status := range pod.Status.ContainerStatuses {
		if status.Name == dbtContainerName && status.State.Terminated != nil {
			exitCode = int(status.State.Terminated.ExitCode)
		}
	}

	output, err := r.client.PodLogs(ctx, r.opts.Namespace, pod.Name, dbtContainerName, r.opts.LogTailLines)
	if err != nil {
		logger.Warn().Err(err).Str("pod", pod.Name).Msg("Could not read dbt logs")
		output = fmt.Sprintf("logs unavailable: %v", err)
	}

	return exitCode, output
}

// cleanup deletes an abandoned job. The run's context may already be cancelled.
func (r *JobRunner) cleanup(jobName string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := r.client.DeleteJob(ctx, r.opts.Namespace, jobName); err != nil {
		logging.Log(ctx).Warn().Err(err).Str("job", jobName).Msg("Failed to clean up dbt job")
	}
}

// checkPodForErrors reports conditions under which dbt will never start.
// A container that ran and exited non-zero is not an error here; the job's
// Failed condition covers that.
func checkPodForErrors(pod *corev1.Pod) error {
	statuses := append([]corev1.ContainerStatus{}, pod.Status.InitContainerStatuses...)
	statuses = append(statuses, pod.Status.ContainerStatuses...)

	for _, containerStatus := range statuses {
		waiting := containerStatus.State.Waiting
		if waiting == nil {
			continue
		}

		switch waiting.Reason {
		case "ImagePullBackOff", "ErrImagePull", "InvalidImageName":
			return eris.Errorf("container %s image pull failed: %s - %s",
				containerStatus.Name, waiting.Reason, waiting.Message)
		case "CreateContainerConfigError", "CreateContainerError":
			return eris.Errorf("container %s config error: %s - %s",
				containerStatus.Name, waiting.Reason, waiting.Message)
		}
	}

	return nil
}
