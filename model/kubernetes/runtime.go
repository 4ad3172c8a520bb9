package kubernetes

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	apiv1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	"k8s.io/utils/pointer"

	"hyperbench/global"
	"hyperbench/model"
)

const (
	appLabel    = "hyperbench"
	nodeLabel   = "node"
	baseVolume  = "base"
	hostVolume  = "host"
	envCMSuffix = "-env"
)

// ExecutorFunc opens a remote command stream to a pod exec url.
type ExecutorFunc func(config *rest.Config, method string, url *url.URL) (remotecommand.Executor, error)

// Runtime runs every node as a single replica deployment with a service of
// the same name. The network base is shared through one NFS export.
type Runtime struct {
	Clientset  kubernetes.Interface
	RestConfig *rest.Config
	Namespace  string
	NFSServer  string
	NFSPath    string
	// NewExecutor defaults to the SPDY executor.
	NewExecutor ExecutorFunc
}

func NewRuntime(clientset kubernetes.Interface, restConfig *rest.Config, namespace, nfsServer, nfsPath string) *Runtime {
	if namespace == "" {
		namespace = apiv1.NamespaceDefault
	}
	return &Runtime{
		Clientset:   clientset,
		RestConfig:  restConfig,
		Namespace:   namespace,
		NFSServer:   nfsServer,
		NFSPath:     nfsPath,
		NewExecutor: remotecommand.NewSPDYExecutor,
	}
}

// ResourceName maps a node host name to a DNS-1123 label.
// Example: peer1.org1.org -> peer1-org1-org
func ResourceName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), ".", "-")
}

func selector(name string) map[string]string {
	return map[string]string{
		"app":     appLabel,
		nodeLabel: ResourceName(name),
	}
}

func (r *Runtime) configMap(spec *model.ContainerSpec) *apiv1.ConfigMap {
	return &apiv1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:   ResourceName(spec.Name) + envCMSuffix,
			Labels: selector(spec.Name),
		},
		Data: spec.Env,
	}
}

func (r *Runtime) volumes(spec *model.ContainerSpec) ([]apiv1.Volume, []apiv1.VolumeMount) {
	volumes := []apiv1.Volume{
		{
			Name: baseVolume,
			VolumeSource: apiv1.VolumeSource{
				NFS: &apiv1.NFSVolumeSource{
					Server: r.NFSServer,
					Path:   r.NFSPath,
				},
			},
		},
	}
	var mounts []apiv1.VolumeMount
	for i, m := range spec.Mounts {
		if filepath.IsAbs(m.Source) {
			name := hostVolume + strconv.Itoa(i)
			volumes = append(volumes, apiv1.Volume{
				Name: name,
				VolumeSource: apiv1.VolumeSource{
					HostPath: &apiv1.HostPathVolumeSource{Path: m.Source},
				},
			})
			mounts = append(mounts, apiv1.VolumeMount{Name: name, MountPath: m.Target})
			continue
		}
		mounts = append(mounts, apiv1.VolumeMount{
			Name:      baseVolume,
			MountPath: m.Target,
			SubPath:   filepath.ToSlash(m.Source),
		})
	}
	return volumes, mounts
}

func (r *Runtime) deployment(spec *model.ContainerSpec) *appsv1.Deployment {
	name := ResourceName(spec.Name)
	matchLabels := selector(spec.Name)
	podLabels := map[string]string{}
	for k, v := range spec.Labels {
		podLabels[k] = v
	}
	for k, v := range matchLabels {
		podLabels[k] = v
	}

	var ports []apiv1.ContainerPort
	for _, p := range spec.Ports {
		ports = append(ports, apiv1.ContainerPort{
			Name:          "p" + strconv.Itoa(p),
			Protocol:      apiv1.ProtocolTCP,
			ContainerPort: int32(p),
		})
	}

	containerName := spec.Labels["tier"]
	if containerName == "" {
		containerName = nodeLabel
	}
	container := apiv1.Container{
		Name:    containerName,
		Image:   spec.Image,
		Command: spec.Command,
		EnvFrom: []apiv1.EnvFromSource{
			{
				ConfigMapRef: &apiv1.ConfigMapEnvSource{
					LocalObjectReference: apiv1.LocalObjectReference{
						Name: name + envCMSuffix,
					},
				},
			},
		},
		Ports: ports,
	}
	if spec.NetAdmin {
		container.SecurityContext = &apiv1.SecurityContext{
			Capabilities: &apiv1.Capabilities{
				Add: []apiv1.Capability{"NET_ADMIN"},
			},
		}
	}
	if spec.NanoCPUs > 0 {
		container.Resources.Limits = apiv1.ResourceList{
			apiv1.ResourceCPU: *resource.NewMilliQuantity(spec.NanoCPUs/1000000, resource.DecimalSI),
		}
	}

	volumes, mounts := r.volumes(spec)
	container.VolumeMounts = mounts

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: matchLabels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: pointer.Int32Ptr(1),
			Selector: &metav1.LabelSelector{
				MatchLabels: matchLabels,
			},
			Template: apiv1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Name:   name,
					Labels: podLabels,
				},
				Spec: apiv1.PodSpec{
					Hostname:   name,
					Containers: []apiv1.Container{container},
					Volumes:    volumes,
				},
			},
		},
	}
}

func (r *Runtime) service(spec *model.ContainerSpec) *apiv1.Service {
	var ports []apiv1.ServicePort
	for _, p := range spec.Ports {
		ports = append(ports, apiv1.ServicePort{
			Name:       "p" + strconv.Itoa(p),
			Protocol:   apiv1.ProtocolTCP,
			Port:       int32(p),
			TargetPort: intstr.FromInt(p),
		})
	}
	return &apiv1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:   ResourceName(spec.Name),
			Labels: selector(spec.Name),
		},
		Spec: apiv1.ServiceSpec{
			Selector: selector(spec.Name),
			Ports:    ports,
			Type:     apiv1.ServiceTypeClusterIP,
		},
	}
}

// Start creates the env config map, the deployment and the service of spec.
// Objects that already exist are kept.
func (r *Runtime) Start(ctx context.Context, spec *model.ContainerSpec) error {
	global.Logger.Info(fmt.Sprintf("[Start deployment %s]", ResourceName(spec.Name)))

	_, err := r.Clientset.CoreV1().
		ConfigMaps(r.Namespace).
		Create(ctx, r.configMap(spec), metav1.CreateOptions{})
	if err := ignoreExists(err, "config map", spec.Name); err != nil {
		return err
	}

	_, err = r.Clientset.AppsV1().
		Deployments(r.Namespace).
		Create(ctx, r.deployment(spec), metav1.CreateOptions{})
	if err := ignoreExists(err, "deployment", spec.Name); err != nil {
		return err
	}

	if len(spec.Ports) == 0 {
		return nil
	}
	_, err = r.Clientset.CoreV1().
		Services(r.Namespace).
		Create(ctx, r.service(spec), metav1.CreateOptions{})
	return ignoreExists(err, "service", spec.Name)
}

func ignoreExists(err error, kind, name string) error {
	if err == nil {
		return nil
	}
	if apierrors.IsAlreadyExists(err) {
		global.Logger.Info(kind+" already exists", zap.String("node", name))
		return nil
	}
	return errors.WithMessagef(err, "Create %s %s error", kind, name)
}

func ignoreNotFound(err error, kind, name string) error {
	if err == nil || apierrors.IsNotFound(err) {
		return nil
	}
	return errors.WithMessagef(err, "Delete %s %s error", kind, name)
}

// Remove deletes every object Start created for name.
func (r *Runtime) Remove(ctx context.Context, name string) error {
	res := ResourceName(name)
	propagation := metav1.DeletePropagationForeground
	opts := metav1.DeleteOptions{PropagationPolicy: &propagation}

	err := r.Clientset.CoreV1().Services(r.Namespace).Delete(ctx, res, opts)
	if err := ignoreNotFound(err, "service", name); err != nil {
		return err
	}
	err = r.Clientset.AppsV1().Deployments(r.Namespace).Delete(ctx, res, opts)
	if err := ignoreNotFound(err, "deployment", name); err != nil {
		return err
	}
	err = r.Clientset.CoreV1().ConfigMaps(r.Namespace).Delete(ctx, res+envCMSuffix, opts)
	return ignoreNotFound(err, "config map", name)
}

func (r *Runtime) pod(ctx context.Context, name string) (*apiv1.Pod, error) {
	pods, err := r.Clientset.CoreV1().Pods(r.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.Set(selector(name)).AsSelector().String(),
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "List pods of %s error", name)
	}
	for i := range pods.Items {
		if pods.Items[i].Status.Phase == apiv1.PodRunning {
			return &pods.Items[i], nil
		}
	}
	return nil, nil
}

func (r *Runtime) Running(ctx context.Context, name string) (bool, error) {
	pod, err := r.pod(ctx, name)
	if err != nil {
		return false, err
	}
	return pod != nil, nil
}

// Exec runs cmd in the first container of the running pod of name.
func (r *Runtime) Exec(ctx context.Context, name string, cmd ...string) (string, error) {
	pod, err := r.pod(ctx, name)
	if err != nil {
		return "", err
	}
	if pod == nil {
		return "", errors.Errorf("no running pod for %s", name)
	}

	req := r.Clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod.Name).
		Namespace(r.Namespace).
		SubResource("exec").
		VersionedParams(&apiv1.PodExecOptions{
			Container: pod.Spec.Containers[0].Name,
			Command:   cmd,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	exec, err := r.NewExecutor(r.RestConfig, "POST", req.URL())
	if err != nil {
		return "", errors.WithMessage(err, "Create executor error")
	}

	var stdout, stderr bytes.Buffer
	if err := exec.Stream(remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	}); err != nil {
		global.Logger.Error("Error occurred when exec command",
			zap.String("node", name),
			zap.String("stdout", stdout.String()),
			zap.String("stderr", stderr.String()),
		)
		return stdout.String() + stderr.String(), errors.WithMessagef(err, "exec in %s", name)
	}
	return stdout.String() + stderr.String(), nil
}
