package opencv

import (
	"os"
	"runtime"
	"strings"

	"emotion-cam-go/config"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DNN-Backend-Typen für die Konfiguration
const (
	BackendDefault = "default"
	BackendCUDA    = "cuda"
	BackendOpenCL  = "opencl"
	TargetCPU      = "cpu"
	TargetCUDA     = "cuda"
	TargetOpenCL   = "opencl"
)

// getGPUBackend wählt Backend und Target für DNN-Netze anhand der Konfiguration.
// OpenCL läuft über das OpenCV-Backend mit dem OpenCL-Target (NetTargetFP32).
func getGPUBackend(cfg config.DetectorsConfig) (gocv.NetBackendType, gocv.NetTargetType) {
	backend := gocv.NetBackendDefault
	target := gocv.NetTargetCPU

	if cfg.Backend == "" || cfg.Backend == BackendDefault {
		if !cfg.UseGPU {
			return backend, target
		}

		if haveNvidiaGPU() {
			log.Info("NVIDIA GPU detected, using CUDA backend")
			return gocv.NetBackendCUDA, gocv.NetTargetCUDA
		}
		if haveAMDGPU() {
			log.Info("AMD GPU detected, using OpenCL backend")
			return gocv.NetBackendOpenCV, gocv.NetTargetFP32
		}
		if runtime.GOOS == "darwin" && strings.HasPrefix(runtime.GOARCH, "arm") {
			// Metal wird von OpenCV DNN nicht unterstützt
			log.Info("Apple Silicon detected, using optimized CPU path")
			return backend, target
		}

		log.Warn("GPU usage enabled but no supported GPU found, using CPU")
		return backend, target
	}

	switch cfg.Backend {
	case BackendCUDA:
		backend = gocv.NetBackendCUDA
	case BackendOpenCL:
		backend = gocv.NetBackendOpenCV
	default:
		log.Warnf("Unknown DNN backend '%s', using default", cfg.Backend)
	}

	switch cfg.Target {
	case TargetCUDA:
		target = gocv.NetTargetCUDA
	case TargetOpenCL:
		target = gocv.NetTargetFP32
	case TargetCPU, "":
		target = gocv.NetTargetCPU
	default:
		log.Warnf("Unknown DNN target '%s', using CPU", cfg.Target)
	}

	return backend, target
}

// applyBackend setzt Backend und Target eines Netzes
func applyBackend(net *gocv.Net, cfg config.DetectorsConfig) {
	backend, target := getGPUBackend(cfg)
	net.SetPreferableBackend(backend)
	net.SetPreferableTarget(target)
	log.Debugf("DNN uses backend %d and target %d", backend, target)
}

// haveNvidiaGPU prüft, ob eine NVIDIA-GPU verfügbar ist
func haveNvidiaGPU() bool {
	if os.Getenv("NVIDIA_VISIBLE_DEVICES") != "" || os.Getenv("NVIDIA_DRIVER_CAPABILITIES") != "" {
		return true
	}

	paths := []string{
		"/usr/local/cuda/lib64/libcudart.so",
		"/usr/lib/x86_64-linux-gnu/libcuda.so",
		"/usr/lib/libcuda.so",
		"/usr/bin/nvidia-smi",
		"/usr/local/bin/nvidia-smi",
	}
	if runtime.GOOS == "windows" {
		paths = []string{
			"C:\\Program Files\\NVIDIA Corporation\\NVSMI\\nvidia-smi.exe",
			"C:\\Windows\\System32\\nvidia-smi.exe",
		}
	}
	return anyFileExists(paths...)
}

// haveAMDGPU prüft, ob eine AMD-GPU verfügbar ist (nur Linux)
func haveAMDGPU() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	return anyFileExists("/dev/kfd", "/dev/dri/renderD128")
}

func anyFileExists(paths ...string) bool {
	for _, p := range paths {
		if fileExists(p) {
			return true
		}
	}
	return false
}

// fileExists prüft, ob eine Datei existiert
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
