package workers

import (
	"cad-lab/domain"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

const DefaultMetricInterval = 5 * time.Second

// ProcessSampleSink receives the latest samples of the tracked processes.
type ProcessSampleSink interface {
	SetProcesses(samples []domain.ProcessSample)
}

// HealthMonitoringWorker samples the scripts started by the executor.
// It implements contract.ProcessTracker.
type HealthMonitoringWorker struct {
	mu                 sync.Mutex
	log                *slog.Logger
	sink               ProcessSampleSink
	processTrackerChan chan domain.Process
	metricInterval     time.Duration
	processes          map[domain.PID]string
}

func NewHealthMonitoringWorker(log *slog.Logger, sink ProcessSampleSink, metricInterval time.Duration) *HealthMonitoringWorker {
	if metricInterval <= 0 {
		metricInterval = DefaultMetricInterval
	}
	return &HealthMonitoringWorker{
		log:                log,
		sink:               sink,
		processTrackerChan: make(chan domain.Process, 64),
		metricInterval:     metricInterval,
		processes:          make(map[domain.PID]string),
	}
}

// Track hands a process over to the worker without blocking the caller.
func (w *HealthMonitoringWorker) Track(proc domain.Process) {
	select {
	case w.processTrackerChan <- proc:
	default:
		w.log.Debug("Process tracker channel full, process not tracked", "pid", proc.PID)
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process sampling")
			return nil
		case <-ticker.C:
			w.sink.SetProcesses(w.sample())
		case proc := <-w.processTrackerChan:
			w.mu.Lock()
			w.processes[proc.PID] = proc.Label
			w.mu.Unlock()
		}
	}
}

// sample measures every tracked process and forgets the ones that exited.
func (w *HealthMonitoringWorker) sample() []domain.ProcessSample {
	w.mu.Lock()
	defer w.mu.Unlock()

	samples := make([]domain.ProcessSample, 0, len(w.processes))
	for pid, label := range w.processes {
		p, err := process.NewProcess(int32(pid))
		if err != nil {
			delete(w.processes, pid)
			w.log.Debug("Process has left the party", "pid", pid, "label", label)
			continue
		}
		code, err := p.Status()
		if err != nil {
			w.log.Debug("Error while finding process status", "pid", pid, "err", err)
			delete(w.processes, pid)
			continue
		}
		state := domain.ParseProcState(code)
		if state.Gone() {
			delete(w.processes, pid)
			continue
		}
		cpu, err := p.CPUPercent()
		if err != nil {
			w.log.Debug("Error while finding process cpu usage", "pid", pid, "err", err)
			continue
		}
		ram, err := p.MemoryPercent()
		if err != nil {
			w.log.Debug("Error while finding process ram usage", "pid", pid, "err", err)
			continue
		}
		samples = append(samples, domain.ProcessSample{
			PID:    pid,
			Label:  label,
			State:  state,
			CPU:    cpu,
			Memory: ram,
			At:     time.Now().UTC(),
		})
	}
	return samples
}

// Tracked returns the number of processes currently followed.
func (w *HealthMonitoringWorker) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.processes)
}
