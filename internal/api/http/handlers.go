package http

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/monitoring"
	"github.com/heliosproject/helios/kernel/internal/kernel"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Handlers holds the monitor API's dependencies.
type Handlers struct {
	kernel  *kernel.Kernel
	metrics *monitoring.Metrics
	log     *logging.Logger
	started time.Time
}

// NewHandlers creates the handler set. metrics may be nil.
func NewHandlers(k *kernel.Kernel, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		kernel:  k,
		metrics: metrics,
		log:     log,
		started: time.Now(),
	}
}

// Root describes the monitor surface.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "helios-monitor",
		"boot_id": h.kernel.BootID(),
		"endpoints": []string{
			"/health",
			"/processes",
			"/processes/:pid",
			"/scheduler",
			"/syscalls",
			"/metrics",
			"/metrics/snapshot",
			"/input",
			"/stream",
		},
	})
}

// Health reports liveness and boot identity.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"boot_id":        h.kernel.BootID(),
		"uptime_seconds": time.Since(h.started).Seconds(),
	})
}

// ListProcesses returns every schedulable entity, kernel tasks included.
func (h *Handlers) ListProcesses(c *gin.Context) {
	procs := h.kernel.Scheduler().Procs()
	sort.Slice(procs, func(i, j int) bool { return procs[i].ID() < procs[j].ID() })

	out := make([]gin.H, 0, len(procs))
	for _, p := range procs {
		entry := gin.H{
			"pid":   p.ID(),
			"name":  p.Name(),
			"state": p.State().String(),
			"kind":  p.EntityKind().String(),
		}
		if p.Parent() != 0 {
			entry["parent"] = p.Parent()
		}
		out = append(out, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"processes": out,
		"count":     len(out),
	})
}

// GetProcess returns one process by pid.
func (h *Handlers) GetProcess(c *gin.Context) {
	pid, err := strconv.ParseUint(c.Param("pid"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid pid",
		})
		return
	}

	p, ok := h.kernel.Scheduler().Get(types.PID(pid))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no such process",
		})
		return
	}

	entry := gin.H{
		"pid":    p.ID(),
		"name":   p.Name(),
		"state":  p.State().String(),
		"kind":   p.EntityKind().String(),
		"parent": p.Parent(),
	}
	if exited, status := p.Exited(); exited {
		entry["exit_status"] = status
	}
	c.JSON(http.StatusOK, entry)
}

// SchedulerStats reports the per-state populations and the scheduler clock.
func (h *Handlers) SchedulerStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats": h.kernel.Scheduler().Stats(),
	})
}

// SyscallStats reports dispatch counters broken down by operation.
func (h *Handlers) SyscallStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats": h.kernel.Dispatcher().Stats(),
	})
}

// MetricsSnapshot returns the JSON counterpart of the Prometheus endpoint.
func (h *Handlers) MetricsSnapshot(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "metrics disabled",
		})
		return
	}
	c.JSON(http.StatusOK, h.metrics.GetSnapshot())
}

// FeedInput injects bytes into a process's stdin channel.
func (h *Handlers) FeedInput(c *gin.Context) {
	var req struct {
		PID  uint64 `json:"pid" binding:"required"`
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request: " + err.Error(),
		})
		return
	}

	errno := h.kernel.FeedInput(types.PID(req.PID), []byte(req.Data))
	if errno != types.OK {
		status := http.StatusConflict
		if errno == types.ErrBadHandle {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error": errno.String(),
		})
		return
	}

	h.log.Debug("console input injected")
	c.JSON(http.StatusOK, gin.H{
		"pid":     req.PID,
		"written": len(req.Data),
	})
}
