package providers

import (
	"github.com/samber/do/v2"

	"github.com/queryclip/queryclip-server/internal/capture"
	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/config"
	"github.com/queryclip/queryclip-server/internal/logger"
)

// ProvideCapturer provides the HTTP client for the external capture service.
func ProvideCapturer(i do.Injector) (capture.Capturer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return capture.NewHTTPCapturer(cfg.Capture.CapturerURL, log.Logger), nil
}

// OrchestratorHandle wraps the batch orchestrator with shutdown capability.
type OrchestratorHandle struct {
	*capture.Orchestrator
}

// Shutdown implements do.Shutdownable.
func (h *OrchestratorHandle) Shutdown() error {
	return h.Close()
}

// ProvideOrchestrator provides the batch capture orchestrator.
func ProvideOrchestrator(i do.Injector) (*OrchestratorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[*collection.Store](i)
	capturer := do.MustInvoke[capture.Capturer](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	orch := capture.NewOrchestrator(capturer, store, cfg.Capture.Pacing, cfg.Capture.Timeout, log.Logger, sseHandle.Manager)

	log.Info("Capture orchestrator initialized",
		"capturer_url", cfg.Capture.CapturerURL,
		"pacing", cfg.Capture.Pacing,
		"timeout", cfg.Capture.Timeout,
	)

	return &OrchestratorHandle{Orchestrator: orch}, nil
}
