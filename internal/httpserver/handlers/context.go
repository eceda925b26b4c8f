package handlers

import (
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/app"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
)

// Context holds dependencies for HTTP handlers.
type Context struct {
	// Provision triggers provisioning runs.
	Provision *app.ProvisionSiteUseCase
	// Status answers read-only queries.
	Status *app.StatusUseCase
	// Machine exposes the run state machine definition.
	Machine *domain.RunMachine
}

// DefaultContext is the global handler context, set by the server during
// initialization.
var DefaultContext *Context

// SetContext sets the default handler context.
func SetContext(ctx *Context) {
	DefaultContext = ctx
}

// GetContext returns the default handler context, nil if not initialized.
func GetContext() *Context {
	return DefaultContext
}
