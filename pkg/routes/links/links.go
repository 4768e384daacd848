package links

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/reqcontext"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/propagate"
)

// Register registers link routes
func Register(g *echo.Group) {
	g.POST("/reconcile", Reconcile)
}

// Reconcile resolves every Opportunity against the Contact collection and
// repairs both link directions
func Reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "links_handler.Reconcile")
	defer span.End()

	tenantID := reqcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, propagator, err := ectoinject.GetContext[*propagate.Propagator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get propagator")
	}

	result, err := propagator.ReconcileLinks(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
