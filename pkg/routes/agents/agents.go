package agents

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/reqcontext"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/propagate"
)

var validate = validator.New()

// Register registers agent routes
func Register(g *echo.Group) {
	g.POST("/propagate", Propagate)
}

// Propagate pushes an agent assignment to every record linked in the
// opposite direction
func Propagate(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "agents_handler.Propagate")
	defer span.End()

	tenantID := reqcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.PropagateAgentRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	entityType, ok := models.ParseEntityType(req.EntityType)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", req.EntityType)
	}

	ctx, propagator, err := ectoinject.GetContext[*propagate.Propagator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get propagator")
	}

	result, err := propagator.PropagateAgent(ctx, tenantID, entityType, req.EntityID, req.Agent)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
