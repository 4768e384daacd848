package identifiers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/reqcontext"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/backfill"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/refid"
)

var validate = validator.New()

// Register registers identifier routes. Backfill middleware applies only
// to the backfill route, which tenants typically restrict to admins.
func Register(g *echo.Group, backfillMiddleware ...echo.MiddlewareFunc) {
	g.POST("/allocate", Allocate)
	g.POST("/backfill", Backfill, backfillMiddleware...)
}

// Allocate reserves the next block of reference identifiers for a collection
func Allocate(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "identifiers_handler.Allocate")
	defer span.End()

	tenantID := reqcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.AllocateIdentifiersRequest
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

	ctx, allocator, err := ectoinject.GetContext[*refid.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	ids, err := allocator.NextIdentifiers(ctx, tenantID, entityType, req.Count)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.AllocateIdentifiersResponse{
		EntityType:  req.EntityType,
		Identifiers: ids,
	})
}

// Backfill assigns identifiers to every record of a collection missing one
func Backfill(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "identifiers_handler.Backfill")
	defer span.End()

	tenantID := reqcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.BackfillRequest
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

	ctx, assigner, err := ectoinject.GetContext[*backfill.Assigner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get backfill assigner")
	}

	result, err := assigner.Run(ctx, tenantID, entityType)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
