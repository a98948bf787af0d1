package ginserver

import (
	"fmt"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"carrental/internal/app/dto"
	catalogapp "carrental/internal/app/handlers/catalog"
	notificationsapp "carrental/internal/app/handlers/notifications"
	"carrental/internal/app/queries"
)

type CatalogHandler struct {
	Queries queries.Bus
}

func (h CatalogHandler) Companies(c *gin.Context) {
	names, err := queries.Ask[catalogapp.ListCompaniesQuery, []string](c.Request.Context(), h.Queries, catalogapp.ListCompaniesQuery{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": names})
}

func (h CatalogHandler) CarTypes(c *gin.Context) {
	q := catalogapp.CarTypesQuery{Company: c.Param("company")}
	types, err := queries.Ask[catalogapp.CarTypesQuery, []dto.CarType](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"car_types": types})
}

func (h CatalogHandler) AvailableCarTypes(c *gin.Context) {
	start, err := parseTimeQuery(c, "start")
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := parseTimeQuery(c, "end")
	if err != nil {
		badRequest(c, err)
		return
	}
	q := catalogapp.AvailableCarTypesQuery{Company: c.Param("company"), Start: start, End: end}
	types, err := queries.Ask[catalogapp.AvailableCarTypesQuery, []dto.CarType](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"car_types": types})
}

func (h CatalogHandler) Fleet(c *gin.Context) {
	q := catalogapp.FleetQuery{Company: c.Param("company"), CarType: c.Query("car_type")}
	fleet, err := queries.Ask[catalogapp.FleetQuery, dto.Fleet](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fleet)
}

type NotificationHandler struct {
	Queries queries.Bus
}

func (h NotificationHandler) ByRenter(c *gin.Context) {
	q := notificationsapp.RenterNotificationsQuery{Renter: c.Param("renter")}
	items, err := queries.Ask[notificationsapp.RenterNotificationsQuery, []dto.Notification](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func parseTimeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("query parameter %q is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("query parameter %q: %w", name, err)
	}
	return t, nil
}

var (
	_ CatalogHTTP      = CatalogHandler{}
	_ NotificationHTTP = NotificationHandler{}
)
