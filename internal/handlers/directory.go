package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *handler) registerDirectoryRoutes(api *gin.RouterGroup) {
	d := h.directory

	api.GET("/organizations", h.listOrganizations)
	api.GET("/organizations/:id", h.getOrganization)
	api.POST("/organizations", createRow(h, d.CreateOrganization))
	api.PUT("/organizations/:id", updateRow(h, d.UpdateOrganization))
	api.DELETE("/organizations/:id", h.remove(d.DeleteOrganization))

	api.GET("/departments/:org_id", listByOrg(h, d.ListDepartments))
	api.POST("/departments", createRow(h, d.CreateDepartment))
	api.PUT("/departments/:id", updateRow(h, d.UpdateDepartment))
	api.DELETE("/departments/:id", h.remove(d.DeleteDepartment))

	api.GET("/classes/:org_id", listByOrg(h, d.ListClasses))
	api.POST("/classes", createRow(h, d.CreateClass))
	api.PUT("/classes/:id", updateRow(h, d.UpdateClass))
	api.DELETE("/classes/:id", h.remove(d.DeleteClass))

	api.GET("/students/:org_id", listByOrg(h, d.ListStudents))
	api.GET("/students/by-roll/:roll_number", h.studentByRoll)
	api.POST("/students", createRow(h, d.CreateStudent))
	api.PUT("/students/:id", updateRow(h, d.UpdateStudent))
	api.DELETE("/students/:id", h.remove(d.DeleteStudent))

	api.GET("/staff/:org_id", listByOrg(h, d.ListStaff))
	api.GET("/staff/employee/:employee_id", h.staffByEmployeeID)
	api.POST("/staff", createRow(h, d.CreateStaff))
	api.PUT("/staff/:id", updateRow(h, d.UpdateStaff))
	api.DELETE("/staff/:id", h.remove(d.DeleteStaff))

	api.GET("/dashboard/:org_id", h.dashboard)
}

func (h *handler) listOrganizations(c *gin.Context) {
	orgs, err := h.directory.ListOrganizations(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orgs)
}

func (h *handler) getOrganization(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	org, err := h.directory.GetOrganization(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (h *handler) studentByRoll(c *gin.Context) {
	student, err := h.directory.GetStudentByRoll(c.Request.Context(), c.Param("roll_number"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *handler) staffByEmployeeID(c *gin.Context) {
	staff, err := h.directory.GetStaffByEmployeeID(c.Request.Context(), c.Param("employee_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (h *handler) dashboard(c *gin.Context) {
	orgID, ok := pathUUID(c, "org_id")
	if !ok {
		return
	}
	summary, err := h.directory.Dashboard(c.Request.Context(), orgID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func createRow[T any](h *handler, create func(context.Context, *T) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		row := new(T)
		if err := c.ShouldBindJSON(row); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		if err := create(c.Request.Context(), row); err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

func updateRow[T any](h *handler, update func(context.Context, uuid.UUID, *T) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		row := new(T)
		if err := c.ShouldBindJSON(row); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		if err := update(c.Request.Context(), id, row); err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func (h *handler) remove(del func(context.Context, uuid.UUID) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		if err := del(c.Request.Context(), id); err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
	}
}

func listByOrg[T any](h *handler, list func(context.Context, uuid.UUID) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := pathUUID(c, "org_id")
		if !ok {
			return
		}
		rows, err := list(c.Request.Context(), orgID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if rows == nil {
			rows = []T{}
		}
		c.JSON(http.StatusOK, rows)
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}
