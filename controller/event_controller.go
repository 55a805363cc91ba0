package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gatherly/gatherly/apperr"
	"github.com/gatherly/gatherly/middleware"
	"github.com/gatherly/gatherly/service"
)

type EventController struct {
	EventService *service.EventService
}

type eventRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Date        time.Time `json:"date" binding:"required"`
	Location    string    `json:"location" binding:"required"`
	Category    string    `json:"category" binding:"required"`
	Capacity    int       `json:"capacity" binding:"required,gt=0"`
	ImageURL    string    `json:"imageUrl" binding:"required"`
}

func (r *eventRequest) toInput() service.EventInput {
	return service.EventInput{
		Name:        r.Name,
		Description: r.Description,
		Date:        r.Date,
		Location:    r.Location,
		Category:    r.Category,
		Capacity:    r.Capacity,
		ImageURL:    r.ImageURL,
	}
}

func (h *EventController) Create(ctx *gin.Context) {
	var req eventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, apperr.Validation("All fields are required"))
		return
	}

	event, err := h.EventService.CreateEvent(middleware.CurrentUser(ctx), req.toInput())
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

func (h *EventController) List(ctx *gin.Context) {
	events, err := h.EventService.ListEvents(service.EventQuery{
		Category:  ctx.Query("category"),
		DateRange: ctx.Query("dateRange"),
		Occupancy: ctx.Query("occupancy"),
		Search:    ctx.Query("search"),
		Sort:      ctx.Query("sort"),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, events)
}

func (h *EventController) GetByID(ctx *gin.Context) {
	eventID, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	event, err := h.EventService.GetEventByID(eventID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (h *EventController) Update(ctx *gin.Context) {
	eventID, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	var req eventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, apperr.Validation("All fields are required"))
		return
	}

	event, err := h.EventService.UpdateEvent(eventID, middleware.CurrentUser(ctx), req.toInput())
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (h *EventController) Delete(ctx *gin.Context) {
	eventID, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	if err := h.EventService.DeleteEvent(eventID, middleware.CurrentUser(ctx)); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully"})
}

func (h *EventController) Join(ctx *gin.Context) {
	eventID, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	event, err := h.EventService.JoinEvent(eventID, middleware.CurrentUser(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (h *EventController) Leave(ctx *gin.Context) {
	eventID, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	event, err := h.EventService.LeaveEvent(eventID, middleware.CurrentUser(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func eventIDParam(ctx *gin.Context) (primitive.ObjectID, bool) {
	eventID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		respondError(ctx, apperr.NotFound("Event not found"))
		return primitive.NilObjectID, false
	}
	return eventID, true
}
