package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"yard-service/internal/http/middleware"
	"yard-service/internal/service"
)

const imageFormField = "image"

var errImageTooLarge = errors.New("image is too large")

type Handler struct {
	recognitionService *service.RecognitionService
	parkingService     *service.ParkingService
	uploadMaxBytes     int64
	log                zerolog.Logger
}

func NewHandler(
	recognitionService *service.RecognitionService,
	parkingService *service.ParkingService,
	uploadMaxBytes int64,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		recognitionService: recognitionService,
		parkingService:     parkingService,
		uploadMaxBytes:     uploadMaxBytes,
		log:                log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Загрузка снимка с телефона по QR-коду, без авторизации
	radar := r.Group("/radar")
	{
		radar.POST("/sessions", h.startSession)
		radar.GET("/sessions/:id", h.getSession)
		radar.POST("/sessions/:id/image", h.uploadImage)
	}

	parking := r.Group("/parking")
	parking.Use(authMiddleware)
	{
		parking.POST("/allocate", h.allocate)
		parking.POST("/release", h.release)
		parking.GET("/vehicles/:plate", h.locate)
		parking.GET("/slots", h.listSlots)
	}
}

func (h *Handler) startSession(c *gin.Context) {
	session, err := h.recognitionService.StartSession(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(gin.H{"session_id": session.ID}))
}

func (h *Handler) getSession(c *gin.Context) {
	session, err := h.recognitionService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(session))
}

func (h *Handler) uploadImage(c *gin.Context) {
	image, err := h.readImage(c)
	if err != nil {
		if errors.Is(err, errImageTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	sessionID := c.Param("id")
	if err := h.recognitionService.SubmitImage(c.Request.Context(), sessionID, image); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, successResponse(gin.H{"session_id": sessionID, "status": "PROCESSING"}))
}

// readImage принимает multipart-поле image или сырое тело запроса
func (h *Handler) readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		var file *multipart.FileHeader
		file, err = c.FormFile(imageFormField)
		if err == nil {
			data, err = readFormFile(file)
		}
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return nil, errImageTooLarge
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

type plateRequest struct {
	Plate string `json:"plate" binding:"required"`
}

func (h *Handler) allocate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req plateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	allocation, err := h.parkingService.Allocate(c.Request.Context(), principal, req.Plate)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"slot_id":    allocation.Box.ID,
		"slot_name":  allocation.Box.Name,
		"vehicle_id": allocation.VehicleID,
		"plate":      allocation.Plate,
		"fuzzy":      allocation.Fuzzy,
	}))
}

func (h *Handler) release(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req plateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.parkingService.Release(c.Request.Context(), principal, req.Plate); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"status": "released"}))
}

func (h *Handler) locate(c *gin.Context) {
	location, err := h.parkingService.Locate(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"vehicle_id": location.VehicleID,
		"plate":      location.Plate,
		"slot_id":    location.Box.ID,
		"slot_name":  location.Box.Name,
	}))
}

func (h *Handler) listSlots(c *gin.Context) {
	boxes, err := h.parkingService.ListSlots(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(boxes))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
