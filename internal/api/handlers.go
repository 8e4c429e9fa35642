package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"proptrack/server/internal/database"
	"proptrack/server/internal/geometry"
	"proptrack/server/internal/importer"
	"proptrack/server/internal/listing"
	"proptrack/server/internal/models"
	"proptrack/server/internal/validation"
)

const defaultMaxUploadBytes = 5 << 20

type Handler struct {
	db             *database.Database
	logger         *logrus.Logger
	geocoder       importer.Geocoder
	importer       *importer.Importer
	validator      *validation.Validator
	maxUploadBytes int64
}

type Options struct {
	// Rows geocoded at once during a batch import
	GeocodeConcurrency int
	MaxUploadBytes     int64
}

func NewHandler(db *database.Database, geocoder importer.Geocoder, logger *logrus.Logger, opts Options) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	return &Handler{
		db:             db,
		logger:         logger,
		geocoder:       geocoder,
		importer:       importer.NewImporter(geocoder, db, logger, opts.GeocodeConcurrency),
		validator:      validation.New(),
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// filteredProperties loads every listing and applies the filter and sort
// selection from the query string. It writes the error response itself and
// reports false when the request cannot continue.
func (h *Handler) filteredProperties(c *gin.Context) ([]models.Property, bool) {
	state, err := listing.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	properties, err := h.db.ListProperties(c.Request.Context())
	if err != nil {
		h.internalError(c, err, "Failed to fetch properties")
		return nil, false
	}

	return listing.Apply(properties, state), true
}

func (h *Handler) GetAllProperties(c *gin.Context) {
	properties, ok := h.filteredProperties(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, properties)
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var input models.NewProperty
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.WithError(err).Warn("Invalid create payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if msgs := h.validator.NewProperty(&input); len(msgs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "errors": msgs})
		return
	}

	lat, lon, err := h.geocoder.Geocode(c.Request.Context(), input.Location)
	if err != nil {
		h.internalError(c, err, "Failed to geocode location")
		return
	}

	property := input.ToProperty(lat, lon)
	if err := h.db.CreateProperty(c.Request.Context(), property); err != nil {
		h.internalError(c, err, "Failed to create property")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"id":       property.ID,
		"location": property.Location,
	}).Info("Created property")
	c.JSON(http.StatusCreated, property)
}

func (h *Handler) UpdateProperty(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	update, err := models.DecodePropertyUpdate(body)
	if err != nil {
		h.logger.WithError(err).Warn("Invalid update payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if msgs := h.validator.Update(update); len(msgs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "errors": msgs})
		return
	}

	if update.Empty() {
		h.logger.WithField("id", id).Debug("Update carries no recognised fields")
	}

	property, err := h.db.UpdateProperty(c.Request.Context(), id, update.Columns())
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}
	if err != nil {
		h.internalError(c, err, "Failed to update property")
		return
	}

	c.JSON(http.StatusOK, property)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	var buf bytes.Buffer
	if err := importer.WriteTemplate(&buf); err != nil {
		h.internalError(c, err, "Failed to generate template")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+importer.TemplateFilename)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *Handler) ExportProperties(c *gin.Context) {
	properties, ok := h.filteredProperties(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := importer.WriteExport(&buf, properties); err != nil {
		h.internalError(c, err, "Failed to export properties")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+importer.ExportFilename)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) GetGeoJSON(c *gin.Context) {
	properties, ok := h.filteredProperties(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, geometry.FeatureCollection(properties))
}

func (h *Handler) BatchImport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		h.logger.WithError(err).Warn(importer.ErrNoFile.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.internalError(c, err, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	h.logger.WithFields(logrus.Fields{
		"filename": fileHeader.Filename,
		"size":     fileHeader.Size,
	}).Info("Processing batch upload")

	result, err := h.importer.Import(c.Request.Context(), file)
	switch {
	case errors.Is(err, importer.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is empty"})
		return
	case errors.Is(err, importer.ErrMalformedFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid CSV file"})
		return
	case err != nil:
		h.internalError(c, err, "Failed to import properties")
		return
	}

	if result.Rejected() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": result.Errors})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    fmt.Sprintf("Successfully imported %d properties", len(result.Properties)),
		"properties": result.Properties,
	})
}
