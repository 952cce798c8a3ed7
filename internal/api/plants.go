// internal/api/plants.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Phusssss/plant-disease-detection/internal/datastore"
	"github.com/Phusssss/plant-disease-detection/internal/errors"
)

// PlantRequest is the body for creating a plant catalog entry.
type PlantRequest struct {
	Name             string `json:"name"`
	ScientificName   string `json:"scientific_name"`
	Description      string `json:"description"`
	CareInstructions string `json:"care_instructions"`
}

// PlantResponse represents a plant catalog entry in API responses.
type PlantResponse struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	ScientificName   string `json:"scientific_name,omitempty"`
	Description      string `json:"description,omitempty"`
	CareInstructions string `json:"care_instructions,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func plantResponse(p *datastore.Plant) PlantResponse {
	return PlantResponse{
		ID:               p.ID,
		Name:             p.Name,
		ScientificName:   p.ScientificName,
		Description:      p.Description,
		CareInstructions: p.CareInstructions,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
	}
}

// GetPlants returns all plant catalog entries ordered by name.
func (c *Controller) GetPlants(ctx echo.Context) error {
	plants, err := c.DS.GetAllPlants()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get plants", http.StatusInternalServerError)
	}

	responses := make([]PlantResponse, 0, len(plants))
	for i := range plants {
		responses = append(responses, plantResponse(&plants[i]))
	}
	return ctx.JSON(http.StatusOK, responses)
}

// CreatePlant adds a new plant catalog entry.
func (c *Controller) CreatePlant(ctx echo.Context) error {
	var req PlantRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Name == "" {
		return c.HandleError(ctx, errors.NewStd("plant name is required"),
			"Plant name is required", http.StatusBadRequest)
	}

	plant := &datastore.Plant{
		Name:             req.Name,
		ScientificName:   req.ScientificName,
		Description:      req.Description,
		CareInstructions: req.CareInstructions,
		CreatedAt:        time.Now(),
	}
	if err := c.DS.SavePlant(plant); err != nil {
		if errors.Is(err, errors.ErrDuplicateName) {
			return c.HandleError(ctx, err, "Plant name already exists", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to create plant", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, plantResponse(plant))
}

// GetPlant returns a single plant catalog entry by ID.
func (c *Controller) GetPlant(ctx echo.Context) error {
	id, err := parsePlantID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid plant ID", http.StatusBadRequest)
	}

	plant, err := c.DS.GetPlant(id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return c.HandleError(ctx, err, "Plant not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get plant", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, plantResponse(&plant))
}

// DeletePlant removes a plant catalog entry by ID.
func (c *Controller) DeletePlant(ctx echo.Context) error {
	id, err := parsePlantID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid plant ID", http.StatusBadRequest)
	}

	if err := c.DS.DeletePlant(id); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return c.HandleError(ctx, err, "Plant not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete plant", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"message": "Plant deleted successfully"})
}

func parsePlantID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.Newf("parsing plant ID %q: %w", raw, err).
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(id), nil
}
