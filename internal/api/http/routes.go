package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/store"
	"github.com/i474232898/weather-display/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	// Preview of the body a device would receive for the given point.
	v1.Get("/forecast", func(c *fiber.Ctx) error {
		var q forecastQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		f, err := service.Forecast(c.UserContext(), weather.Location{Lat: *q.Lat, Lon: *q.Lon}, q.Count)
		if err != nil {
			if errors.Is(err, weather.ErrNoProviders) {
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch forecast")
		}
		return c.JSON(f)
	})

	devices := v1.Group("/devices/:id")

	devices.Get("/reports/latest", func(c *fiber.Ctx) error {
		id := c.Params("id")
		r, err := service.GetLatest(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no reports for requested device")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch device report")
		}
		return c.JSON(r)
	})

	devices.Get("/reports", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reports, err := service.GetRange(req.DeviceID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no reports for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch device reports")
		}

		return c.JSON(fiber.Map{
			"deviceId": req.DeviceID,
			"from":     req.From,
			"to":       req.To,
			"reports":  reports,
		})
	})
}

// forecastQuery holds query parameters for the forecast preview.
type forecastQuery struct {
	Lat   *float64 `validate:"required,gte=-90,lte=90"`
	Lon   *float64 `validate:"required,gte=-180,lte=180"`
	Count int      `validate:"gte=1,lte=40"`
}

func (q *forecastQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Lat, err = parseCoord(c.Query("lat")); err != nil {
		return errors.New("lat must be a number")
	}
	if q.Lon, err = parseCoord(c.Query("lon")); err != nil {
		return errors.New("lon must be a number")
	}

	q.Count = forecast.DefaultEntries
	if s := c.Query("cnt"); s != "" {
		if q.Count, err = strconv.Atoi(s); err != nil {
			return errors.New("cnt must be an integer")
		}
	}
	return nil
}

// parseCoord returns nil for an absent value so validation reports it.
func parseCoord(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// historyQuery holds parameters for the report history endpoint.
type historyQuery struct {
	DeviceID string    `validate:"required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.DeviceID = c.Params("id")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
