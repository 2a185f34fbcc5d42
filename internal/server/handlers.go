package server

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
	"github.com/dwalsh-mfg/barcode-verifier/internal/verify"
)

var validate = validator.New()

type scanRequest struct {
	Barcode string `json:"barcode"`
}

type pinRequest struct {
	Pin string `json:"pin" validate:"required,min=4,max=20,alphanum"`
}

// getStatus serves the point-in-time snapshot clients re-fetch after a
// reconnect.
// GET /api/status
func (s *Server) getStatus(c *fiber.Ctx) error {
	status, err := s.engine.Status(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

// GET /api/hourly_stats
func (s *Server) getHourlyStats(c *fiber.Ctx) error {
	rows, err := s.engine.HourlyStats(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(rows)
}

// POST /api/job/start
func (s *Server) startJob(c *fiber.Ctx) error {
	var req verify.StartJobRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, fmt.Errorf("%w: malformed request body", common.ErrInvalidInput))
	}
	snap, err := s.engine.StartJob(c.Context(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "job": snap})
}

// POST /api/job/end
func (s *Server) endJob(c *fiber.Ctx) error {
	req, err := s.parsePin(c)
	if err != nil {
		return s.respondError(c, err)
	}
	result, err := s.engine.EndJob(c.Context(), req.Pin)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"summary": result.Summary,
		"shift":   result.Shift,
	})
}

// GET /api/job/:id
func (s *Server) getJob(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return s.respondError(c, fmt.Errorf("%w: job id must be numeric", common.ErrInvalidInput))
	}
	snap, err := s.engine.JobByID(c.Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}

// POST /api/verify_pin
func (s *Server) verifyPin(c *fiber.Ctx) error {
	req, err := s.parsePin(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if err := s.engine.VerifyPin(c.Context(), req.Pin); err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// POST /api/scan
func (s *Server) processScan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, fmt.Errorf("%w: malformed request body", common.ErrInvalidInput))
	}
	result, err := s.engine.ProcessScan(c.Context(), req.Barcode)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// GET /api/export_csv
func (s *Server) exportCSV(c *fiber.Ctx) error {
	data, err := s.exports.HistoryCSV(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename=`+s.exports.Filename("csv"))
	return c.Status(fiber.StatusOK).Send(data)
}

// GET /api/export_xlsx
func (s *Server) exportXLSX(c *fiber.Ctx) error {
	data, err := s.exports.HistoryXLSX(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename=`+s.exports.Filename("xlsx"))
	return c.Status(fiber.StatusOK).Send(data)
}

// GET /api/backup
func (s *Server) backup(c *fiber.Ctx) error {
	state, err := s.engine.ExportState(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return s.respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename=`+s.exports.Filename("json"))
	return c.Status(fiber.StatusOK).Send(data)
}

// restore destructively replaces all state. Only reachable with the
// configured admin token; with no token configured the route is disabled.
// POST /api/restore
func (s *Server) restore(c *fiber.Ctx) error {
	if s.adminToken == "" || c.Get("X-Admin-Token") != s.adminToken {
		return s.respondError(c, common.ErrUnauthorized)
	}
	if err := s.engine.ImportState(c.Context(), c.Body()); err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (s *Server) parsePin(c *fiber.Ctx) (*pinRequest, error) {
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("%w: malformed request body", common.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: pin must be 4-20 letters or digits", common.ErrValidation)
	}
	return &req, nil
}
