package api

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pynezz/heimdall/internal/engine"
	"github.com/pynezz/heimdall/internal/rules"
	"github.com/pynezz/heimdall/pkg/version"
)

type handlers struct {
	deps Deps
}

type scanRequest struct {
	File   string `json:"file"`
	Format string `json:"format,omitempty"`
}

type testRuleRequest struct {
	Condition string `json:"condition"`
	File      string `json:"file"`
	Format    string `json:"format,omitempty"`
}

type validateRequest struct {
	Condition string `json:"condition"`
}

type importLogsRequest struct {
	Paths []string `json:"paths"`
}

type setFormatRequest struct {
	Format string `json:"format"`
}

func errorResponse(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (h *handlers) index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    "heimdall",
		"version": version.Version(),
	})
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// resolveSource maps a registered log file name (or a raw path) to the path
// and format handed to the scan engine.
func (h *handlers) resolveSource(file, format string) (string, engine.Format, error) {
	declared := engine.Format(format)

	files, err := h.deps.Logs.List()
	if err != nil {
		return "", engine.FormatUnknown, err
	}
	for _, f := range files {
		if f.Filename == file {
			if declared == engine.FormatUnknown {
				declared = f.Format
			}
			return f.Path, declared, nil
		}
	}
	return file, declared, nil
}

func (h *handlers) scan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	if req.File == "" {
		return errorResponse(c, fiber.StatusBadRequest, fmt.Errorf("file is required"))
	}

	path, format, err := h.resolveSource(req.File, req.Format)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}
	if format == engine.FormatUnknown {
		format, err = engine.DetectFormat(path)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, err)
		}
	}

	result, err := h.deps.Scanner.Scan(path, format)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	if h.deps.History != nil {
		if _, err := h.deps.History.RecordScan(req.File, result); err != nil {
			return errorResponse(c, fiber.StatusInternalServerError, err)
		}
	}
	h.publishAlertCount(len(result.Alerts), req.File)

	return c.JSON(result)
}

func (h *handlers) scanAll(c *fiber.Ctx) error {
	sources, err := h.deps.Logs.Sources()
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}

	result, err := h.deps.Scanner.ScanAll(sources)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}

	if h.deps.History != nil {
		if _, err := h.deps.History.RecordBulk(result); err != nil {
			return errorResponse(c, fiber.StatusInternalServerError, err)
		}
	}
	h.publishAlertCount(result.TotalAlerts, "bulk scan")

	return c.JSON(result)
}

func (h *handlers) publishAlertCount(count int, source string) {
	if h.deps.Alerts != nil && count > 0 {
		h.deps.Alerts.Publish(fmt.Sprintf("%d alert(s) from %s", count, source))
	}
}

func (h *handlers) listRules(c *fiber.Ctx) error {
	all, err := h.deps.Rules.List()
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(all)
}

func (h *handlers) getRule(c *fiber.Ctx) error {
	rule, err := h.deps.Rules.Get(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusNotFound, err)
	}
	return c.JSON(rule)
}

func (h *handlers) saveRule(c *fiber.Ctx) error {
	var rule rules.RuleFile
	if err := c.BodyParser(&rule); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	if validation := engine.ValidateSyntax(rule.Detection.Condition); !validation.Valid {
		return c.Status(fiber.StatusBadRequest).JSON(validation)
	}

	saved, err := h.deps.Rules.Save(rule)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(saved)
}

func (h *handlers) deleteRule(c *fiber.Ctx) error {
	if err := h.deps.Rules.Delete(c.Params("id")); err != nil {
		return errorResponse(c, fiber.StatusNotFound, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) exportRules(c *fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		data, err := h.deps.Rules.ExportRule(id)
		if err != nil {
			return errorResponse(c, fiber.StatusNotFound, err)
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(data)
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="rules.zip"`)
	return h.deps.Rules.ExportAll(c.Response().BodyWriter())
}

func (h *handlers) importRules(c *fiber.Ctx) error {
	overwrite := c.QueryBool("overwrite")
	body := c.Body()

	if c.Get(fiber.HeaderContentType) == "application/zip" {
		summary, err := h.deps.Rules.ImportZip(body, overwrite)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, err)
		}
		return c.JSON(summary)
	}

	rule, err := h.deps.Rules.ImportRule(body, overwrite)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(rule)
}

func (h *handlers) importSigmaRule(c *fiber.Ctx) error {
	converted, err := rules.ImportSigmaRule(c.Body())
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	saved, err := h.deps.Rules.Save(converted)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(saved)
}

func (h *handlers) testRule(c *fiber.Ctx) error {
	var req testRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	path, format, err := h.resolveSource(req.File, req.Format)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}
	if format == engine.FormatUnknown {
		format, err = engine.DetectFormat(path)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, err)
		}
	}

	result, err := h.deps.Scanner.TestCondition(req.Condition, path, format)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(result)
}

func (h *handlers) validateRule(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(engine.ValidateSyntax(req.Condition))
}

func (h *handlers) suggestFields(c *fiber.Ctx) error {
	file := c.Query("file")
	if file == "" {
		return errorResponse(c, fiber.StatusBadRequest, fmt.Errorf("file query parameter is required"))
	}

	path, format, err := h.resolveSource(file, c.Query("format"))
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}
	if format == engine.FormatUnknown {
		format, err = engine.DetectFormat(path)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, err)
		}
	}

	events, err := engine.LoadEvents(path, format)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(engine.SuggestFields(events, c.Query("prefix")))
}

func (h *handlers) listLogs(c *fiber.Ctx) error {
	files, err := h.deps.Logs.List()
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(files)
}

func (h *handlers) importLogs(c *fiber.Ctx) error {
	var req importLogsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	if len(req.Paths) == 0 {
		return errorResponse(c, fiber.StatusBadRequest, fmt.Errorf("paths is required"))
	}
	return c.JSON(h.deps.Logs.ImportMany(req.Paths))
}

func (h *handlers) setLogFormat(c *fiber.Ctx) error {
	var req setFormatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	if err := h.deps.Logs.SetFormat(c.Params("name"), engine.Format(req.Format)); err != nil {
		return errorResponse(c, fiber.StatusNotFound, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) deleteLog(c *fiber.Ctx) error {
	if err := h.deps.Logs.Delete(c.Params("name")); err != nil {
		return errorResponse(c, fiber.StatusNotFound, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) history(c *fiber.Ctx) error {
	if h.deps.History == nil {
		return errorResponse(c, fiber.StatusServiceUnavailable, fmt.Errorf("scan history is disabled"))
	}

	limit := c.QueryInt("limit", 50)
	records, err := h.deps.History.RecentScans(limit)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(records)
}

func (h *handlers) historyAlerts(c *fiber.Ctx) error {
	if h.deps.History == nil {
		return errorResponse(c, fiber.StatusServiceUnavailable, fmt.Errorf("scan history is disabled"))
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, fmt.Errorf("invalid scan id"))
	}

	alerts, err := h.deps.History.AlertsForScan(uint(id))
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(alerts)
}
