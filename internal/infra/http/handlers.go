package http

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/Spok95/bom-tracker/internal/collection"
	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/export"
	"github.com/Spok95/bom-tracker/internal/infra/auth"
	"github.com/Spok95/bom-tracker/internal/views"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type stateResponse struct {
	Phase    string         `json:"phase"`
	Error    string         `json:"error,omitempty"`
	Version  uint64         `json:"version"`
	SyncedAt string         `json:"syncedAt,omitempty"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

func (s *Server) handleState(c *fiber.Ctx) error {
	st := s.t.State()
	resp := stateResponse{
		Phase:    st.Phase.String(),
		Version:  st.Version,
		Total:    len(st.Items),
		ByStatus: make(map[string]int, len(bom.Statuses)),
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	if !st.SyncedAt.IsZero() {
		resp.SyncedAt = bom.Timestamp(st.SyncedAt)
	}
	for _, code := range bom.Statuses {
		resp.ByStatus[code.Code()] = 0
	}
	for _, it := range st.Items {
		resp.ByStatus[it.TransferStatus.Code()]++
	}
	return c.JSON(resp)
}

// readyItems 503, пока коллекция не готова или в ошибке.
func (s *Server) readyItems() (collection.State, error) {
	st := s.t.State()
	switch st.Phase {
	case collection.PhaseReady:
		return st, nil
	case collection.PhaseFailed:
		msg := "collection unavailable"
		if st.Err != nil {
			msg += ": " + st.Err.Error()
		}
		return st, fiber.NewError(fiber.StatusServiceUnavailable, msg)
	default:
		return st, fiber.NewError(fiber.StatusServiceUnavailable, "collection is loading")
	}
}

func parseQuery(c *fiber.Ctx, defaultTab views.Tab) (views.Query, error) {
	var q views.Query
	tab := defaultTab
	if raw := c.Query("tab"); raw != "" {
		t, err := views.ParseTab(raw)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		tab = t
	}
	key, err := views.ParseSortKey(c.Query("sort"))
	if err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	dir, err := views.ParseDirection(c.Query("dir"))
	if err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return views.Query{Tab: tab, Search: c.Query("q"), SortKey: key, Direction: dir}, nil
}

func (s *Server) handleItems(c *fiber.Ctx) error {
	st, err := s.readyItems()
	if err != nil {
		return err
	}
	q, err := parseQuery(c, views.TabAll)
	if err != nil {
		return err
	}
	items := views.Apply(st.Items, q, s.opts.Views)
	return c.JSON(fiber.Map{
		"version": st.Version,
		"tab":     q.Tab,
		"count":   len(items),
		"rollup":  views.RollupOf(items),
		"items":   items,
	})
}

func itemID(c *fiber.Ctx) (string, error) {
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil || strings.TrimSpace(id) == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid component id")
	}
	return id, nil
}

func findItem(items []bom.Item, id string) (bom.Item, bool) {
	for _, it := range items {
		if it.ComponentMaterial == id {
			return it, true
		}
	}
	return bom.Item{}, false
}

func (s *Server) handleItem(c *fiber.Ctx) error {
	st, err := s.readyItems()
	if err != nil {
		return err
	}
	id, err := itemID(c)
	if err != nil {
		return err
	}
	it, ok := findItem(st.Items, id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "component not found")
	}
	return c.JSON(it)
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	st, err := s.readyItems()
	if err != nil {
		return err
	}
	return c.JSON(views.BuildDashboard(st.Items, s.opts.Views, s.opts.Now()))
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	view, err := export.ParseView(c.Params("view"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	st, err := s.readyItems()
	if err != nil {
		return err
	}
	q, err := parseQuery(c, export.DefaultTab(view))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, view, views.Apply(st.Items, q, s.opts.Views)); err != nil {
		return err
	}
	c.Attachment(export.FileName(view, s.opts.Now()))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(buf.Bytes())
}

type statusRequest struct {
	Status string `json:"status"`
}

type dateRequest struct {
	Date *string `json:"date"`
}

type holdRequest struct {
	Reason string `json:"reason"`
	Brand  string `json:"brand"`
}

func (s *Server) handleUpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	st, ok := bom.LookupStatus(req.Status)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status "+req.Status)
	}
	return s.mutate(c, "status", func(ctx context.Context, id string) bool {
		return s.t.UpdateStatus(ctx, id, st)
	})
}

// userDate nil или "" очищают дату; иначе YYYY-MM-DD или YYYY-MM.
func userDate(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	d := strings.TrimSpace(*raw)
	if d == "" {
		return nil, nil
	}
	if !bom.ValidUserDate(d) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD or YYYY-MM")
	}
	return &d, nil
}

func (s *Server) handleUpdateExpected(c *fiber.Ctx) error {
	var req dateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := userDate(req.Date)
	if err != nil {
		return err
	}
	return s.mutate(c, "expected_completion", func(ctx context.Context, id string) bool {
		return s.t.UpdateExpectedCompletion(ctx, id, date)
	})
}

func (s *Server) handleUpdatePlanned(c *fiber.Ctx) error {
	var req dateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := userDate(req.Date)
	if err != nil {
		return err
	}
	return s.mutate(c, "planned_start", func(ctx context.Context, id string) bool {
		return s.t.UpdatePlannedStart(ctx, id, date)
	})
}

func (s *Server) handleUpdateHold(c *fiber.Ctx) error {
	var req holdRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	reason, brand := strings.TrimSpace(req.Reason), strings.TrimSpace(req.Brand)
	return s.mutate(c, "hold", func(ctx context.Context, id string) bool {
		return s.t.UpdateNotToTransferDetails(ctx, id, reason, brand)
	})
}

// mutate 202: изменение видно со следующим снимком, локально ничего не меняется.
func (s *Server) mutate(c *fiber.Ctx, action string, fn func(ctx context.Context, id string) bool) error {
	st, err := s.readyItems()
	if err != nil {
		return err
	}
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if _, ok := findItem(st.Items, id); !ok {
		return fiber.NewError(fiber.StatusNotFound, "component not found")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.WriteTimeout)
	defer cancel()
	if !fn(ctx, id) {
		return fiber.NewError(fiber.StatusBadGateway, "write was not accepted by the store, retry later")
	}
	s.log.Info("item updated",
		zap.String("action", action),
		zap.String("id", id),
		zap.String("operator", auth.Operator(c)),
	)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true, "id": id})
}

// handlePurgeImages новые картинки подхватятся со следующим снимком.
func (s *Server) handlePurgeImages(c *fiber.Ctx) error {
	n := s.opts.ImageCache.Len()
	s.opts.ImageCache.Purge()
	s.log.Info("image cache purged", zap.Int("entries", n), zap.String("operator", auth.Operator(c)))
	return c.JSON(fiber.Map{"purged": n})
}
