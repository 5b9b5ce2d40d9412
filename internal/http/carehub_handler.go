package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/repository"
	"wisefido-carehub/internal/session"

	"go.uber.org/zap"
)

// AlertArchive 报警归档查询（未启用数据库时为 nil）
type AlertArchive interface {
	ListByUser(ctx context.Context, userName string, limit int) ([]repository.ArchivedAlert, error)
}

// CareHubHandler 看护面板 API
type CareHubHandler struct {
	manager *session.Manager
	archive AlertArchive
	logger  *zap.Logger
}

func NewCareHubHandler(manager *session.Manager, archive AlertArchive, logger *zap.Logger) *CareHubHandler {
	return &CareHubHandler{
		manager: manager,
		archive: archive,
		logger:  logger,
	}
}

type credentialsRequest struct {
	Name string `json:"name"`
	Pass string `json:"pass"`
}

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	User      models.User `json:"user"`
}

type profileRequest struct {
	PatientName string `json:"patientName"`
	TelegramID  string `json:"telegramId"`
}

type alarmResponse struct {
	State models.AlarmState `json:"state"`
}

// ============================================
// 登录 / 注册
// ============================================

func (h *CareHubHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	sess, err := h.manager.Register(r.Context(), req.Name, req.Pass)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sessionResponse{SessionID: sess.ID, User: sess.User().Public()}))
}

func (h *CareHubHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	sess, err := h.manager.Login(r.Context(), req.Name, req.Pass)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sessionResponse{SessionID: sess.ID, User: sess.User().Public()}))
}

func (h *CareHubHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// ============================================
// 仪表盘 / 档案
// ============================================

func (h *CareHubHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.manager.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dash))
}

func (h *CareHubHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	user, err := h.manager.UpdateProfile(r.Context(), req.PatientName, req.TelegramID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(user.Public()))
}

func (h *CareHubHandler) CompleteTour(w http.ResponseWriter, r *http.Request) {
	user, err := h.manager.CompleteTour(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(user.Public()))
}

// ============================================
// 用药提醒
// ============================================

func (h *CareHubHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.manager.ListReminders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reminders))
}

func (h *CareHubHandler) AddReminder(w http.ResponseWriter, r *http.Request) {
	var req models.Reminder
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	reminders, err := h.manager.AddReminder(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reminders))
}

func (h *CareHubHandler) DeleteReminder(w http.ResponseWriter, r *http.Request, index int) {
	reminders, err := h.manager.DeleteReminder(r.Context(), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reminders))
}

// ============================================
// 跌倒报警
// ============================================

func (h *CareHubHandler) TriggerFall(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.TriggerFall(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(alarmResponse{State: state}))
}

func (h *CareHubHandler) ClearFall(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.ClearFall(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(alarmResponse{State: state}))
}

// ============================================
// 事件日志
// ============================================

func (h *CareHubHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.manager.Events()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

func (h *CareHubHandler) ClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearEvents(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func (h *CareHubHandler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.manager.Events()
	if err != nil {
		writeError(w, err)
		return
	}

	excelData, err := GenerateEventLogExport(events)
	if err != nil {
		h.logger.Error("GenerateEventLogExport failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	filename := fmt.Sprintf("event-log-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(excelData)
}

func (h *CareHubHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusNotFound, Fail("alert archive is not enabled"))
		return
	}
	sess, err := h.manager.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 100)
	alerts, err := h.archive.ListByUser(r.Context(), sess.User().Name, limit)
	if err != nil {
		h.logger.Error("Failed to list archived alerts", zap.Error(err))
		writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []repository.ArchivedAlert{}
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}
