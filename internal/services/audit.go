package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/storage"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
	RequestID    string
}

// AuditService persists audit rows from a bounded queue and derives activity
// feed entries from them. A full queue drops the entry with a warning.
type AuditService struct {
	DB      *gorm.DB
	Storage storage.ObjectStore

	queue  chan models.AuditLog
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewAuditService(db *gorm.DB, store storage.ObjectStore, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = 1000
	}
	s := &AuditService{
		DB:      db,
		Storage: store,
		queue:   make(chan models.AuditLog, queueSize),
		done:    make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// LogAsync queues entry without blocking. A nil service discards it.
func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}
	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"audit_action": entry.Action,
			"dropped":      true,
		})
	}
}

// Close stops accepting entries and waits until queued rows are written.
func (s *AuditService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"audit_action": row.Action,
			})
			continue
		}
		s.generateActivities(row)
	}
}

func (s *AuditService) generateActivities(log models.AuditLog) {
	if log.UserID == nil {
		return
	}

	var others []models.Activity
	switch log.Action {
	case "team.join":
		others = s.activitiesForTeamJoin(log)
	case "task.create", "task.update":
		others = s.activitiesForTaskAssignment(log)
	case "connection.request":
		others = s.activityForTarget(log, "connection", "%s wants to connect with you")
	case "connection.respond":
		verb := "declined"
		if detailString(log.Details, "status") == string(models.ConnectionStatusAccepted) {
			verb = "accepted"
		}
		others = s.activityForTarget(log, "connection", "%s "+verb+" your connection request")
	case "board.share":
		others = s.activityForTarget(log, "board", "%s shared \"{name}\" with you")
	case "user.ping":
		others = s.activityForTarget(log, "user", "%s pinged you")
	}

	for i := range others {
		if others[i].UserID == *log.UserID {
			continue
		}
		if err := s.DB.Create(&others[i]).Error; err != nil {
			logger.Error("activity_insert_failed", err, map[string]interface{}{
				"audit_action": log.Action,
				"user_id":      others[i].UserID.String(),
			})
		}
	}

	if self := selfActivityForAction(log); self != nil {
		if err := s.DB.Create(self).Error; err != nil {
			logger.Error("self_activity_insert_failed", err, map[string]interface{}{
				"audit_action": log.Action,
			})
		}
	}
}

func selfActivityForAction(log models.AuditLog) *models.Activity {
	actorID := *log.UserID
	resourceName := detailString(log.Details, "name")

	var message, resourceType string
	switch log.Action {
	case "user.register":
		message, resourceType, resourceName = "Welcome to AyaSync", "user", "Account"
	case "user.login":
		message, resourceType, resourceName = "You signed in", "user", "Account"
	case "user.profile_update":
		message, resourceType, resourceName = "You updated your profile", "user", "Account"
	case "team.create":
		message, resourceType = fmt.Sprintf("You created team \"%s\"", resourceName), "team"
	case "team.join":
		message, resourceType = fmt.Sprintf("You joined team \"%s\"", resourceName), "team"
	case "board.create":
		message, resourceType = fmt.Sprintf("You created board \"%s\"", resourceName), "board"
	case "admin.user_update":
		message, resourceType, resourceName = "You updated a user account", "user", "Admin"
	case "admin.user_delete":
		message, resourceType, resourceName = "You deleted a user account", "user", "Admin"
	default:
		return nil
	}

	return &models.Activity{
		UserID:       actorID,
		ActorID:      actorID,
		Action:       log.Action,
		ResourceType: resourceType,
		ResourceID:   log.ResourceID,
		ResourceName: resourceName,
		Message:      message,
	}
}

// activityForTarget notifies details.target_user_id. The template receives the
// actor name through %s; {name} is replaced by details.name.
func (s *AuditService) activityForTarget(log models.AuditLog, resourceType, template string) []models.Activity {
	targetID, err := uuid.Parse(detailString(log.Details, "target_user_id"))
	if err != nil {
		return nil
	}

	name := detailString(log.Details, "name")
	message := fmt.Sprintf(strings.ReplaceAll(template, "{name}", name), s.getActorName(*log.UserID))

	return []models.Activity{{
		UserID:       targetID,
		ActorID:      *log.UserID,
		Action:       log.Action,
		ResourceType: resourceType,
		ResourceID:   log.ResourceID,
		ResourceName: name,
		Message:      message,
	}}
}

func (s *AuditService) activitiesForTeamJoin(log models.AuditLog) []models.Activity {
	if log.ResourceID == nil {
		return nil
	}

	var owners []models.TeamMember
	s.DB.Select("user_id").
		Where("team_id = ? AND role = ?", *log.ResourceID, models.TeamRoleOwner).
		Find(&owners)

	teamName := detailString(log.Details, "name")
	actorName := s.getActorName(*log.UserID)

	result := make([]models.Activity, 0, len(owners))
	for _, owner := range owners {
		result = append(result, models.Activity{
			UserID:       owner.UserID,
			ActorID:      *log.UserID,
			Action:       log.Action,
			ResourceType: "team",
			ResourceID:   log.ResourceID,
			ResourceName: teamName,
			Message:      fmt.Sprintf("%s joined \"%s\"", actorName, teamName),
		})
	}
	return result
}

func (s *AuditService) activitiesForTaskAssignment(log models.AuditLog) []models.Activity {
	assignee, err := uuid.Parse(detailString(log.Details, "assigned_to"))
	if err != nil {
		return nil
	}
	if detailString(log.Details, "assignment_changed") != "true" {
		return nil
	}

	title := detailString(log.Details, "name")
	return []models.Activity{{
		UserID:       assignee,
		ActorID:      *log.UserID,
		Action:       log.Action,
		ResourceType: "task",
		ResourceID:   log.ResourceID,
		ResourceName: title,
		Message:      fmt.Sprintf("%s assigned you \"%s\"", s.getActorName(*log.UserID), title),
	}}
}

func (s *AuditService) getActorName(userID uuid.UUID) string {
	var user models.User
	if err := s.DB.Unscoped().Select("name", "email").First(&user, "id = ?", userID).Error; err != nil {
		return "Someone"
	}
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}
	return user.Email
}

// StartExporter ships new audit rows to object storage as NDJSON every
// interval until ctx is cancelled.
func (s *AuditService) StartExporter(ctx context.Context, interval time.Duration) {
	if s.Storage == nil || interval <= 0 {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExportOnce(ctx); err != nil {
					logger.Error("audit_export_failed", err, nil)
				}
			}
		}
	}()

	logger.Info("audit_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

// ExportOnce uploads every row newer than the export cursor and returns how
// many rows were shipped.
func (s *AuditService) ExportOnce(ctx context.Context) (int, error) {
	var cursor models.AuditExportCursor
	if err := s.DB.WithContext(ctx).First(&cursor).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("loading export cursor: %w", err)
		}
		cursor = models.AuditExportCursor{
			LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := s.DB.WithContext(ctx).Create(&cursor).Error; err != nil {
			return 0, fmt.Errorf("creating export cursor: %w", err)
		}
	}

	var logs []models.AuditLog
	if err := s.DB.WithContext(ctx).Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&logs).Error; err != nil {
		return 0, fmt.Errorf("querying audit rows: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range logs {
		if err := enc.Encode(row); err != nil {
			return 0, fmt.Errorf("encoding audit row %s: %w", row.ID, err)
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("audit-logs/%s/%s.ndjson", now.Format("2006/01/02"), now.Format("15-04-05.000"))
	if err := s.Storage.Upload(ctx, objectName, &buf, int64(buf.Len()), "application/x-ndjson"); err != nil {
		return 0, err
	}

	if err := s.DB.WithContext(ctx).Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": logs[len(logs)-1].CreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(logs)),
	}).Error; err != nil {
		return 0, fmt.Errorf("advancing export cursor: %w", err)
	}

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(logs),
	})
	return len(logs), nil
}

func detailString(details map[string]interface{}, key string) string {
	if details == nil {
		return ""
	}
	v, ok := details[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}
