package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type Logger struct {
	entry        *logrus.Logger
	sentryActive bool
}

var globalLogger *Logger

func New(output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "action",
		},
	})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{entry: l}
}

func Init() {
	globalLogger = New(os.Stdout)
}

// InitWithOutput is used by tests that need to inspect emitted lines.
func InitWithOutput(output io.Writer) {
	globalLogger = New(output)
}

// EnableSentry routes error-level events to Sentry. An empty dsn leaves it disabled.
func EnableSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	}); err != nil {
		return err
	}
	if globalLogger != nil {
		globalLogger.sentryActive = true
	}
	return nil
}

// Flush waits for buffered Sentry events.
func Flush(timeout time.Duration) {
	if globalLogger != nil && globalLogger.sentryActive {
		sentry.Flush(timeout)
	}
}

func (l *Logger) log(level LogLevel, action string, userID *string, details map[string]interface{}, err error) {
	fields := logrus.Fields{}
	for k, v := range details {
		fields[k] = v
	}
	if userID != nil {
		fields["user_id"] = *userID
	}
	if err != nil {
		fields[logrus.ErrorKey] = err.Error()
	}

	e := l.entry.WithFields(fields)
	switch level {
	case LevelError:
		e.Error(action)
	case LevelWarn:
		e.Warn(action)
	default:
		e.Info(action)
	}

	if !l.sentryActive {
		return
	}
	if level == LevelError {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("action", action)
			if userID != nil {
				scope.SetUser(sentry.User{ID: *userID})
			}
			for k, v := range details {
				scope.SetExtra(k, v)
			}
			if err == nil {
				err = fmt.Errorf("%s", action)
			}
			sentry.CaptureException(err)
		})
		return
	}
	breadcrumbLevel := sentry.LevelInfo
	if level == LevelWarn {
		breadcrumbLevel = sentry.LevelWarning
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  action,
		Level:     breadcrumbLevel,
		Data:      details,
		Timestamp: time.Now(),
	})
}

func Info(action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelInfo, action, nil, details, nil)
	}
}

func InfoWithUser(userID string, action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelInfo, action, &userID, details, nil)
	}
}

func Warn(action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelWarn, action, nil, details, nil)
	}
}

func WarnWithUser(userID string, action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelWarn, action, &userID, details, nil)
	}
}

func Error(action string, err error, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelError, action, nil, details, err)
	}
}

func ErrorWithUser(userID string, action string, err error, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelError, action, &userID, details, err)
	}
}

func GetUserIDFromContext(c *fiber.Ctx) *string {
	if userID := c.Locals("userID"); userID != nil {
		if id, ok := userID.(string); ok {
			return &id
		}
	}
	return nil
}

var sensitiveFields = []string{"password", "token", "avatarUrl", "secret"}

func redactSensitiveFields(jsonMap map[string]interface{}) {
	for _, field := range sensitiveFields {
		if _, exists := jsonMap[field]; exists {
			jsonMap[field] = "[REDACTED]"
		}
	}
}

func GetRequestBodySummary(c *fiber.Ctx) string {
	body := c.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(body, &jsonMap); err == nil {
		redactSensitiveFields(jsonMap)
		if jsonBytes, err := json.Marshal(jsonMap); err == nil {
			if len(jsonBytes) > 200 {
				return string(jsonBytes[:200]) + "..."
			}
			return string(jsonBytes)
		}
	}

	return fmt.Sprintf("binary (%d bytes)", len(body))
}

func GetResponseSizeSummary(c *fiber.Ctx) string {
	response := c.Response()
	if response == nil {
		return "unknown"
	}

	body := response.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	return fmt.Sprintf("small (%d bytes)", len(body))
}

func GenerateRequestID() string {
	return uuid.New().String()
}
