// Package logger is a thin event-logging facade over zap. Log lines carry an
// event name plus free-form fields, so they stay grep-able and machine-parseable.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	log  *zap.Logger
	once sync.Once
)

func Init() {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		built, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			log = zap.NewNop()
			return
		}
		log = built
	})
}

func fieldsToZap(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		out = append(out, zap.Any(key, value))
	}
	return out
}

func Info(event string, fields map[string]interface{}) {
	if log == nil {
		return
	}
	log.Info(event, fieldsToZap(fields)...)
}

func Warn(event string, fields map[string]interface{}) {
	if log == nil {
		return
	}
	log.Warn(event, fieldsToZap(fields)...)
}

func Error(event string, err error, fields map[string]interface{}) {
	if log == nil {
		return
	}
	zapFields := fieldsToZap(fields)
	zapFields = append(zapFields, zap.Error(err))
	log.Error(event, zapFields...)
}

func InfoWithUser(userID, event string, fields map[string]interface{}) {
	if log == nil {
		return
	}
	zapFields := fieldsToZap(fields)
	zapFields = append(zapFields, zap.String("user_id", userID))
	log.Info(event, zapFields...)
}

func WarnWithUser(userID, event string, fields map[string]interface{}) {
	if log == nil {
		return
	}
	zapFields := fieldsToZap(fields)
	zapFields = append(zapFields, zap.String("user_id", userID))
	log.Warn(event, zapFields...)
}
