//go:build windows

package cli

import (
	"log"
	"os"

	"golang.org/x/sys/windows/svc/eventlog"

	"github.com/senbaris/tempdbcheck/internal/logger"
)

func init() {
	configureWindowsEventLog = setupWindowsEventLog
}

// setupWindowsEventLog configures logging to use the Windows Event Log
func setupWindowsEventLog() bool {
	elog, err := eventlog.Open(serviceName)
	if err != nil {
		// EventLog kaynağı yoksa oluşturmayı dene
		err = eventlog.InstallAsEventCreate(serviceName, eventlog.Info|eventlog.Warning|eventlog.Error)
		if err != nil {
			// Yüksek yetkiler gerektirebilir, başarısız olursa dosya loguna geri dön
			log.Printf("Windows Event Log kurulumu başarısız: %v, dosya loguna dönülüyor", err)
			return false
		}

		elog, err = eventlog.Open(serviceName)
		if err != nil {
			log.Printf("Windows Event Log açılamadı: %v, dosya loguna dönülüyor", err)
			return false
		}
	}

	writer := &eventLogWriter{elog: elog}
	log.SetOutput(writer)
	logger.SetOutput(writer)

	logger.Info("Windows Event Log başarıyla etkinleştirildi, log seviyesi: %s", logger.LevelToString(logger.GetLevel()))
	return true
}

// Windows Event Log yazmak için özel writer
type eventLogWriter struct {
	elog *eventlog.Log
}

func (w *eventLogWriter) Write(p []byte) (n int, err error) {
	message := string(p)

	switch logger.LevelOf(message) {
	case logger.LevelDebug, logger.LevelInfo:
		err = w.elog.Info(1, message)
	case logger.LevelWarning:
		err = w.elog.Warning(2, message)
	default:
		err = w.elog.Error(3, message)
	}

	if err != nil {
		// Yazma hatası durumunda standart çıktıya yaz
		os.Stderr.Write(p)
		return 0, err
	}
	return len(p), nil
}
