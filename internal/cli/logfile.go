package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/senbaris/tempdbcheck/internal/logger"
)

const (
	logFileName = "tempdbcheck.log"
	maxLogSize  = int64(100 * 1024 * 1024) // 100MB
	maxLogFiles = 5                        // Saklanacak maksimum log dosyası sayısı
)

// Dosya log sistemini kurma yardımcı fonksiyonu
func setupFileLogging() {
	exePath, err := os.Executable()
	if err != nil {
		log.Printf("Failed to get executable path: %v", err)
		return
	}

	f, err := openLogFile(filepath.Dir(exePath), maxLogSize, maxLogFiles)
	if err != nil {
		log.Printf("Failed to open log file: %v", err)
		return
	}

	log.SetOutput(f)
	logger.SetOutput(f)

	logger.Info("Dosya log sistemi başarıyla etkinleştirildi, log seviyesi: %s", logger.LevelToString(logger.GetLevel()))
}

// openLogFile rotates the log file in dir once it exceeds maxSize and keeps at
// most keep rotated files.
func openLogFile(dir string, maxSize int64, keep int) (*os.File, error) {
	logFile := filepath.Join(dir, logFileName)

	info, err := os.Stat(logFile)
	if err == nil && info.Size() > maxSize {
		// Rotasyon gerekli, tarihe göre eski dosyayı adlandır
		timestamp := time.Now().Format("2006-01-02_15-04-05.000000000")
		backupFile := filepath.Join(dir, fmt.Sprintf("tempdbcheck_%s.log", timestamp))

		if err := os.Rename(logFile, backupFile); err != nil {
			log.Printf("Log rotasyonu yapılamadı: %v", err)
		}

		cleanupOldLogs(dir, keep)
	}

	return os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// Eski log dosyalarını temizler, sadece en yeni n dosyayı tutar
func cleanupOldLogs(logDir string, keepCount int) {
	matches, err := filepath.Glob(filepath.Join(logDir, "tempdbcheck_*.log"))
	if err != nil {
		log.Printf("Eski log dosyaları bulunamadı: %v", err)
		return
	}

	// Zaman damgası dosya adında, isim sırası yaş sırasıdır
	sort.Strings(matches)

	for i := 0; i < len(matches)-keepCount; i++ {
		if err := os.Remove(matches[i]); err != nil {
			log.Printf("Eski log dosyası silinemedi %s: %v", matches[i], err)
		}
	}
}
