package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup - 전역 logrus 로거 설정 (레벨 + 출력 포맷)
func Setup(level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("⚠️  Unknown log level %q, falling back to info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// ForJob - Job 단위 로그 필드
func ForJob(jobID, userID string) *log.Entry {
	return log.WithFields(log.Fields{
		"job_id":  jobID,
		"user_id": userID,
	})
}
