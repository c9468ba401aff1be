package logger

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

type mysqlLogger struct {
	log *zap.Logger
}

// MySQLLogger routes go-sql-driver's internal messages (dropped connections,
// malformed packets) into log. Install it with mysql.SetLogger.
func MySQLLogger(log *zap.Logger) mysql.Logger {
	return &mysqlLogger{log: log.Named("mysql")}
}

func (l *mysqlLogger) Print(v ...any) {
	l.log.Warn(fmt.Sprint(v...))
}
